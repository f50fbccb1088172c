// Package app assembles the runtime graph (transient store, CRM client,
// processor host, renderers, orchestrator) from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/internal/config"
	"github.com/goliatone/go-formcrm/internal/form/loader"
	"github.com/goliatone/go-formcrm/pkg/civicrm"
	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/orchestrator"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/processor/website"
	"github.com/goliatone/go-formcrm/pkg/render"
	"github.com/goliatone/go-formcrm/pkg/renderers/html"
	"github.com/goliatone/go-formcrm/pkg/renderers/tui"
	"github.com/goliatone/go-formcrm/pkg/transient"
)

// Option overrides a dependency before it is built from configuration.
type Option func(*App)

// WithCatalog skips loading forms from cfg.Forms.Dir.
func WithCatalog(catalog *form.Catalog) Option {
	return func(a *App) {
		a.Catalog = catalog
	}
}

// WithAPI skips building the CRM client.
func WithAPI(api civicrm.API) Option {
	return func(a *App) {
		a.API = api
	}
}

// WithStore skips opening the configured transient store.
func WithStore(store transient.Store) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithTUIDriver replaces the terminal prompt driver.
func WithTUIDriver(driver tui.PromptDriver) Option {
	return func(a *App) {
		a.tuiDriver = driver
	}
}

// WithTUIOutput redirects terminal notes.
func WithTUIOutput(out io.Writer) Option {
	return func(a *App) {
		a.tuiOutput = out
	}
}

// App is the assembled runtime.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        transient.Store
	API          civicrm.API
	Catalog      *form.Catalog
	Host         *processor.Host
	Renderers    *render.Registry
	Orchestrator *orchestrator.Orchestrator

	tuiDriver tui.PromptDriver
	tuiOutput io.Writer
}

// New builds the runtime. Close releases the transient store.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, options ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(a)
	}

	if a.Store == nil {
		store, err := transient.Open(ctx, cfg.Transient.StoreOptions())
		if err != nil {
			return nil, fmt.Errorf("app: open transient store: %w", err)
		}
		a.Store = store
	}

	if a.API == nil {
		api, err := newAPI(cfg.CiviCRM, logger)
		if err != nil {
			_ = a.Store.Close()
			return nil, err
		}
		a.API = api
	}

	if a.Catalog == nil {
		catalog, err := loader.New(form.NewLoaderOptions()).LoadDir(ctx, cfg.Forms.Dir)
		if err != nil {
			_ = a.Store.Close()
			return nil, fmt.Errorf("app: load forms: %w", err)
		}
		a.Catalog = catalog
	}

	a.Host = processor.NewHost(processor.WithLogger(logger.Named("processor")))
	websiteProcessor, err := website.New(a.Store, a.API, website.WithLogger(logger.Named(website.Key)))
	if err != nil {
		_ = a.Store.Close()
		return nil, err
	}
	if err := websiteProcessor.Register(a.Host); err != nil {
		_ = a.Store.Close()
		return nil, fmt.Errorf("app: register website processor: %w", err)
	}

	a.Renderers, err = a.renderers()
	if err != nil {
		_ = a.Store.Close()
		return nil, err
	}

	orchestratorOptions := []orchestrator.Option{
		orchestrator.WithCatalog(a.Catalog),
		orchestrator.WithHost(a.Host),
		orchestrator.WithRegistry(a.Renderers),
		orchestrator.WithStore(a.Store),
		orchestrator.WithSessionTTL(cfg.Transient.TTL),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	}
	if manifest := cfg.Theme.Manifest(); manifest != nil {
		selector, err := render.NewManifestSelector(manifest.Name, cfg.Theme.Variant, manifest)
		if err != nil {
			_ = a.Store.Close()
			return nil, fmt.Errorf("app: theme: %w", err)
		}
		orchestratorOptions = append(orchestratorOptions, orchestrator.WithThemeSelector(selector))
	}
	a.Orchestrator = orchestrator.New(orchestratorOptions...)

	if _, err := a.Host.Registry(ctx); err != nil {
		_ = a.Store.Close()
		return nil, fmt.Errorf("app: load processors: %w", err)
	}

	logger.Info("runtime ready",
		zap.Int("forms", a.Catalog.Len()),
		zap.String("transient_backend", cfg.Transient.Backend),
		zap.Bool("crm_remote", cfg.CiviCRM.BaseURL != ""),
	)
	return a, nil
}

// Close releases the transient store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func (a *App) renderers() (*render.Registry, error) {
	registry := render.NewRegistry(html.Name)

	htmlRenderer, err := html.New()
	if err != nil {
		return nil, fmt.Errorf("app: html renderer: %w", err)
	}
	tuiRenderer := tui.New(tui.WithPromptDriver(a.tuiDriver), tui.WithOutput(a.tuiOutput))

	if err := errors.Join(registry.Register(htmlRenderer), registry.Register(tuiRenderer)); err != nil {
		return nil, fmt.Errorf("app: register renderers: %w", err)
	}
	return registry, nil
}

func newAPI(cfg config.CiviCRMConfig, logger *zap.Logger) (civicrm.API, error) {
	if cfg.BaseURL == "" {
		logger.Warn("civicrm.base_url not set, using the in-process CRM")
		return civicrm.NewMemory(), nil
	}
	opts := cfg.ClientOptions()
	opts.Logger = logger.Named("civicrm")
	client, err := civicrm.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("app: civicrm client: %w", err)
	}
	return client, nil
}
