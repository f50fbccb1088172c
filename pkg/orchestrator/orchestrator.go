package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	theme "github.com/goliatone/go-theme"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/render"
	"github.com/goliatone/go-formcrm/pkg/renderers/html"
	"github.com/goliatone/go-formcrm/pkg/transient"
)

const (
	defaultRendererName   = html.Name
	defaultSessionTTL     = time.Hour
	defaultSuccessMessage = "Thank you, your details have been saved."
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithCatalog sets the forms the orchestrator can resolve by ID.
func WithCatalog(catalog *form.Catalog) Option {
	return func(o *Orchestrator) {
		o.catalog = catalog
	}
}

// WithHost injects the processor host.
func WithHost(host *processor.Host) Option {
	return func(o *Orchestrator) {
		o.host = host
	}
}

// WithRegistry injects a renderer registry.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefaultRenderer overrides the renderer used when a request omits an
// explicit Renderer field.
func WithDefaultRenderer(name string) Option {
	return func(o *Orchestrator) {
		o.defaultRenderer = name
	}
}

// WithStore sets the transient store used to seed contacts.
func WithStore(store transient.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithSessionTTL sets how long seeded transients live.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.sessionTTL = ttl
		}
	}
}

// WithSuccessMessage changes the note shown after a submission that no
// processor halted.
func WithSuccessMessage(message string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(message) != "" {
			o.successMessage = message
		}
	}
}

// WithIDGenerator overrides session and process ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithThemeSelector resolves request theme names into renderer theme
// configuration. Without a selector forms render unthemed.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(o *Orchestrator) {
		o.themes = selector
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator coordinates catalog lookup, render filters, processors, and
// renderers. Missing dependencies fall back to built-in implementations (an
// empty catalog, a bare host, the HTML renderer).
type Orchestrator struct {
	catalog         *form.Catalog
	host            *processor.Host
	registry        *render.Registry
	store           transient.Store
	themes          theme.ThemeSelector
	defaultRenderer string
	sessionTTL      time.Duration
	successMessage  string
	newID           func() string
	logger          *zap.Logger
	initialiseErr   error
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		defaultRenderer: defaultRendererName,
		sessionTTL:      defaultSessionTTL,
		successMessage:  defaultSuccessMessage,
		newID:           uuid.NewString,
		logger:          zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Request describes a render.
type Request struct {
	// FormID selects a catalog form. Ignored when Form is set.
	FormID string
	// Form bypasses the catalog.
	Form *form.Form
	// SessionID identifies the visitor's transient object.
	SessionID string
	// Renderer names the renderer; empty selects the default.
	Renderer string
	// RenderOptions carries values, errors, and notes for the renderer.
	RenderOptions render.RenderOptions
	// ThemeName and ThemeVariant select a theme; empty uses the selector's
	// defaults.
	ThemeName    string
	ThemeVariant string
}

// SubmitRequest describes a submission.
type SubmitRequest struct {
	FormID    string
	Form      *form.Form
	SessionID string
	Renderer  string
	// Values are the submitted field values keyed by field ID.
	Values map[string]any
	// Meta carries request metadata (ip, referer, user agent).
	Meta map[string]string
	// Action is passed through to the re-rendered form.
	Action       string
	ThemeName    string
	ThemeVariant string
}

// SubmitResult reports what happened to a submission.
type SubmitResult struct {
	Submission form.Submission
	Outcome    processor.Outcome
	// Errors holds field-level validation messages. Processors do not run
	// when it is non-empty.
	Errors map[string][]string
	// Output is the re-rendered form carrying the notes.
	Output      []byte
	ContentType string
}

// Accepted reports whether processors ran and none halted the submission.
func (r SubmitResult) Accepted() bool {
	return len(r.Errors) == 0 && !r.Outcome.Halted
}

// NewSessionID mints a session ID.
func (o *Orchestrator) NewSessionID() string {
	return o.newID()
}

// Form resolves a form from the catalog.
func (o *Orchestrator) Form(id string) (form.Form, error) {
	if o.catalog == nil {
		return form.Form{}, errors.New("orchestrator: catalog is nil")
	}
	f, ok := o.catalog.Get(id)
	if !ok {
		return form.Form{}, fmt.Errorf("orchestrator: %w: %q", ErrFormNotFound, id)
	}
	return f, nil
}

// Prepare runs the render filters for a session and returns the form that
// would be displayed.
func (o *Orchestrator) Prepare(ctx context.Context, formID string, f *form.Form, sessionID string) (form.Form, error) {
	if ctx == nil {
		return form.Form{}, errors.New("orchestrator: context is required")
	}
	if err := o.initialiseErr; err != nil {
		return form.Form{}, err
	}
	base, err := o.resolveForm(formID, f)
	if err != nil {
		return form.Form{}, err
	}
	prepared, err := o.host.Render(ctx, base, sessionID)
	if err != nil {
		return form.Form{}, fmt.Errorf("orchestrator: render filters: %w", err)
	}
	return prepared, nil
}

// Generate pre-renders the form for the session and renders it.
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]byte, string, error) {
	prepared, err := o.Prepare(ctx, req.FormID, req.Form, req.SessionID)
	if err != nil {
		return nil, "", err
	}
	opts := req.RenderOptions
	if opts.Theme, err = o.selectTheme(req.ThemeName, req.ThemeVariant); err != nil {
		return nil, "", err
	}
	return o.renderForm(ctx, prepared, req.SessionID, req.Renderer, opts)
}

// Submit validates the submission, runs the processors, and re-renders the
// form with the resulting notes. A halted submission keeps the visitor's
// values; an accepted one shows the freshly pre-rendered form.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if ctx == nil {
		return SubmitResult{}, errors.New("orchestrator: context is required")
	}
	if err := o.initialiseErr; err != nil {
		return SubmitResult{}, err
	}
	base, err := o.resolveForm(req.FormID, req.Form)
	if err != nil {
		return SubmitResult{}, err
	}

	submission := form.Submission{
		FormID:    base.ID,
		ProcessID: o.newID(),
		SessionID: req.SessionID,
		Values:    req.Values,
		Meta:      req.Meta,
	}
	result := SubmitResult{Submission: submission}
	opts := render.RenderOptions{Action: req.Action, Values: req.Values}
	if opts.Theme, err = o.selectTheme(req.ThemeName, req.ThemeVariant); err != nil {
		return result, err
	}

	if errs := render.RequiredErrors(base, req.Values); len(errs) > 0 {
		result.Errors = errs
		opts.Errors = errs
		result.Output, result.ContentType, err = o.renderForm(ctx, base, req.SessionID, req.Renderer, opts)
		return result, err
	}

	outcome, err := o.host.Submit(ctx, base, submission)
	if err != nil {
		return result, fmt.Errorf("orchestrator: submit: %w", err)
	}
	result.Outcome = outcome
	opts.Notes = outcome.Notes

	o.logger.Info("submission processed",
		zap.String("form", base.ID),
		zap.String("process_id", submission.ProcessID),
		zap.Bool("halted", outcome.Halted),
		zap.Int("notes", len(outcome.Notes)),
	)

	display := base
	if !outcome.Halted {
		opts.Notes = append(opts.Notes, processor.Note{Type: processor.NoteSuccess, Message: o.successMessage})
		opts.Values = nil
		display, err = o.host.Render(ctx, base, req.SessionID)
		if err != nil {
			return result, fmt.Errorf("orchestrator: render filters: %w", err)
		}
	}

	result.Output, result.ContentType, err = o.renderForm(ctx, display, req.SessionID, req.Renderer, opts)
	return result, err
}

// SeedContact records a resolved contact ID on the session's transient
// object, the way a contact processor would.
func (o *Orchestrator) SeedContact(ctx context.Context, sessionID, link string, contactID int64) error {
	if o.store == nil {
		return errors.New("orchestrator: transient store is nil")
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("orchestrator: session id is required")
	}
	if strings.TrimSpace(link) == "" {
		return errors.New("orchestrator: contact link is required")
	}
	t, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("orchestrator: load transient: %w", err)
	}
	t.SetContact(link, contactID)
	if err := o.store.Save(ctx, t, o.sessionTTL); err != nil {
		return fmt.Errorf("orchestrator: save transient: %w", err)
	}
	return nil
}

func (o *Orchestrator) selectTheme(name, variant string) (*theme.RendererConfig, error) {
	if o.themes == nil {
		return nil, nil
	}
	selection, err := o.themes.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: select theme: %w", err)
	}
	return render.ThemeConfig(selection), nil
}

func (o *Orchestrator) resolveForm(formID string, f *form.Form) (form.Form, error) {
	if f != nil {
		return f.Clone(), nil
	}
	if strings.TrimSpace(formID) == "" {
		return form.Form{}, errors.New("orchestrator: form id is required")
	}
	return o.Form(formID)
}

func (o *Orchestrator) renderForm(ctx context.Context, f form.Form, sessionID, name string, opts render.RenderOptions) ([]byte, string, error) {
	renderer, err := o.rendererFor(name)
	if err != nil {
		return nil, "", err
	}
	hidden := []render.HiddenField{render.FormIDField(f.ID)}
	if sessionID != "" {
		hidden = append(hidden, render.SessionField(sessionID))
	}
	opts.Hidden = render.MergeHiddenFields(opts.Hidden, hidden...)

	output, err := renderer.Render(ctx, f, opts)
	if err != nil {
		return nil, "", fmt.Errorf("orchestrator: render output: %w", err)
	}
	return output, renderer.ContentType(), nil
}

func (o *Orchestrator) rendererFor(name string) (render.Renderer, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: renderer registry is nil")
	}

	target := name
	if target == "" {
		target = o.defaultRenderer
	}

	if target != "" {
		renderer, err := o.registry.Get(target)
		if err == nil {
			return renderer, nil
		}
		if name != "" {
			return nil, fmt.Errorf("orchestrator: renderer %q: %w", name, err)
		}
	}

	renderer, err := o.registry.Resolve("")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return renderer, nil
}

func (o *Orchestrator) applyDefaults() {
	if o.catalog == nil {
		o.catalog = form.NewCatalog()
	}
	if o.host == nil {
		o.host = processor.NewHost(processor.WithLogger(o.logger))
	}
	if o.registry == nil {
		o.registry = render.NewRegistry(defaultRendererName)
		renderer, err := html.New()
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default renderer: %w", err)
			return
		}
		if err := o.registry.Register(renderer); err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default renderer: %w", err)
		}
	}
	if o.defaultRenderer == "" {
		o.defaultRenderer = defaultRendererName
	}
}
