// Package config loads runtime settings from an optional YAML file, FORMCRM_
// environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	theme "github.com/goliatone/go-theme"
	"github.com/spf13/viper"

	"github.com/goliatone/go-formcrm/pkg/civicrm"
	"github.com/goliatone/go-formcrm/pkg/renderers/html"
	"github.com/goliatone/go-formcrm/pkg/transient"
)

// EnvPrefix is prepended to every environment override, e.g.
// FORMCRM_CIVICRM_BASE_URL.
const EnvPrefix = "FORMCRM"

// Config is the full runtime configuration.
type Config struct {
	CiviCRM   CiviCRMConfig   `mapstructure:"civicrm"`
	Transient TransientConfig `mapstructure:"transient"`
	Server    ServerConfig    `mapstructure:"server"`
	Forms     FormsConfig     `mapstructure:"forms"`
	Theme     ThemeConfig     `mapstructure:"theme"`
	Log       LogConfig       `mapstructure:"log"`
}

// CiviCRMConfig points at the CRM REST endpoint. An empty BaseURL selects the
// in-process CRM.
type CiviCRMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Path         string        `mapstructure:"path"`
	APIKey       string        `mapstructure:"api_key"`
	SiteKey      string        `mapstructure:"site_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
}

// TransientConfig selects the transient store backend.
type TransientConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	DSN           string        `mapstructure:"dsn"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CookieName   string        `mapstructure:"cookie_name"`
	// SeedContacts mounts PUT /sessions/{id}/contacts/{link}. Development
	// only: it is refused together with civicrm.base_url.
	SeedContacts bool `mapstructure:"seed_contacts"`
}

// FormsConfig locates form definitions.
type FormsConfig struct {
	Dir string `mapstructure:"dir"`
}

// ThemeConfig describes a single theme for the HTML renderer. An empty Name
// renders unthemed.
type ThemeConfig struct {
	Name         string            `mapstructure:"name"`
	Variant      string            `mapstructure:"variant"`
	Tokens       map[string]string `mapstructure:"tokens"`
	AssetsPrefix string            `mapstructure:"assets_prefix"`
	Stylesheet   string            `mapstructure:"stylesheet"`
	// Variants maps a variant name to the tokens it overrides.
	Variants map[string]map[string]string `mapstructure:"variants"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("civicrm.base_url", "")
	v.SetDefault("civicrm.path", civicrm.DefaultPath)
	v.SetDefault("civicrm.api_key", "")
	v.SetDefault("civicrm.site_key", "")
	v.SetDefault("civicrm.timeout", 30*time.Second)
	v.SetDefault("civicrm.retry_count", 2)
	v.SetDefault("civicrm.retry_wait", 500*time.Millisecond)
	v.SetDefault("civicrm.retry_max_wait", 4*time.Second)

	v.SetDefault("transient.backend", "memory")
	v.SetDefault("transient.ttl", time.Hour)
	v.SetDefault("transient.sweep_interval", time.Minute)
	v.SetDefault("transient.dsn", "")
	v.SetDefault("transient.redis.addr", "")
	v.SetDefault("transient.redis.password", "")
	v.SetDefault("transient.redis.db", 0)
	v.SetDefault("transient.redis.prefix", "formcrm:transient:")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cookie_name", "formcrm_session")
	v.SetDefault("server.seed_contacts", false)

	v.SetDefault("forms.dir", "forms")

	v.SetDefault("theme.name", "")
	v.SetDefault("theme.variant", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads path (when non-empty) and applies env overrides. A missing file
// is an error only when path was given explicitly.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("formcrm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

// Normalize trims and lower-cases enumerated values.
func (c *Config) Normalize() {
	c.CiviCRM.BaseURL = strings.TrimSpace(c.CiviCRM.BaseURL)
	c.Transient.Backend = strings.ToLower(strings.TrimSpace(c.Transient.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.Transient.Backend {
	case "", "memory":
	case "redis":
		if c.Transient.Redis.Addr == "" {
			errs = append(errs, errors.New("config: transient.redis.addr is required for the redis backend"))
		}
	case "sqlite", "mysql", "postgres", "postgresql":
		if strings.TrimSpace(c.Transient.DSN) == "" {
			errs = append(errs, fmt.Errorf("config: transient.dsn is required for the %s backend", c.Transient.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown transient backend %q", c.Transient.Backend))
	}
	if c.CiviCRM.BaseURL != "" && c.CiviCRM.APIKey == "" {
		errs = append(errs, errors.New("config: civicrm.api_key is required with civicrm.base_url"))
	}
	if c.Theme.Name == "" && c.Theme.Variant != "" {
		errs = append(errs, errors.New("config: theme.variant requires theme.name"))
	}
	if c.Theme.Variant != "" {
		if _, ok := c.Theme.Variants[c.Theme.Variant]; !ok {
			errs = append(errs, fmt.Errorf("config: theme variant %q is not defined under theme.variants", c.Theme.Variant))
		}
	}
	if c.CiviCRM.BaseURL != "" && c.Server.SeedContacts {
		errs = append(errs, errors.New("config: server.seed_contacts cannot be enabled with civicrm.base_url"))
	}
	return errors.Join(errs...)
}

// ClientOptions maps the CRM section onto civicrm.ClientOptions.
func (c CiviCRMConfig) ClientOptions() civicrm.ClientOptions {
	return civicrm.ClientOptions{
		BaseURL:      c.BaseURL,
		Path:         c.Path,
		APIKey:       c.APIKey,
		SiteKey:      c.SiteKey,
		Timeout:      c.Timeout,
		RetryCount:   c.RetryCount,
		RetryWait:    c.RetryWait,
		RetryMaxWait: c.RetryMaxWait,
	}
}

// StoreOptions maps the transient section onto transient.Options.
func (c TransientConfig) StoreOptions() transient.Options {
	return transient.Options{
		Backend:       c.Backend,
		SweepInterval: c.SweepInterval,
		DSN:           c.DSN,
		Redis: transient.RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		},
	}
}

// Manifest builds the go-theme manifest for the configured theme, or nil when
// no theme is set.
func (c ThemeConfig) Manifest() *theme.Manifest {
	if strings.TrimSpace(c.Name) == "" {
		return nil
	}
	m := &theme.Manifest{
		Name:    c.Name,
		Version: "config",
		Tokens:  c.Tokens,
		Assets:  theme.Assets{Prefix: c.AssetsPrefix},
	}
	if c.Stylesheet != "" {
		m.Assets.Files = map[string]string{html.StylesheetAsset: c.Stylesheet}
	}
	if len(c.Variants) > 0 {
		m.Variants = make(map[string]theme.Variant, len(c.Variants))
		for name, tokens := range c.Variants {
			m.Variants[name] = theme.Variant{Tokens: tokens}
		}
	}
	return m
}
