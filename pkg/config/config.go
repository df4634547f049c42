package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	coreerrors "github.com/milan604/restfetch/pkg/errors"
	"github.com/milan604/restfetch/pkg/logger"
)

const redacted = "***REDACTED***"

// Config is the wrapper around viper with extra helpers.
type Config struct {
	*viper.Viper

	log           logger.LogManager
	sensitiveKeys map[string]struct{}
	watch         bool

	mu       sync.Mutex
	onChange []func()
}

// Option is a functional option for New.
type Option func(*Config) error

// New creates a Config. A missing config file is not an error: defaults, env
// and flags may be all the caller wants.
//
//	cfg, err := config.New(
//	  config.WithFile("restfetch.yaml"),
//	  config.WithEnv("RESTFETCH"),
//	  config.WithPFlags(flags),
//	  config.WithWatch(nil),
//	)
func New(opts ...Option) (*Config, error) {
	cfg := &Config{
		Viper:         viper.New(),
		log:           logger.Nop(),
		sensitiveKeys: map[string]struct{}{},
	}
	for k, v := range Defaults() {
		cfg.SetDefault(k, v)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, coreerrors.Wrap(err, "config: applying option failed")
		}
	}

	loaded := true
	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !coreerrors.As(err, &notFound) && !coreerrors.Is(err, os.ErrNotExist) {
			return nil, coreerrors.Wrap(err, "config: read config")
		}
		cfg.log.DebugF("config: no config file loaded: %v", err)
		loaded = false
	}

	if cfg.watch && loaded {
		cfg.OnConfigChange(func(e fsnotify.Event) {
			cfg.log.InfoF("config: file changed: %s", e.Name)
			cfg.mu.Lock()
			callbacks := append([]func(){}, cfg.onChange...)
			cfg.mu.Unlock()
			for _, fn := range callbacks {
				fn()
			}
		})
		cfg.WatchConfig()
	}

	return cfg, nil
}

// WithDefaults sets default values on top of Defaults().
func WithDefaults(defaults map[string]any) Option {
	return func(c *Config) error {
		for k, v := range defaults {
			c.SetDefault(k, v)
		}
		return nil
	}
}

// WithFile sets an exact config file; the extension determines its type.
func WithFile(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		c.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			c.SetConfigType(ext)
		}
		return nil
	}
}

// WithConfigNamePaths sets config name (without ext) and search paths.
func WithConfigNamePaths(name string, paths ...string) Option {
	return func(c *Config) error {
		if name != "" {
			c.SetConfigName(name)
		}
		if len(paths) == 0 {
			paths = []string{".", "/etc/restfetch"}
		}
		for _, p := range paths {
			c.AddConfigPath(p)
		}
		return nil
	}
}

// WithEnv enables environment variable overrides.
// prefix = "RESTFETCH" means RESTFETCH_AUTH_REFRESH_URL overrides auth.refresh_url.
func WithEnv(prefix string) Option {
	return func(c *Config) error {
		if prefix != "" {
			c.SetEnvPrefix(prefix)
		}
		c.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		c.AutomaticEnv()
		return nil
	}
}

// WithPFlags binds a flag set. Flags must be defined by the application.
func WithPFlags(flags *pflag.FlagSet) Option {
	return func(c *Config) error {
		if flags == nil {
			flags = pflag.CommandLine
		}
		return c.BindPFlags(flags)
	}
}

// WithDotEnv merges key=val lines from a .env file. A missing file is ignored.
func WithDotEnv(path string) Option {
	return func(c *Config) error {
		if path == "" {
			path = ".env"
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		envV := viper.New()
		envV.SetConfigFile(path)
		envV.SetConfigType("env")
		if err := envV.ReadInConfig(); err != nil {
			return err
		}
		for _, k := range envV.AllKeys() {
			c.Set(k, envV.Get(k))
		}
		return nil
	}
}

// WithWatch enables hot reload of the config file. onChange, when not nil,
// runs after every successful reload; see also OnChange.
func WithWatch(onChange func()) Option {
	return func(c *Config) error {
		c.watch = true
		if onChange != nil {
			c.onChange = append(c.onChange, onChange)
		}
		return nil
	}
}

// WithSensitiveKeys registers keys which are redacted by MaskedSettings.
func WithSensitiveKeys(keys ...string) Option {
	return func(c *Config) error {
		for _, k := range keys {
			c.sensitiveKeys[strings.ToLower(k)] = struct{}{}
		}
		return nil
	}
}

// WithLogger sets the logger used for reload notices.
func WithLogger(l logger.LogManager) Option {
	return func(c *Config) error {
		if l != nil {
			c.log = l
		}
		return nil
	}
}

// OnChange registers a callback run after every reload. It only fires when
// the Config was created WithWatch.
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// MaskedSettings returns every key (dotted, flattened) with sensitive keys
// and anything below them redacted.
func (c *Config) MaskedSettings() map[string]any {
	out := map[string]any{}
	for _, k := range c.AllKeys() {
		if c.isSensitive(k) {
			out[k] = redacted
			continue
		}
		out[k] = c.Get(k)
	}
	return out
}

// SortedKeys is AllKeys in lexical order, for stable printing.
func (c *Config) SortedKeys() []string {
	keys := c.AllKeys()
	sort.Strings(keys)
	return keys
}

func (c *Config) isSensitive(key string) bool {
	for k := range c.sensitiveKeys {
		if key == k || strings.HasPrefix(key, k+".") {
			return true
		}
	}
	return false
}
