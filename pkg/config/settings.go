package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	gvalidator "github.com/go-playground/validator/v10"

	coreerrors "github.com/milan604/restfetch/pkg/errors"
	"github.com/milan604/restfetch/pkg/observability"
)

// FetchSettings is everything needed to build a wrapper from configuration.
type FetchSettings struct {
	BaseURL         string         `mapstructure:"base_url" validate:"omitempty,url"`
	Cache           string         `mapstructure:"cache" validate:"oneof=default no-cache"`
	Format          string         `mapstructure:"format" validate:"oneof=default json"`
	Timeout         time.Duration  `mapstructure:"timeout" validate:"gte=0"`
	DefaultHeaders  map[string]any `mapstructure:"default_headers"`
	RequestIDHeader string         `mapstructure:"request_id_header"`

	Auth    AuthSettings           `mapstructure:"auth"`
	Log     LogSettings            `mapstructure:"log"`
	Tracing observability.Settings `mapstructure:"tracing"`
	Metrics MetricsSettings        `mapstructure:"metrics"`
}

// AuthSettings configures the refresh-token handler. RefreshURL may be
// relative to BaseURL.
type AuthSettings struct {
	RefreshURL   string        `mapstructure:"refresh_url" validate:"required_with=RefreshToken"`
	RefreshToken string        `mapstructure:"refresh_token"`
	RedisAddr    string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisKey     string        `mapstructure:"redis_key"`
	RedisTTL     time.Duration `mapstructure:"redis_ttl" validate:"gte=0"`
	RequireJWT   bool          `mapstructure:"require_jwt"`
}

type LogSettings struct {
	Level    string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Encoding string `mapstructure:"encoding" validate:"oneof=json console"`
}

type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Defaults are applied by New before any option.
func Defaults() map[string]any {
	return map[string]any{
		"cache":             "no-cache",
		"format":            "json",
		"timeout":           "30s",
		"request_id_header": "X-Request-ID",
		"log.level":         "info",
		"log.encoding":      "console",
		"tracing.enabled":   false,
		"metrics.addr":      ":9090",
	}
}

// SensitiveKeys are always redacted by MaskedSettings.
var SensitiveKeys = []string{"auth.refresh_token", "default_headers.authorization"}

// Load decodes and validates the current settings.
func (c *Config) Load() (FetchSettings, error) {
	var s FetchSettings
	if err := c.Unmarshal(&s); err != nil {
		return s, coreerrors.Wrap(err, "config: decode settings")
	}
	if err := Validate(s); err != nil {
		return s, err
	}
	return s, nil
}

// FieldError is a single settings validation problem, named by config key.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (fe FieldError) String() string {
	if fe.Param != "" {
		return fmt.Sprintf("%s failed on '%s' (param=%s)", fe.Field, fe.Tag, fe.Param)
	}
	return fmt.Sprintf("%s failed on '%s'", fe.Field, fe.Tag)
}

// ValidationError lists every invalid key.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.String()
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *gvalidator.Validate {
	v := gvalidator.New(gvalidator.WithRequiredStructEnabled())
	// report fields by their config key rather than the Go name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks s against its validate tags.
func Validate(s FetchSettings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs gvalidator.ValidationErrors
	if !coreerrors.As(err, &verrs) {
		return coreerrors.Wrap(err, "config: validate settings")
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: configKey(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// configKey turns "FetchSettings.auth.refresh_url" into "auth.refresh_url".
func configKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
