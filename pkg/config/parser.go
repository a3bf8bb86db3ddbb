package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a config file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the format from the file extension; anything that
// is not .toml is read as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

type ValidationError struct {
	Field   string
	Message string
}

type Validator interface {
	Validate(cfg *Transport) []ValidationError
}

// Returns the string representation of validation error
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DefaultValueSetter Handles the interface for setting default values
type DefaultValueSetter interface {
	SetDefaults(cfg *Transport)
}

// VariableExpander defines the interface for expanding variables
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander implements VariableExpander using environment variables
type EnvExpander struct{}

// Expand expands environment variables with the given data
func (e *EnvExpander) Expand(data []byte) []byte {
	expanded := os.Expand(string(data), os.Getenv)
	return []byte(expanded)
}

// Loader reads Transport configs
type Loader struct {
	expander      VariableExpander
	validators    []Validator
	defaultSetter DefaultValueSetter
}

// NewLoader creates a new Loader with the given components
func NewLoader(
	expander VariableExpander,
	defaultSetter DefaultValueSetter,
	validators ...Validator,
) *Loader {
	return &Loader{
		expander:      expander,
		validators:    validators,
		defaultSetter: defaultSetter,
	}
}

// NewDefaultLoader wires env expansion, defaults and every validator.
func NewDefaultLoader() *Loader {
	return NewLoader(
		&EnvExpander{},
		&TransportDefaults{},
		&RequiredFieldValidator{},
		&DurationValidator{},
		&AuthValidator{},
		&RetryValidator{},
	)
}

// Load a transport config from a YAML or TOML file
func (l *Loader) Load(path string) (*Transport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return l.Parse(data, FormatForPath(path))
}

// Parse decodes data in the given format, then applies defaults and validators.
func (l *Loader) Parse(data []byte, format Format) (*Transport, error) {
	if l.expander != nil {
		data = l.expander.Expand(data)
	}

	var cfg Transport
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	return l.Finish(&cfg)
}

// Finish applies defaults and validators to an already decoded config.
func (l *Loader) Finish(cfg *Transport) (*Transport, error) {
	if l.defaultSetter != nil {
		l.defaultSetter.SetDefaults(cfg)
	}

	var allErrors []ValidationError
	for _, validator := range l.validators {
		allErrors = append(allErrors, validator.Validate(cfg)...)
	}

	if len(allErrors) > 0 {
		return nil, fmt.Errorf("validation errors: %v", allErrors)
	}

	return cfg, nil
}

// TransportDefaults implements DefaultValueSetter for Transport
type TransportDefaults struct{}

// SetDefaults sets default values for Transport
func (d *TransportDefaults) SetDefaults(cfg *Transport) {
	if cfg.HTTP.Timeout == "" {
		cfg.HTTP.Timeout = "30s"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Retry != nil {
		if cfg.Retry.InitialBackoff == "" {
			cfg.Retry.InitialBackoff = "500ms"
		}
		if cfg.Retry.BackoffMultiplier == 0 {
			cfg.Retry.BackoffMultiplier = 2
		}
		if cfg.Retry.MaxBackoff == "" {
			cfg.Retry.MaxBackoff = "30s"
		}
	}
}

// RequiredFieldValidator validates required fields
type RequiredFieldValidator struct{}

// Validate checks that the endpoint is present and absolute
func (v *RequiredFieldValidator) Validate(cfg *Transport) []ValidationError {
	var errors []ValidationError

	if cfg.URL == "" {
		errors = append(errors, ValidationError{Field: "url", Message: "is required"})
	} else if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		errors = append(errors, ValidationError{Field: "url", Message: "must be an http or https URL"})
	}

	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		errors = append(errors, ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown log format: %s", cfg.Log.Format)})
	}

	return errors
}

// DurationValidator checks every duration string parses
type DurationValidator struct{}

// Validate checks duration fields
func (v *DurationValidator) Validate(cfg *Transport) []ValidationError {
	var errors []ValidationError

	check := func(field, value string) {
		if value == "" {
			return
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			errors = append(errors, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration: %q", value)})
		}
	}

	check("http.timeout", cfg.HTTP.Timeout)
	check("http.idle_conn_timeout", cfg.HTTP.IdleConnTimeout)
	if cfg.Retry != nil {
		check("retry.initial_backoff", cfg.Retry.InitialBackoff)
		check("retry.max_backoff", cfg.Retry.MaxBackoff)
	}

	return errors
}

// AuthValidator handles authentication validation
type AuthValidator struct{}

// Validate checks that authentication configuration is valid
func (v *AuthValidator) Validate(cfg *Transport) []ValidationError {
	var errors []ValidationError

	if cfg.Auth == nil {
		return errors
	}

	switch cfg.Auth.Type {
	case AuthTypeBasic:
		if cfg.Auth.Basic == nil {
			errors = append(errors, ValidationError{Field: "auth.basic", Message: "is required for basic auth"})
		} else if cfg.Auth.Basic.Username == "" {
			errors = append(errors, ValidationError{Field: "auth.basic.username", Message: "is required for basic auth"})
		}
	case AuthTypeAPIKey:
		if cfg.Auth.APIKey == nil {
			errors = append(errors, ValidationError{Field: "auth.api_key", Message: "is required for api_key auth"})
		} else {
			if cfg.Auth.APIKey.Value == "" {
				errors = append(errors, ValidationError{Field: "auth.api_key.value", Message: "is required for api_key auth"})
			}
			if cfg.Auth.APIKey.Header == "" && cfg.Auth.APIKey.QueryParam == "" {
				errors = append(errors, ValidationError{Field: "auth.api_key", Message: "either header or query_param must be specified for api_key auth"})
			}
		}
	case AuthTypeBearer:
		if cfg.Auth.Bearer == nil || cfg.Auth.Bearer.Token == "" {
			errors = append(errors, ValidationError{Field: "auth.bearer.token", Message: "is required for bearer auth"})
		}
	case AuthTypeOAuth2:
		if cfg.Auth.OAuth2 == nil {
			errors = append(errors, ValidationError{Field: "auth.oauth2", Message: "is required for oauth2 auth"})
		} else {
			if cfg.Auth.OAuth2.TokenURL == "" {
				errors = append(errors, ValidationError{Field: "auth.oauth2.token_url", Message: "is required for oauth2 auth"})
			}
			if cfg.Auth.OAuth2.ClientID == "" {
				errors = append(errors, ValidationError{Field: "auth.oauth2.client_id", Message: "is required for oauth2 auth"})
			}
			if cfg.Auth.OAuth2.ClientSecret == "" {
				errors = append(errors, ValidationError{Field: "auth.oauth2.client_secret", Message: "is required for oauth2 auth"})
			}
		}
	default:
		errors = append(errors, ValidationError{Field: "auth.type", Message: fmt.Sprintf("unknown auth type: %s", cfg.Auth.Type)})
	}

	return errors
}

// RetryValidator validates the retry block
type RetryValidator struct{}

// Validate checks retry bounds
func (v *RetryValidator) Validate(cfg *Transport) []ValidationError {
	var errors []ValidationError

	if cfg.Retry == nil {
		return errors
	}
	if cfg.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{Field: "retry.max_attempts", Message: "must be at least 1"})
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		errors = append(errors, ValidationError{Field: "retry.backoff_multiplier", Message: "must be at least 1"})
	}
	for _, status := range cfg.Retry.RetryableStatuses {
		if status < 100 || status > 599 {
			errors = append(errors, ValidationError{Field: "retry.retryable_statuses", Message: fmt.Sprintf("invalid HTTP status: %d", status)})
		}
	}

	return errors
}

// ParseDuration parses a validated duration string, returning fallback for "".
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
