package config

// Transport represents the full config for one GraphQL endpoint
type Transport struct {
	Name                     string            `yaml:"name" toml:"name"`                                                                 // Optional label used in logs
	URL                      string            `yaml:"url" toml:"url"`                                                                   // Required: GraphQL endpoint
	SendOperationIdentifiers bool              `yaml:"send_operation_identifiers,omitempty" toml:"send_operation_identifiers,omitempty"` // Persisted-query mode
	Headers                  map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`                                       // Fixed request headers
	RequestIDHeader          string            `yaml:"request_id_header,omitempty" toml:"request_id_header,omitempty"`                   // Stamp each attempt with a UUID
	HTTP                     HTTPClient        `yaml:"http,omitempty" toml:"http,omitempty"`
	Auth                     *Auth             `yaml:"auth,omitempty" toml:"auth,omitempty"`
	Retry                    *Retry            `yaml:"retry,omitempty" toml:"retry,omitempty"`
	Log                      Log               `yaml:"log,omitempty" toml:"log,omitempty"`
}

// HTTPClient configures the underlying *http.Client.
// Durations are strings ("30s") so YAML and TOML read them the same way.
type HTTPClient struct {
	Timeout            string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	MaxIdleConns       int    `yaml:"max_idle_conns,omitempty" toml:"max_idle_conns,omitempty"`
	IdleConnTimeout    string `yaml:"idle_conn_timeout,omitempty" toml:"idle_conn_timeout,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty" toml:"insecure_skip_verify,omitempty"`
}

// Auth defines auth methods.
type Auth struct {
	Type   AuthType    `yaml:"type" toml:"type"`
	Basic  *BasicAuth  `yaml:"basic,omitempty" toml:"basic,omitempty"`
	APIKey *APIKeyAuth `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	Bearer *BearerAuth `yaml:"bearer,omitempty" toml:"bearer,omitempty"`
	OAuth2 *OAuth2Auth `yaml:"oauth2,omitempty" toml:"oauth2,omitempty"`
}

// AuthType defines current supported authentication types
type AuthType string

const (
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeOAuth2 AuthType = "oauth2"
)

// BasicAuth contains auth credentials for the api
type BasicAuth struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// APIKeyAuth contains API details
type APIKeyAuth struct {
	Header     string `yaml:"header,omitempty" toml:"header,omitempty"`
	QueryParam string `yaml:"query_param,omitempty" toml:"query_param,omitempty"`
	Value      string `yaml:"value" toml:"value"`
}

// BearerAuth holds a static token
type BearerAuth struct {
	Token string `yaml:"token" toml:"token"`
}

// OAuth2Auth contains OAuth2 client-credentials details
type OAuth2Auth struct {
	TokenURL      string            `yaml:"token_url" toml:"token_url"`
	ClientID      string            `yaml:"client_id" toml:"client_id"`
	ClientSecret  string            `yaml:"client_secret" toml:"client_secret"`
	Scope         string            `yaml:"scope,omitempty" toml:"scope,omitempty"`
	ExtraParams   map[string]string `yaml:"extra_params,omitempty" toml:"extra_params,omitempty"`
	RefreshBefore int               `yaml:"refresh_before,omitempty" toml:"refresh_before,omitempty"` // seconds
}

// Retry configures the exponential backoff policy
type Retry struct {
	MaxAttempts       int     `yaml:"max_attempts" toml:"max_attempts"`
	InitialBackoff    string  `yaml:"initial_backoff,omitempty" toml:"initial_backoff,omitempty"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty" toml:"backoff_multiplier,omitempty"`
	MaxBackoff        string  `yaml:"max_backoff,omitempty" toml:"max_backoff,omitempty"`
	RetryableStatuses []int   `yaml:"retryable_statuses,omitempty" toml:"retryable_statuses,omitempty"`
}

// Log selects the logger
type Log struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`   // debug, info, warn, error, disabled
	Format string `yaml:"format,omitempty" toml:"format,omitempty"` // console or json
}
