package auth

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/saturnines/nexus-gql/pkg/config"
	"github.com/saturnines/nexus-gql/pkg/errors"
)

// AuthCreator defines a function that creates an auth handler from config
type AuthCreator func(*config.Auth, *http.Client) (Handler, error)

// AuthRegistry maintains a registry of auth handler creators
type AuthRegistry struct {
	creators map[config.AuthType]AuthCreator
	mutex    sync.RWMutex
}

// NewAuthRegistry creates a new auth registry with default handlers
func NewAuthRegistry() *AuthRegistry {
	registry := &AuthRegistry{
		creators: make(map[config.AuthType]AuthCreator),
	}

	registry.Register(config.AuthTypeBasic, createBasicAuth)
	registry.Register(config.AuthTypeAPIKey, createAPIKeyAuth)
	registry.Register(config.AuthTypeBearer, createBearerAuth)
	registry.Register(config.AuthTypeOAuth2, createOAuth2Auth)
	return registry
}

// Register adds a new auth creator to the registry
func (r *AuthRegistry) Register(authType config.AuthType, creator AuthCreator) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.creators[authType] = creator
}

// Create creates an auth handler based on the config. client is used by
// handlers that talk to a token endpoint.
func (r *AuthRegistry) Create(authConfig *config.Auth, client *http.Client) (Handler, error) {
	r.mutex.RLock()
	creator, exists := r.creators[authConfig.Type]
	r.mutex.RUnlock()

	if !exists {
		return nil, errors.WrapError(
			fmt.Errorf("unsupported auth type: %s", authConfig.Type),
			errors.ErrConfiguration,
			"invalid auth type",
		)
	}

	return creator(authConfig, client)
}

func createBasicAuth(authConfig *config.Auth, _ *http.Client) (Handler, error) {
	if authConfig.Basic == nil {
		return nil, errors.WrapError(
			fmt.Errorf("basic auth configuration is required"),
			errors.ErrConfiguration,
			"create basic auth",
		)
	}
	return NewBasicAuth(authConfig.Basic.Username, authConfig.Basic.Password), nil
}

func createAPIKeyAuth(authConfig *config.Auth, _ *http.Client) (Handler, error) {
	if authConfig.APIKey == nil {
		return nil, errors.WrapError(
			fmt.Errorf("api key configuration is required"),
			errors.ErrConfiguration,
			"create API key auth",
		)
	}
	return NewAPIKeyAuth(
		authConfig.APIKey.Header,
		authConfig.APIKey.QueryParam,
		authConfig.APIKey.Value,
	), nil
}

func createBearerAuth(authConfig *config.Auth, _ *http.Client) (Handler, error) {
	if authConfig.Bearer == nil {
		return nil, errors.WrapError(
			fmt.Errorf("bearer token configuration is required"),
			errors.ErrConfiguration,
			"create bearer auth",
		)
	}
	return NewBearerAuth(authConfig.Bearer.Token), nil
}

func createOAuth2Auth(authConfig *config.Auth, client *http.Client) (Handler, error) {
	if authConfig.OAuth2 == nil {
		return nil, errors.WrapError(
			fmt.Errorf("oauth2 configuration is required"),
			errors.ErrConfiguration,
			"create OAuth2 auth",
		)
	}

	o, err := NewOAuth2Auth(
		authConfig.OAuth2.TokenURL,
		authConfig.OAuth2.ClientID,
		authConfig.OAuth2.ClientSecret,
		authConfig.OAuth2.Scope,
		authConfig.OAuth2.ExtraParams,
		authConfig.OAuth2.RefreshBefore,
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "create OAuth2 auth")
	}
	if client != nil {
		o.Client = client
	}
	return o, nil
}
