// Package auth provides credential handlers that plug into the session's
// request adapter hook.
package auth

import (
	"fmt"
	"net/http"

	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/session"
)

// Handler defines the interface for auth handlers
type Handler interface {
	ApplyAuth(req *http.Request) error
}

// Adapter turns a Handler into a session.RequestAdapter.
func Adapter(h Handler) session.RequestAdapter {
	return session.AdapterFunc(func(req *http.Request) (*http.Request, error) {
		if err := h.ApplyAuth(req); err != nil {
			return nil, err
		}
		return req, nil
	})
}

// invalidCredentials reports a handler that cannot sign requests as
// configured. Callers see errors.ErrConfiguration.
func invalidCredentials(method, problem string) error {
	return errors.WrapError(fmt.Errorf("%s", problem), errors.ErrConfiguration, "apply "+method+" auth")
}

// APIKeyAuth implements the Handler interface for API key authentication
type APIKeyAuth struct {
	HeaderName string // Header name for header-based auth (e.g., "X-API-Key")
	QueryParam string // Query parameter name for query-based auth (e.g., "api_key")
	Value      string
}

// NewAPIKeyAuth creates a new API key authentication handler
func NewAPIKeyAuth(headerName, queryParam, value string) *APIKeyAuth {
	return &APIKeyAuth{
		HeaderName: headerName,
		QueryParam: queryParam,
		Value:      value,
	}
}

// ApplyAuth adds the API key to the request, either as a header or query parameter
func (a *APIKeyAuth) ApplyAuth(req *http.Request) error {
	if a.Value == "" {
		return invalidCredentials("API key", "API key value is required")
	}
	if a.HeaderName == "" && a.QueryParam == "" {
		return invalidCredentials("API key", "API key auth requires either header name or query parameter name")
	}

	if a.HeaderName != "" {
		req.Header.Set(a.HeaderName, a.Value)
	}

	if a.QueryParam != "" {
		query := req.URL.Query()
		query.Set(a.QueryParam, a.Value)
		req.URL.RawQuery = query.Encode()
	}

	return nil
}

// String returns a string representation of this auth method
func (a *APIKeyAuth) String() string {
	if a.HeaderName != "" {
		return fmt.Sprintf("APIKeyAuth(header: %s)", a.HeaderName)
	}
	return fmt.Sprintf("APIKeyAuth(query: %s)", a.QueryParam)
}
