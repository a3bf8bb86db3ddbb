package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/session"
)

const defaultRefreshBefore = 60

// TokenRefreshError represents a token refresh failure
type TokenRefreshError struct {
	Cause error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Cause)
}

func (e *TokenRefreshError) Unwrap() []error {
	return []error{errors.ErrTokenExpired, e.Cause}
}

// OAuth2Auth implements the client-credentials grant, reusing a refresh
// token when the server hands one out.
type OAuth2Auth struct {
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Scope         string
	ExtraParams   map[string]string
	RefreshBefore int // seconds before expiry to refresh
	Client        *http.Client

	mutex        sync.Mutex // held across refreshes so only one runs
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// TokenResponse represents the response from the OAuth2 token endpoint
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// NewOAuth2Auth creates a new OAuth2 auth handler
func NewOAuth2Auth(tokenURL, clientID, clientSecret, scope string, extraParams map[string]string, refreshBefore int) (*OAuth2Auth, error) {
	if tokenURL == "" {
		return nil, fmt.Errorf("token URL is required for OAuth2")
	}
	if clientID == "" {
		return nil, fmt.Errorf("client ID is required for OAuth2")
	}
	if clientSecret == "" {
		return nil, fmt.Errorf("client secret is required for OAuth2")
	}
	if refreshBefore <= 0 {
		refreshBefore = defaultRefreshBefore
	}

	return &OAuth2Auth{
		TokenURL:      tokenURL,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Scope:         scope,
		ExtraParams:   extraParams,
		RefreshBefore: refreshBefore,
		Client:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ApplyAuth adds the OAuth2 token to the request
func (o *OAuth2Auth) ApplyAuth(req *http.Request) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	margin := time.Duration(o.RefreshBefore) * time.Second
	if o.accessToken == "" || time.Until(o.expiresAt) <= margin {
		if err := o.refreshAccessToken(); err != nil {
			// a still-valid token is better than none
			if o.accessToken == "" || time.Now().After(o.expiresAt) {
				return &TokenRefreshError{Cause: err}
			}
		}
	}

	req.Header.Set("Authorization", "Bearer "+o.accessToken)
	return nil
}

// Invalidate drops the cached access token so the next ApplyAuth refreshes.
func (o *OAuth2Auth) Invalidate() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.accessToken = ""
	o.expiresAt = time.Time{}
}

// refreshAccessToken must be called with o.mutex held.
func (o *OAuth2Auth) refreshAccessToken() error {
	data := url.Values{}
	if o.refreshToken != "" {
		data.Set("grant_type", "refresh_token")
		data.Set("refresh_token", o.refreshToken)
	} else {
		data.Set("grant_type", "client_credentials")
	}
	data.Set("client_id", o.ClientID)
	data.Set("client_secret", o.ClientSecret)
	if o.Scope != "" {
		data.Set("scope", o.Scope)
	}
	for key, value := range o.ExtraParams {
		data.Set(key, value)
	}

	req, err := http.NewRequest(http.MethodPost, o.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// a rejected refresh token falls back to client credentials next time
		o.refreshToken = ""
		return fmt.Errorf("token request returned status %d: %s", resp.StatusCode, body)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("token response has no access_token")
	}

	o.accessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		o.refreshToken = tokenResp.RefreshToken
	}
	if tokenResp.ExpiresIn > 0 {
		o.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	} else {
		o.expiresAt = time.Now().Add(time.Hour)
	}

	return nil
}

// String returns a string representation of this auth method
func (o *OAuth2Auth) String() string {
	return fmt.Sprintf("OAuth2Auth(client_id: %s, url: %s)", o.ClientID, o.TokenURL)
}

// OAuth2RetryPolicy resends a request once after a 401 on its first
// attempt, with the cached token invalidated so the adapter fetches a new one.
func OAuth2RetryPolicy(o *OAuth2Auth) session.RetryPolicy {
	return session.RetryPolicyFunc(func(req *http.Request, f *session.Failure) session.Decision {
		if f.Attempt != 1 || f.StatusCode() != http.StatusUnauthorized {
			return session.GiveUp
		}
		o.Invalidate()
		return session.RetryAfter(0)
	})
}
