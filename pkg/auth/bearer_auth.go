package auth

import "net/http"

const bearerScheme = "Bearer "

// BearerAuth sends a static token. Tokens that expire belong in OAuth2Auth.
type BearerAuth struct {
	Token string
}

func NewBearerAuth(token string) *BearerAuth {
	return &BearerAuth{Token: token}
}

// ApplyAuth sets Authorization, replacing any value already on req.
func (b *BearerAuth) ApplyAuth(req *http.Request) error {
	if b.Token == "" {
		return invalidCredentials("bearer", "token is required")
	}
	req.Header.Set("Authorization", bearerScheme+b.Token)
	return nil
}

func (b *BearerAuth) String() string {
	return "BearerAuth(token: [REDACTED])"
}
