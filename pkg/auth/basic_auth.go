package auth

import "net/http"

// BasicAuth signs requests with RFC 7617 credentials. The password may be
// empty; the username may not.
type BasicAuth struct {
	Username string
	Password string
}

func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{Username: username, Password: password}
}

func (b *BasicAuth) ApplyAuth(req *http.Request) error {
	if b.Username == "" {
		return invalidCredentials("basic", "username is required")
	}
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// String omits the password.
func (b *BasicAuth) String() string {
	return "BasicAuth(username: " + b.Username + ")"
}
