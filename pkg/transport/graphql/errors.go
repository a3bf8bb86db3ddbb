package graphql

import (
	"fmt"
	"net/http"

	"github.com/saturnines/nexus-gql/pkg/errors"
)

// ResponseErrorKind classifies an HTTPResponseError.
type ResponseErrorKind int

const (
	// KindErrorResponse is a status outside [200,300), or a failure after
	// the response headers arrived.
	KindErrorResponse ResponseErrorKind = iota + 1
	// KindInvalidResponse is a 2xx response whose body is not a JSON object.
	KindInvalidResponse
)

func (k ResponseErrorKind) String() string {
	switch k {
	case KindErrorResponse:
		return "errorResponse"
	case KindInvalidResponse:
		return "invalidResponse"
	default:
		return fmt.Sprintf("ResponseErrorKind(%d)", int(k))
	}
}

// HTTPResponseError carries the raw body and response metadata so callers
// can read the server's error details.
type HTTPResponseError struct {
	Kind       ResponseErrorKind
	StatusCode int
	Body       []byte
	Response   *http.Response // Body already consumed; use Body
	Cause      error
}

func (e *HTTPResponseError) Error() string {
	msg := fmt.Sprintf("%s: HTTP %d", e.Kind, e.StatusCode)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if len(e.Body) > 0 {
		msg += ": " + truncate(e.Body, 256)
	}
	return msg
}

// Is matches errors.ErrErrorResponse / errors.ErrInvalidResponse by kind.
func (e *HTTPResponseError) Is(target error) bool {
	switch e.Kind {
	case KindErrorResponse:
		return target == errors.ErrErrorResponse || target == errors.ErrHTTPResponse
	case KindInvalidResponse:
		return target == errors.ErrInvalidResponse || target == errors.ErrHTTPResponse
	}
	return false
}

func (e *HTTPResponseError) Unwrap() error {
	return e.Cause
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
