package session

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestAdapter mutates an outgoing request before it is sent.
// It is called once per attempt on a fresh clone of the original request.
type RequestAdapter interface {
	Adapt(req *http.Request) (*http.Request, error)
}

// AdapterFunc lets an ordinary function act as a RequestAdapter.
type AdapterFunc func(req *http.Request) (*http.Request, error)

// Adapt calls f(req).
func (f AdapterFunc) Adapt(req *http.Request) (*http.Request, error) {
	return f(req)
}

// ChainAdapters runs adapters in order, feeding each the previous result.
// Nil adapters are skipped.
func ChainAdapters(adapters ...RequestAdapter) RequestAdapter {
	return AdapterFunc(func(req *http.Request) (*http.Request, error) {
		var err error
		for _, a := range adapters {
			if a == nil {
				continue
			}
			if req, err = a.Adapt(req); err != nil {
				return nil, err
			}
		}
		return req, nil
	})
}

// HeaderAdapter sets fixed headers on every request.
func HeaderAdapter(headers map[string]string) RequestAdapter {
	return AdapterFunc(func(req *http.Request) (*http.Request, error) {
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// RequestIDAdapter stamps each attempt with a random UUID under header,
// unless the caller already set one.
func RequestIDAdapter(header string) RequestAdapter {
	if header == "" {
		header = "X-Request-ID"
	}
	return AdapterFunc(func(req *http.Request) (*http.Request, error) {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, uuid.New().String())
		}
		return req, nil
	})
}
