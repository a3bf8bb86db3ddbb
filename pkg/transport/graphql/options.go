package graphql

import (
	"github.com/sourcegraph/conc/panics"

	"github.com/saturnines/nexus-gql/pkg/log"
)

// TransportOption configures the Transport.
type TransportOption func(*Transport)

// WithSendOperationIdentifiers sends {"id","variables"} instead of the
// full document, for servers with persisted queries.
func WithSendOperationIdentifiers(enabled bool) TransportOption {
	return func(t *Transport) {
		t.sendOperationIdentifiers = enabled
	}
}

// WithSerializer swaps the wire format.
func WithSerializer(s Serializer) TransportOption {
	return func(t *Transport) {
		t.serializer = s
	}
}

// WithLogger sets the transport logger.
func WithLogger(l log.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = log.OrNoop(l)
	}
}

// WithPanicHandler is called, on the worker goroutine, when a completion
// handler panics. The default re-panics, which crashes the process.
func WithPanicHandler(fn func(*panics.Recovered)) TransportOption {
	return func(t *Transport) {
		if fn != nil {
			t.onPanic = fn
		}
	}
}
