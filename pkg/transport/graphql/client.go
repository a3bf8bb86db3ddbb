package graphql

import (
	"context"
	"net/http"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/log"
	"github.com/saturnines/nexus-gql/pkg/session"
)

// Executor performs the network I/O for the Transport. *session.Session
// implements it.
type Executor interface {
	Execute(req *http.Request, completion func(*session.DataResponse)) session.Cancellable
}

// Cancellable cancels an in-flight Send.
type Cancellable = session.Cancellable

// CompletionHandler receives exactly one of resp or err.
type CompletionHandler func(resp *Response, err error)

// Transport sends GraphQL operations as HTTP POST requests.
// It is safe for concurrent use; configuration is fixed at construction.
type Transport struct {
	url                      string
	executor                 Executor
	sendOperationIdentifiers bool
	serializer               Serializer
	logger                   log.Logger
	onPanic                  func(*panics.Recovered)

	// completion handlers in flight, off the executor's goroutine
	workers sync.WaitGroup
}

// NewTransport creates a Transport posting to url through executor.
func NewTransport(url string, executor Executor, opts ...TransportOption) *Transport {
	t := &Transport{
		url:        url,
		executor:   executor,
		serializer: JSONFormat{},
		logger:     log.NoopLogger{},
		onPanic:    repanic,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL returns the endpoint.
func (t *Transport) URL() string {
	return t.url
}

// Send dispatches op and returns immediately. handler is called exactly
// once on a worker goroutine, unless the returned handle is cancelled
// before the response arrives, in which case it is not called at all.
//
// A non-nil error means nothing was sent: the operation could not be
// encoded (errors.ErrConfiguration, errors.ErrSerialization).
func (t *Transport) Send(ctx context.Context, op Operation, handler CompletionHandler) (Cancellable, error) {
	req, err := t.buildRequest(ctx, op)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("sending operation",
		log.String("url", t.url),
		log.Bool("persisted", t.sendOperationIdentifiers),
	)

	return t.executor.Execute(req, func(dr *session.DataResponse) {
		t.workers.Add(1)
		go t.deliver(op, dr, handler)
	}), nil
}

// deliver runs handler on the calling goroutine. A panicking handler is
// logged and passed to the panic handler, which crashes by default.
func (t *Transport) deliver(op Operation, dr *session.DataResponse, handler CompletionHandler) {
	defer t.workers.Done()

	resp, err := t.complete(op, dr)
	if err != nil {
		t.logger.Debug("operation failed", log.String("url", t.url), log.Err(err))
	}

	recovered := panics.Try(func() { handler(resp, err) })
	if recovered == nil {
		return
	}
	t.logger.Error("completion handler panicked",
		log.String("url", t.url),
		log.Any("panic", recovered.Value),
		log.String("stack", string(recovered.Stack)),
	)
	t.onPanic(recovered)
}

func repanic(r *panics.Recovered) {
	panic(r.AsError())
}

// complete classifies the executor's result.
func (t *Transport) complete(op Operation, dr *session.DataResponse) (*Response, error) {
	if dr.Response == nil {
		err := dr.Err
		if err == nil {
			err = context.Canceled
		}
		return nil, errors.WrapError(err, errors.ErrTransport, "send request")
	}

	status := dr.Response.StatusCode
	if dr.Err != nil || status < 200 || status >= 300 {
		return nil, &HTTPResponseError{
			Kind:       KindErrorResponse,
			StatusCode: status,
			Body:       dr.Data,
			Response:   dr.Response,
			Cause:      dr.Err,
		}
	}

	value, err := t.serializer.Deserialize(dr.Data)
	if err != nil {
		return nil, &HTTPResponseError{
			Kind:       KindInvalidResponse,
			StatusCode: status,
			Body:       dr.Data,
			Response:   dr.Response,
			Cause:      err,
		}
	}
	body, ok := value.(map[string]interface{})
	if !ok {
		return nil, &HTTPResponseError{
			Kind:       KindInvalidResponse,
			StatusCode: status,
			Body:       dr.Data,
			Response:   dr.Response,
		}
	}

	return NewResponse(op, body), nil
}

// Close waits for running completion handlers. Call it after the last Send.
// It never panics; handler panics are reported as they happen.
func (t *Transport) Close() {
	t.workers.Wait()
}
