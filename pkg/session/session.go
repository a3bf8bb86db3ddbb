// Package session is the HTTP client used by the GraphQL transport. It owns
// the network I/O, the request adapter hook, and the retry policy hook.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/log"
)

// HTTPDoer is a minimal interface for HTTP clients
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// DataResponse is the outcome of one Execute/Do call after all retries.
//
// Err set and Response nil means no response was ever received. Err set and
// Response non-nil means the response arrived but the body could not be read.
type DataResponse struct {
	Request  *http.Request
	Response *http.Response
	Data     []byte
	Err      error
	Attempts int
}

// Cancellable is an in-flight request handle.
type Cancellable interface {
	Cancel()
}

// Session executes requests through an HTTPDoer.
type Session struct {
	doer    HTTPDoer
	adapter RequestAdapter
	retrier RetryPolicy
	logger  log.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPDoer swaps the underlying HTTPDoer.
func WithHTTPDoer(doer HTTPDoer) SessionOption {
	return func(s *Session) {
		s.doer = doer
	}
}

// WithAdapter installs the request adapter.
func WithAdapter(a RequestAdapter) SessionOption {
	return func(s *Session) {
		s.adapter = a
	}
}

// WithRetryPolicy installs the retry policy.
func WithRetryPolicy(p RetryPolicy) SessionOption {
	return func(s *Session) {
		s.retrier = p
	}
}

// WithLogger sets the session logger.
func WithLogger(l log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = log.OrNoop(l)
	}
}

// WithSleep replaces the wait between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) {
		s.sleep = sleep
	}
}

// NewSession creates a Session. Without options it sends through a
// default *http.Client with a 30 second timeout and never retries.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		doer:   &http.Client{Timeout: 30 * time.Second},
		logger: log.NoopLogger{},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs req in the background and calls completion at most once.
// Cancel before delivery cancels the request and suppresses completion.
func (s *Session) Execute(req *http.Request, completion func(*DataResponse)) Cancellable {
	ctx, cancel := context.WithCancel(req.Context())
	call := &call{cancel: cancel}

	go func() {
		defer cancel()
		dr := s.Do(req.WithContext(ctx))
		if call.state.CompareAndSwap(statePending, stateDelivered) {
			completion(dr)
		}
	}()

	return call
}

// Do runs the attempt loop synchronously.
func (s *Session) Do(req *http.Request) *DataResponse {
	ctx := req.Context()
	dr := &DataResponse{Request: req}

	for attempt := 1; ; attempt++ {
		dr.Attempts = attempt
		dr.Response, dr.Data, dr.Err = nil, nil, nil

		attemptReq, err := s.prepare(req)
		if err != nil {
			dr.Err = err
			return dr
		}
		dr.Request = attemptReq

		resp, err := s.doer.Do(attemptReq)
		if err != nil {
			dr.Err = err
		} else {
			dr.Response = resp
			dr.Data, dr.Err = readBody(resp)
		}

		if dr.Err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return dr
		}
		if s.retrier == nil {
			return dr
		}

		decision := s.retrier.Decide(attemptReq, &Failure{
			Attempt:  attempt,
			Err:      dr.Err,
			Response: dr.Response,
			Body:     dr.Data,
		})
		if !decision.Retry {
			return dr
		}

		s.logger.Warn("retrying request",
			log.String("url", req.URL.String()),
			log.Int("attempt", attempt),
			log.Int("status", statusOf(dr.Response)),
			log.Duration("delay", decision.Delay),
		)

		if err := s.sleep(ctx, decision.Delay); err != nil {
			// a canceled wait keeps the last response if there was one
			if dr.Response == nil {
				dr.Err = err
			}
			return dr
		}
	}
}

// prepare clones req with a fresh body and runs the adapter on the clone.
func (s *Session) prepare(req *http.Request) (*http.Request, error) {
	clone, err := cloneRequest(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrTransport, "clone request")
	}
	if s.adapter == nil {
		return clone, nil
	}
	adapted, err := s.adapter.Adapt(clone)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrAuthentication, "adapt request")
	}
	if adapted == nil {
		return nil, errors.WrapError(fmt.Errorf("adapter returned nil request"), errors.ErrConfiguration, "adapt request")
	}
	return adapted, nil
}

// cloneRequest makes a deep copy for safe body reuse
func cloneRequest(r *http.Request) (*http.Request, error) {
	r2 := r.Clone(r.Context())
	if r.Body == nil || r.Body == http.NoBody {
		return r2, nil
	}
	if r.GetBody != nil {
		body, err := r.GetBody()
		if err != nil {
			return nil, err
		}
		r2.Body = body
		return r2, nil
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	r2.Body = io.NopCloser(bytes.NewReader(buf))
	return r2, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return data, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	statePending int32 = iota
	stateDelivered
	stateCancelled
)

type call struct {
	state  atomic.Int32
	cancel context.CancelFunc
}

// Cancel implements Cancellable.
func (c *call) Cancel() {
	c.state.CompareAndSwap(statePending, stateCancelled)
	c.cancel()
}
