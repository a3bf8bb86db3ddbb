package graphql

import (
	"context"
	"sync"
)

// Result is the outcome of a Call.
type Result struct {
	Response *Response
	Err      error
}

// Call is an in-flight operation whose result arrives on a one-shot channel.
type Call struct {
	done      chan Result
	cancelled chan struct{}
	once      sync.Once
	handle    Cancellable
}

// Call dispatches op like Send but delivers the result through the
// returned Call instead of a handler.
func (t *Transport) Call(ctx context.Context, op Operation) (*Call, error) {
	c := &Call{
		done:      make(chan Result, 1),
		cancelled: make(chan struct{}),
	}
	handle, err := t.Send(ctx, op, func(resp *Response, err error) {
		c.done <- Result{Response: resp, Err: err}
	})
	if err != nil {
		return nil, err
	}
	c.handle = handle
	return c, nil
}

// Done receives the single Result. Nothing is sent if the call was
// cancelled before the response arrived.
func (c *Call) Done() <-chan Result {
	return c.done
}

// Cancel aborts the request.
func (c *Call) Cancel() {
	c.once.Do(func() {
		close(c.cancelled)
		c.handle.Cancel()
	})
}

// Wait blocks for the Result. It returns context.Canceled if the call was
// cancelled first, or ctx.Err() if ctx ends first.
func (c *Call) Wait(ctx context.Context) (*Response, error) {
	select {
	case r := <-c.done:
		return r.Response, r.Err
	case <-c.cancelled:
		// the result may have raced the cancel
		select {
		case r := <-c.done:
			return r.Response, r.Err
		default:
			return nil, context.Canceled
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do sends op and waits for the result. Cancelling ctx cancels the request.
func (t *Transport) Do(ctx context.Context, op Operation) (*Response, error) {
	c, err := t.Call(ctx, op)
	if err != nil {
		return nil, err
	}
	resp, err := c.Wait(ctx)
	if ctx.Err() != nil {
		c.Cancel()
	}
	return resp, err
}
