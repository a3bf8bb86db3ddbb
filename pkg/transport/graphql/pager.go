package graphql

import (
	"context"
	"fmt"
	"sync"
)

// CursorPager drives cursor paging by re-sending an operation with the
// cursor variable taken from the previous response. Every page is a
// separate request.
type CursorPager struct {
	// Immutable configuration
	transport   *Transport
	base        Operation
	cursorKey   string
	nextPath    []string
	hasNextPath []string

	// Mutable state (protected by mutex)
	mu      sync.Mutex
	cursor  string
	hasNext bool
	first   bool
}

// NewCursorPager returns a pager. nextPath points at the end cursor and
// hasNextPath at the hasNextPage flag, e.g.
// ["data","repos","pageInfo","endCursor"].
func NewCursorPager(
	transport *Transport,
	base Operation,
	cursorKey string,
	nextPath, hasNextPath []string,
) (*CursorPager, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if base == nil {
		return nil, fmt.Errorf("operation cannot be nil")
	}
	if cursorKey == "" {
		return nil, fmt.Errorf("cursorKey cannot be empty")
	}
	if len(nextPath) == 0 {
		return nil, fmt.Errorf("nextPath cannot be empty")
	}
	if len(hasNextPath) == 0 {
		return nil, fmt.Errorf("hasNextPath cannot be empty")
	}

	return &CursorPager{
		transport:   transport,
		base:        base,
		cursorKey:   cursorKey,
		nextPath:    nextPath,
		hasNextPath: hasNextPath,
		hasNext:     true,
		first:       true,
	}, nil
}

// Next fetches the next page. It returns (nil, nil) once the last page
// has been read. Pages are fetched one at a time.
func (p *CursorPager) Next(ctx context.Context) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.first && !p.hasNext {
		return nil, nil
	}

	op := p.base
	if !p.first {
		op = &pagedOperation{Operation: p.base, key: p.cursorKey, cursor: p.cursor}
	}

	resp, err := p.transport.Do(ctx, op)
	if err != nil {
		return nil, err
	}

	p.first = false

	cursor, _ := traverse(resp.Body, p.nextPath...).(string)
	hasNext, _ := traverse(resp.Body, p.hasNextPath...).(bool)
	// a missing cursor ends paging even if hasNextPage says otherwise
	p.cursor = cursor
	p.hasNext = hasNext && cursor != ""

	return resp, nil
}

// HasMore reports whether Next may return another page.
func (p *CursorPager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.first || p.hasNext
}

// Reset starts paging over from the first page.
func (p *CursorPager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = ""
	p.hasNext = true
	p.first = true
}

// pagedOperation overrides one variable of an Operation.
type pagedOperation struct {
	Operation
	key    string
	cursor string
}

func (o *pagedOperation) Variables() map[string]interface{} {
	base := o.Operation.Variables()
	vars := make(map[string]interface{}, len(base)+1)
	for k, v := range base {
		vars[k] = v
	}
	vars[o.key] = o.cursor
	return vars
}
