package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/session"
)

type testOp struct {
	document  string
	variables map[string]interface{}
	id        string
}

func (o testOp) QueryDocument() string              { return o.document }
func (o testOp) Variables() map[string]interface{} { return o.variables }
func (o testOp) OperationIdentifier() string        { return o.id }

var heroOp = testOp{
	document:  `query Hero($episode: Episode) { hero(episode: $episode) { name } }`,
	variables: map[string]interface{}{"episode": "JEDI"},
	id:        "hero-v1",
}

// recordingExecutor counts Execute calls without doing any I/O.
type recordingExecutor struct {
	calls int32
}

func (e *recordingExecutor) Execute(req *http.Request, completion func(*session.DataResponse)) session.Cancellable {
	atomic.AddInt32(&e.calls, 1)
	return nil
}

func serve(t *testing.T, status int, body string) (*httptest.Server, chan map[string]interface{}) {
	t.Helper()
	requests := make(chan map[string]interface{}, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		requests <- payload

		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func sendAndWait(t *testing.T, tr *Transport, op Operation) (*Response, error) {
	t.Helper()
	type result struct {
		resp *Response
		err  error
	}
	results := make(chan result, 2)
	_, err := tr.Send(context.Background(), op, func(resp *Response, err error) {
		results <- result{resp, err}
	})
	require.NoError(t, err)

	var r result
	select {
	case r = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	tr.Close()
	select {
	case <-results:
		t.Fatal("handler called more than once")
	default:
	}
	return r.resp, r.err
}

func TestRequestBody(t *testing.T) {
	t.Run("QueryMode", func(t *testing.T) {
		body, err := RequestBody(heroOp, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"query":     heroOp.document,
			"variables": heroOp.variables,
		}, body)
	})

	t.Run("IdentifierMode", func(t *testing.T) {
		body, err := RequestBody(heroOp, true)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"id":        "hero-v1",
			"variables": heroOp.variables,
		}, body)
	})

	t.Run("IdentifierModeWithoutIdentifier", func(t *testing.T) {
		_, err := RequestBody(testOp{document: "{ a }"}, true)
		assert.ErrorIs(t, err, ErrMissingOperationIdentifier)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})
}

func TestSendMissingIdentifierMakesNoNetworkCall(t *testing.T) {
	exec := &recordingExecutor{}
	tr := NewTransport("http://example.com/graphql", exec, WithSendOperationIdentifiers(true))

	called := false
	handle, err := tr.Send(context.Background(), testOp{document: "{ a }"}, func(*Response, error) {
		called = true
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Nil(t, handle)
	assert.False(t, called)
	assert.Equal(t, int32(0), atomic.LoadInt32(&exec.calls))
}

func TestSendUnserializableVariables(t *testing.T) {
	exec := &recordingExecutor{}
	tr := NewTransport("http://example.com/graphql", exec)

	op := testOp{document: "{ a }", variables: map[string]interface{}{"bad": math.Inf(1)}}
	_, err := tr.Send(context.Background(), op, func(*Response, error) {})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSerialization))
	assert.Equal(t, int32(0), atomic.LoadInt32(&exec.calls))
}

func TestSendSuccess(t *testing.T) {
	server, requests := serve(t, http.StatusOK, `{"data":{"x":1}}`)
	tr := NewTransport(server.URL, session.NewSession())

	resp, err := sendAndWait(t, tr, heroOp)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, heroOp, resp.Operation)
	assert.Equal(t, map[string]interface{}{"x": json.Number("1")}, resp.Data())
	assert.Contains(t, resp.Body, "data")
	assert.Empty(t, resp.Errors())

	payload := <-requests
	assert.Equal(t, heroOp.document, payload["query"])
	assert.Equal(t, map[string]interface{}{"episode": "JEDI"}, payload["variables"])
	assert.NotContains(t, payload, "id")
}

func TestSendPersistedIdentifier(t *testing.T) {
	server, requests := serve(t, http.StatusOK, `{"data":{}}`)
	tr := NewTransport(server.URL, session.NewSession(), WithSendOperationIdentifiers(true))

	_, err := sendAndWait(t, tr, heroOp)
	require.NoError(t, err)

	payload := <-requests
	assert.Equal(t, "hero-v1", payload["id"])
	assert.NotContains(t, payload, "query")
}

func TestSendErrorStatus(t *testing.T) {
	server, _ := serve(t, http.StatusNotFound, `not found`)
	tr := NewTransport(server.URL, session.NewSession())

	resp, err := sendAndWait(t, tr, heroOp)
	assert.Nil(t, resp)

	var httpErr *HTTPResponseError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, KindErrorResponse, httpErr.Kind)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "not found", string(httpErr.Body))
	assert.Equal(t, http.StatusNotFound, httpErr.Response.StatusCode)
	assert.True(t, errors.Is(err, errors.ErrErrorResponse))
	assert.False(t, errors.Is(err, errors.ErrInvalidResponse))
}

func TestSendGraphQLErrorsPassThrough(t *testing.T) {
	body := `{"data":null,"errors":[{"message":"boom","path":["hero"],"locations":[{"line":1,"column":3}]}]}`
	server, _ := serve(t, http.StatusOK, body)
	tr := NewTransport(server.URL, session.NewSession())

	resp, err := sendAndWait(t, tr, heroOp)
	require.NoError(t, err)
	assert.Nil(t, resp.Data())

	gqlErrs := resp.Errors()
	require.Len(t, gqlErrs, 1)
	assert.Equal(t, "boom", gqlErrs[0].Message)
	assert.Equal(t, []interface{}{"hero"}, gqlErrs[0].Path)
	assert.Equal(t, []Location{{Line: 1, Column: 3}}, gqlErrs[0].Locations)
}

func TestSendInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Array", `[1,2,3]`},
		{"Scalar", `42`},
		{"String", `"ok"`},
		{"Null", `null`},
		{"Malformed", `{"data":`},
		{"Empty", ``},
		{"TrailingGarbage", `{"data":{}} {}`},
		{"TrailingBrace", `{"data":{}}}`},
		{"TrailingBracket", `{"data":{}}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := serve(t, http.StatusOK, tc.body)
			tr := NewTransport(server.URL, session.NewSession())

			resp, err := sendAndWait(t, tr, heroOp)
			assert.Nil(t, resp)

			var httpErr *HTTPResponseError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, KindInvalidResponse, httpErr.Kind)
			assert.Equal(t, tc.body, string(httpErr.Body))
			assert.True(t, errors.Is(err, errors.ErrInvalidResponse))
		})
	}
}

func TestSendNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	tr := NewTransport(url, session.NewSession())
	resp, err := sendAndWait(t, tr, heroOp)

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransport))
	var httpErr *HTTPResponseError
	assert.False(t, errors.As(err, &httpErr))
}

func TestSendAppliesSessionAdapter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"data":{"ok":true}}`)
	}))
	defer server.Close()

	sess := session.NewSession(session.WithAdapter(session.HeaderAdapter(map[string]string{
		"Authorization": "Bearer abc",
	})))
	tr := NewTransport(server.URL, sess)

	resp, err := sendAndWait(t, tr, heroOp)
	require.NoError(t, err)
	assert.Equal(t, true, resp.Data()["ok"])
}

func TestSendCancelledBeforeResponse(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr := NewTransport(server.URL, session.NewSession())
	var calls int32
	handle, err := tr.Send(context.Background(), heroOp, func(*Response, error) {
		atomic.AddInt32(&calls, 1)
	})
	require.NoError(t, err)

	<-arrived
	handle.Cancel()

	time.Sleep(100 * time.Millisecond)
	tr.Close()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSendConcurrentCallsAreIndependent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		vars := payload["variables"].(map[string]interface{})
		fmt.Fprintf(w, `{"data":{"n":%v}}`, vars["n"])
	}))
	defer server.Close()

	tr := NewTransport(server.URL, session.NewSession())

	const n = 20
	var wg sync.WaitGroup
	counts := make([]int32, n)
	values := make([]json.Number, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		op := testOp{document: "query ($n: Int) { n }", variables: map[string]interface{}{"n": i}}
		_, err := tr.Send(context.Background(), op, func(resp *Response, err error) {
			defer wg.Done()
			atomic.AddInt32(&counts[i], 1)
			if assert.NoError(t, err) {
				values[i] = resp.Data()["n"].(json.Number)
			}
		})
		require.NoError(t, err)
	}

	wg.Wait()
	tr.Close()
	for i := 0; i < n; i++ {
		assert.Equal(t, int32(1), counts[i])
		assert.Equal(t, json.Number(fmt.Sprint(i)), values[i])
	}
}

func TestSendHandlerPanicIsReported(t *testing.T) {
	server, _ := serve(t, http.StatusOK, `{"data":{}}`)

	recovered := make(chan *panics.Recovered, 1)
	tr := NewTransport(server.URL, session.NewSession(),
		WithPanicHandler(func(r *panics.Recovered) { recovered <- r }),
	)

	_, err := tr.Send(context.Background(), heroOp, func(*Response, error) {
		panic("handler bug")
	})
	require.NoError(t, err)

	select {
	case r := <-recovered:
		assert.Equal(t, "handler bug", r.Value)
		assert.NotEmpty(t, r.Stack)
	case <-time.After(5 * time.Second):
		t.Fatal("panic was not reported")
	}

	assert.NotPanics(t, tr.Close)
	assert.NotPanics(t, tr.Close)

	// the transport keeps working after a handler panic
	resp, err := sendAndWait(t, tr, heroOp)
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestJSONFormatDeserialize(t *testing.T) {
	value, err := JSONFormat{}.Deserialize([]byte("{\"data\":{\"n\":1}}\n  "))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"data": map[string]interface{}{"n": json.Number("1")}}, value)

	for _, body := range []string{`{"data":{}}}`, `{"data":{}}]`, `{"data":{}} {}`, `{"data":{}}x`} {
		_, err := JSONFormat{}.Deserialize([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestCallAndDo(t *testing.T) {
	server, _ := serve(t, http.StatusOK, `{"data":{"x":1}}`)
	tr := NewTransport(server.URL, session.NewSession())
	defer tr.Close()

	t.Run("Done", func(t *testing.T) {
		c, err := tr.Call(context.Background(), heroOp)
		require.NoError(t, err)
		select {
		case r := <-c.Done():
			require.NoError(t, r.Err)
			assert.Equal(t, json.Number("1"), r.Response.Data()["x"])
		case <-time.After(5 * time.Second):
			t.Fatal("no result")
		}
	})

	t.Run("Do", func(t *testing.T) {
		resp, err := tr.Do(context.Background(), heroOp)
		require.NoError(t, err)
		assert.Equal(t, json.Number("1"), resp.Data()["x"])
	})
}

func TestCallWaitAfterCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr := NewTransport(server.URL, session.NewSession())
	c, err := tr.Call(context.Background(), heroOp)
	require.NoError(t, err)

	c.Cancel()
	c.Cancel()
	resp, err := c.Wait(context.Background())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr := NewTransport(server.URL, session.NewSession())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Do(ctx, heroOp)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPResponseErrorMessage(t *testing.T) {
	err := &HTTPResponseError{Kind: KindErrorResponse, StatusCode: 500, Body: []byte("oops")}
	assert.Equal(t, "errorResponse: HTTP 500: oops", err.Error())
	assert.Equal(t, "invalidResponse", KindInvalidResponse.String())
}
