package core

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/nexus-gql/pkg/config"
	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/log"
	"github.com/saturnines/nexus-gql/pkg/operation"
	"github.com/saturnines/nexus-gql/pkg/transport/graphql"
)

const countryQuery = `query Country($code: ID!) { country(code: $code) { name } }`

func loadConfig(t *testing.T, yamlContent string) *config.Transport {
	t.Helper()
	cfg, err := config.NewDefaultLoader().Parse([]byte(yamlContent), config.FormatYAML)
	require.NoError(t, err)
	return cfg
}

func TestNewTransportFromConfig(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)

		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "nexus", r.Header.Get("X-Client"))
		assert.Len(t, r.Header.Get("X-Request-ID"), 36)

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, operation.Identifier(countryQuery), payload["id"])
		assert.Equal(t, map[string]interface{}{"code": "NZ"}, payload["variables"])

		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"data":{"country":{"name":"New Zealand"}}}`)
	}))
	defer server.Close()

	cfg := loadConfig(t, `
name: countries
url: `+server.URL+`
send_operation_identifiers: true
headers:
  X-Client: nexus
request_id_header: X-Request-ID
auth:
  type: bearer
  bearer:
    token: secret
retry:
  max_attempts: 3
  initial_backoff: 1ms
  retryable_statuses: [503]
log:
  level: disabled
`)

	tr, err := NewTransport(cfg)
	require.NoError(t, err)
	defer tr.Close()

	op := operation.MustNew(countryQuery, map[string]interface{}{"code": "NZ"}, operation.WithComputedIdentifier())
	resp, err := tr.Do(context.Background(), op)
	require.NoError(t, err)

	assert.Equal(t, "New Zealand", resp.Traverse("data", "country", "name"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Same(t, op, resp.Operation)
}

func TestNewTransportMissingIdentifier(t *testing.T) {
	cfg := loadConfig(t, "url: http://127.0.0.1:1/graphql\nsend_operation_identifiers: true\n")

	tr, err := NewTransport(cfg, WithLogger(log.NewNoopLogger()))
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), operation.MustNew(countryQuery, nil))
	assert.ErrorIs(t, err, graphql.ErrMissingOperationIdentifier)
}

func TestNewTransportErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"errors":[{"message":"forbidden"}]}`)
	}))
	defer server.Close()

	tr, err := NewTransport(loadConfig(t, "url: "+server.URL+"\n"), WithLogger(log.NewNoopLogger()))
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Do(context.Background(), operation.MustNew(countryQuery, nil))
	assert.True(t, errors.Is(err, errors.ErrErrorResponse))

	var httpErr *graphql.HTTPResponseError
	require.ErrorAs(t, err, &httpErr)
	assert.JSONEq(t, `{"errors":[{"message":"forbidden"}]}`, string(httpErr.Body))
}

func TestNewTransportOAuth2(t *testing.T) {
	var tokenHits int32
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenHits, 1)
		io.WriteString(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer tokens.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		io.WriteString(w, `{"data":{}}`)
	}))
	defer api.Close()

	cfg := loadConfig(t, `
url: `+api.URL+`
auth:
  type: oauth2
  oauth2:
    token_url: `+tokens.URL+`
    client_id: id
    client_secret: secret
`)
	tr, err := NewTransport(cfg, WithLogger(log.NewNoopLogger()))
	require.NoError(t, err)
	defer tr.Close()

	for i := 0; i < 3; i++ {
		_, err := tr.Do(context.Background(), operation.MustNew(countryQuery, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenHits))
}

func TestNewTransportNilConfig(t *testing.T) {
	_, err := NewTransport(nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestNewLogger(t *testing.T) {
	assert.IsType(t, &log.NoopLogger{}, NewLogger(config.Log{Level: "disabled"}))
	assert.IsType(t, &log.ZerologAdapter{}, NewLogger(config.Log{Level: "debug", Format: "json"}))
	assert.IsType(t, &log.ZerologAdapter{}, NewLogger(config.Log{}))
}
