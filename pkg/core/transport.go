package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/saturnines/nexus-gql/pkg/auth"
	"github.com/saturnines/nexus-gql/pkg/config"
	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/log"
	"github.com/saturnines/nexus-gql/pkg/session"
	"github.com/saturnines/nexus-gql/pkg/transport/graphql"
)

// Option overrides parts of the assembly.
type Option func(*builder)

type builder struct {
	logger   log.Logger
	registry *auth.AuthRegistry
	base     http.RoundTripper
}

// WithLogger replaces the logger derived from cfg.Log.
func WithLogger(l log.Logger) Option {
	return func(b *builder) {
		b.logger = l
	}
}

// WithAuthRegistry replaces the default auth registry.
func WithAuthRegistry(r *auth.AuthRegistry) Option {
	return func(b *builder) {
		b.registry = r
	}
}

// WithRoundTripper replaces the base HTTP transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(b *builder) {
		b.base = rt
	}
}

// NewTransport assembles a GraphQL transport from a validated config:
// http.Client -> adapters (headers, request id, auth) -> retry policies ->
// session -> transport.
func NewTransport(cfg *config.Transport, opts ...Option) (*graphql.Transport, error) {
	if cfg == nil {
		return nil, errors.WrapError(fmt.Errorf("config is required"), errors.ErrConfiguration, "build transport")
	}

	b := &builder{registry: auth.NewAuthRegistry()}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = NewLogger(cfg.Log)
	}

	client := newHTTPClient(cfg.HTTP, b.base)

	var adapters []session.RequestAdapter
	var policies []session.RetryPolicy

	if len(cfg.Headers) > 0 {
		adapters = append(adapters, session.HeaderAdapter(cfg.Headers))
	}
	if cfg.RequestIDHeader != "" {
		adapters = append(adapters, session.RequestIDAdapter(cfg.RequestIDHeader))
	}

	if cfg.Auth != nil {
		handler, err := b.registry.Create(cfg.Auth, client)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, auth.Adapter(handler))
		if o, ok := handler.(*auth.OAuth2Auth); ok {
			policies = append(policies, auth.OAuth2RetryPolicy(o))
		}
	}

	if cfg.Retry != nil {
		backoff := session.NewExponentialBackoff(
			cfg.Retry.MaxAttempts,
			config.ParseDuration(cfg.Retry.InitialBackoff, 500*time.Millisecond),
			cfg.Retry.RetryableStatuses...,
		)
		backoff.BackoffMultiplier = cfg.Retry.BackoffMultiplier
		backoff.MaxBackoff = config.ParseDuration(cfg.Retry.MaxBackoff, 30*time.Second)
		policies = append(policies, backoff)
	}

	sessionOpts := []session.SessionOption{
		session.WithHTTPDoer(client),
		session.WithLogger(b.logger),
	}
	if len(adapters) > 0 {
		sessionOpts = append(sessionOpts, session.WithAdapter(session.ChainAdapters(adapters...)))
	}
	if len(policies) > 0 {
		sessionOpts = append(sessionOpts, session.WithRetryPolicy(session.ChainRetryPolicies(policies...)))
	}

	b.logger.Debug("transport configured",
		log.String("name", cfg.Name),
		log.String("url", cfg.URL),
		log.Bool("persisted", cfg.SendOperationIdentifiers),
		log.Bool("retry", cfg.Retry != nil),
		log.Bool("auth", cfg.Auth != nil),
	)

	return graphql.NewTransport(
		cfg.URL,
		session.NewSession(sessionOpts...),
		graphql.WithSendOperationIdentifiers(cfg.SendOperationIdentifiers),
		graphql.WithLogger(b.logger),
	), nil
}

func newHTTPClient(cfg config.HTTPClient, base http.RoundTripper) *http.Client {
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.MaxIdleConns > 0 {
			transport.MaxIdleConns = cfg.MaxIdleConns
			transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
		}
		if cfg.IdleConnTimeout != "" {
			transport.IdleConnTimeout = config.ParseDuration(cfg.IdleConnTimeout, transport.IdleConnTimeout)
		}
		if cfg.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		base = transport
	}
	return &http.Client{
		Transport: base,
		Timeout:   config.ParseDuration(cfg.Timeout, 30*time.Second),
	}
}

// NewLogger builds the logger described by cfg. Level "disabled" returns
// a no-op logger.
func NewLogger(cfg config.Log) log.Logger {
	if cfg.Level == "disabled" {
		return log.NewNoopLogger()
	}
	level := log.ParseLevel(cfg.Level)
	if cfg.Format == "json" {
		return log.NewJSONAdapter(os.Stderr, level)
	}
	return log.NewZerologAdapter(level)
}
