package session

import (
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Failure describes one failed attempt: either Err is set (no usable
// response) or Response carries a status outside [200,300).
type Failure struct {
	Attempt  int
	Err      error
	Response *http.Response
	Body     []byte
}

// StatusCode returns the response status, or 0 when no response was received.
func (f *Failure) StatusCode() int {
	if f.Response == nil {
		return 0
	}
	return f.Response.StatusCode
}

// Decision is a RetryPolicy verdict.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// GiveUp is the zero Decision.
var GiveUp = Decision{}

// RetryAfter returns a Decision that resends after d.
func RetryAfter(d time.Duration) Decision {
	return Decision{Retry: true, Delay: d}
}

// RetryPolicy decides whether a failed attempt should be resent.
type RetryPolicy interface {
	Decide(req *http.Request, failure *Failure) Decision
}

// RetryPolicyFunc lets an ordinary function act as a RetryPolicy.
type RetryPolicyFunc func(req *http.Request, failure *Failure) Decision

// Decide calls f(req, failure).
func (f RetryPolicyFunc) Decide(req *http.Request, failure *Failure) Decision {
	return f(req, failure)
}

// ChainRetryPolicies consults policies in order; the first one that asks
// for a retry wins.
func ChainRetryPolicies(policies ...RetryPolicy) RetryPolicy {
	return RetryPolicyFunc(func(req *http.Request, failure *Failure) Decision {
		for _, p := range policies {
			if p == nil {
				continue
			}
			if d := p.Decide(req, failure); d.Retry {
				return d
			}
		}
		return GiveUp
	})
}

// ExponentialBackoff retries temporary network errors and the configured
// statuses with full-jitter exponential backoff.
type ExponentialBackoff struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	RetryableStatuses []int

	mu     sync.Mutex
	jitter *rand.Rand
}

// NewExponentialBackoff creates a backoff policy with sensible multiplier and cap.
func NewExponentialBackoff(maxAttempts int, initial time.Duration, statuses ...int) *ExponentialBackoff {
	return &ExponentialBackoff{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    initial,
		BackoffMultiplier: 2,
		MaxBackoff:        30 * time.Second,
		RetryableStatuses: statuses,
		jitter:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decide implements RetryPolicy.
func (b *ExponentialBackoff) Decide(req *http.Request, failure *Failure) Decision {
	if failure.Attempt >= b.MaxAttempts {
		return GiveUp
	}
	if req.Context().Err() != nil {
		return GiveUp
	}

	if failure.Err != nil {
		var netErr net.Error
		if !errors.As(failure.Err, &netErr) || !netErr.Timeout() {
			return GiveUp
		}
		return RetryAfter(b.backoff(failure.Attempt - 1))
	}

	if !b.contains(failure.StatusCode()) {
		return GiveUp
	}
	if d, ok := retryAfterHeader(failure.Response); ok {
		return RetryAfter(d)
	}
	return RetryAfter(b.backoff(failure.Attempt - 1))
}

// backoff computes full jitter exponential backoff
func (b *ExponentialBackoff) backoff(attempt int) time.Duration {
	multiplier := b.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	ceiling := b.MaxBackoff
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	// clamp before converting; large attempts overflow int64
	maxDelay := float64(b.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if maxDelay > float64(ceiling) || math.IsNaN(maxDelay) {
		maxDelay = float64(ceiling)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jitter == nil {
		b.jitter = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(b.jitter.Float64() * maxDelay)
}

func (b *ExponentialBackoff) contains(status int) bool {
	for _, v := range b.RetryableStatuses {
		if v == status {
			return true
		}
	}
	return false
}

// retryAfterHeader reads a Retry-After header given in seconds.
func retryAfterHeader(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
