// Package resilience composes the retry, timeout, circuit breaker and rate limit
// policies that protect every call made through a named client.
//
// Retry is delegated to github.com/hashicorp/go-retryablehttp and the circuit breaker
// to github.com/sony/gobreaker. This package decides what is transient, how long to
// wait, and in which order the policies wrap the transport:
//
//	rate limit -> total timeout -> retry -> attempt timeout -> circuit breaker -> transport
//
// The rate limit stage is present only when configured and the total timeout only in
// the standard profile.
package resilience

import (
	"time"

	"github.com/gaborage/sdkcore/config"
)

// RetrySettings controls the retry stage.
type RetrySettings struct {
	// MaxAttempts is the number of retries after the first attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	// Backoff is config.BackoffConstant or config.BackoffExponential.
	Backoff string
}

// BreakerSettings controls the circuit breaker stage.
type BreakerSettings struct {
	FailureRatio      float64
	SamplingDuration  time.Duration
	MinimumThroughput int
	BreakDuration     time.Duration
}

// RateLimitSettings controls the client-side token bucket.
type RateLimitSettings struct {
	RequestsPerSecond float64
	Burst             int
}

// Settings is the resolved resilience configuration of one named client.
type Settings struct {
	Enabled        bool
	Profile        string
	Retry          RetrySettings
	AttemptTimeout time.Duration
	TotalTimeout   time.Duration
	CircuitBreaker BreakerSettings
	RateLimit      RateLimitSettings
}

// FromOptions resolves o with defaults applied. It is deterministic and does not
// modify o.
func FromOptions(o config.ResilienceOptions) Settings {
	d := o.WithDefaults()
	return Settings{
		Enabled: d.IsEnabled(),
		Profile: d.Profile,
		Retry: RetrySettings{
			MaxAttempts: *d.MaxRetryAttempts,
			BaseDelay:   d.RetryBaseDelay,
			MaxDelay:    d.MaxRetryDelay,
			Jitter:      *d.UseJitter,
			Backoff:     d.Backoff,
		},
		AttemptTimeout: d.RequestTimeout,
		TotalTimeout:   d.TotalTimeout,
		CircuitBreaker: BreakerSettings{
			FailureRatio:      d.CircuitBreaker.FailureRatio,
			SamplingDuration:  d.CircuitBreaker.SamplingDuration,
			MinimumThroughput: d.CircuitBreaker.MinimumThroughput,
			BreakDuration:     d.CircuitBreaker.BreakDuration,
		},
		RateLimit: RateLimitSettings{
			RequestsPerSecond: d.RateLimit.RequestsPerSecond,
			Burst:             d.RateLimit.Burst,
		},
	}
}
