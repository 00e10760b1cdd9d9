package config

import "time"

// Default values applied by ResilienceOptions.WithDefaults.
const (
	DefaultMaxRetryAttempts  = 3
	DefaultRetryBaseDelay    = 2 * time.Second
	DefaultMaxRetryDelay     = 30 * time.Second
	DefaultRequestTimeout    = 10 * time.Second
	DefaultTotalTimeout      = 30 * time.Second
	DefaultFailureRatio      = 0.1
	DefaultSamplingDuration  = 30 * time.Second
	DefaultMinimumThroughput = 100
	DefaultBreakDuration     = 5 * time.Second
)

// HasEnvironmentID is implemented by options that identify a project environment.
type HasEnvironmentID interface {
	GetEnvironmentID() string
}

// HasBaseURL is implemented by options that carry the API base address.
type HasBaseURL interface {
	GetBaseURL() string
}

// HasAPIKey is implemented by options that may carry a bearer key. An empty key means
// requests are sent without an Authorization header.
type HasAPIKey interface {
	GetAPIKey() string
}

// Options is what the registry needs from an SDK's option type. Embedding
// ClientOptions satisfies it; SDKs override individual accessors as needed.
type Options interface {
	HasEnvironmentID
	HasBaseURL
	HasAPIKey
	ClientSettings() *ClientOptions
}

// SelfValidator is implemented by SDK option types with rules beyond ClientOptions.
type SelfValidator interface {
	Validate() error
}

var _ Options = (*ClientOptions)(nil)

// GetEnvironmentID returns the environment identifier.
func (o *ClientOptions) GetEnvironmentID() string { return o.EnvironmentID }

// GetBaseURL returns the API base address.
func (o *ClientOptions) GetBaseURL() string { return o.BaseURL }

// GetAPIKey returns the bearer key, possibly empty.
func (o *ClientOptions) GetAPIKey() string { return o.APIKey }

// ClientSettings returns o.
func (o *ClientOptions) ClientSettings() *ClientOptions { return o }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// IsEnabled reports whether resilience policies should be attached.
func (r ResilienceOptions) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// WithDefaults returns a copy of r with every unset field replaced by its default.
// The receiver is not modified.
func (r ResilienceOptions) WithDefaults() ResilienceOptions {
	if r.Enabled == nil {
		r.Enabled = BoolPtr(true)
	}
	if r.Profile == "" {
		r.Profile = ProfileDefault
	}
	if r.MaxRetryAttempts == nil {
		r.MaxRetryAttempts = IntPtr(DefaultMaxRetryAttempts)
	}
	if r.RetryBaseDelay == 0 {
		r.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if r.MaxRetryDelay == 0 {
		r.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if r.UseJitter == nil {
		r.UseJitter = BoolPtr(true)
	}
	if r.Backoff == "" {
		r.Backoff = BackoffExponential
	}
	if r.RequestTimeout == 0 {
		r.RequestTimeout = DefaultRequestTimeout
	}
	if r.TotalTimeout == 0 {
		r.TotalTimeout = DefaultTotalTimeout
	}

	cb := &r.CircuitBreaker
	if cb.FailureRatio == 0 {
		cb.FailureRatio = DefaultFailureRatio
	}
	if cb.SamplingDuration == 0 {
		cb.SamplingDuration = DefaultSamplingDuration
	}
	if cb.MinimumThroughput == 0 {
		cb.MinimumThroughput = DefaultMinimumThroughput
	}
	if cb.BreakDuration == 0 {
		cb.BreakDuration = DefaultBreakDuration
	}
	return r
}

// FailureHandlingOrDefault returns the configured mode or FailureLogAndContinue.
func (t TelemetryOptions) FailureHandlingOrDefault() string {
	if t.FailureHandling == "" {
		return FailureLogAndContinue
	}
	return t.FailureHandling
}
