package config

import "time"

// Backoff shapes accepted by ResilienceOptions.Backoff.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Resilience profiles accepted by ResilienceOptions.Profile.
const (
	// ProfileDefault installs retry, attempt timeout and circuit breaker.
	ProfileDefault = "default"
	// ProfileStandard additionally bounds the whole call with a total timeout.
	ProfileStandard = "standard"
)

// Telemetry failure handling modes accepted by TelemetryOptions.FailureHandling.
const (
	FailureLogAndContinue = "logAndContinue"
	FailurePropagate      = "propagate"
)

// ClientOptions is the configuration shared by every SDK built on this module.
// SDK-specific option types embed it and add their own fields.
type ClientOptions struct {
	EnvironmentID  string            `koanf:"environmentid" json:"environmentId" yaml:"environmentid" validate:"notblank"`
	BaseURL        string            `koanf:"baseurl" json:"baseUrl" yaml:"baseurl" validate:"notblank,absurl"`
	APIKey         string            `koanf:"apikey" json:"apiKey" yaml:"apikey"`
	HTTPClientName string            `koanf:"httpclientname" json:"httpClientName" yaml:"httpclientname"`
	Resilience     ResilienceOptions `koanf:"resilience" json:"resilience" yaml:"resilience"`
	Telemetry      TelemetryOptions  `koanf:"telemetry" json:"telemetry" yaml:"telemetry"`
}

// ResilienceOptions controls the retry, timeout and circuit breaker policies attached
// to the transport. Zero values select the defaults documented on each field.
type ResilienceOptions struct {
	// Enabled is the master switch. Nil means enabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	// Profile is "default" or "standard". Empty means "default".
	Profile string `koanf:"profile" json:"profile" yaml:"profile" validate:"omitempty,oneof=default standard"`
	// MaxRetryAttempts is the number of retries after the first attempt. Nil means 3; 0 disables retries.
	MaxRetryAttempts *int `koanf:"maxretryattempts" json:"maxRetryAttempts" yaml:"maxretryattempts" validate:"omitempty,gte=0,lte=50"`
	// RetryBaseDelay defaults to 2s.
	RetryBaseDelay time.Duration `koanf:"retrybasedelay" json:"retryBaseDelay" yaml:"retrybasedelay" validate:"gte=0s"`
	// MaxRetryDelay caps computed delays. Defaults to 30s.
	MaxRetryDelay time.Duration `koanf:"maxretrydelay" json:"maxRetryDelay" yaml:"maxretrydelay" validate:"gte=0s"`
	// UseJitter randomizes computed delays. Nil means true.
	UseJitter *bool `koanf:"usejitter" json:"useJitter" yaml:"usejitter"`
	// Backoff is "constant" or "exponential". Empty means "exponential".
	Backoff        string                `koanf:"backoff" json:"backoff" yaml:"backoff" validate:"omitempty,oneof=constant exponential"`
	CircuitBreaker CircuitBreakerOptions `koanf:"circuitbreaker" json:"circuitBreaker" yaml:"circuitbreaker"`
	// RequestTimeout bounds each attempt. Defaults to 10s.
	RequestTimeout time.Duration `koanf:"requesttimeout" json:"requestTimeout" yaml:"requesttimeout" validate:"gte=0s"`
	// TotalTimeout bounds the whole call including retries (standard profile). Defaults to 30s.
	TotalTimeout time.Duration    `koanf:"totaltimeout" json:"totalTimeout" yaml:"totaltimeout" validate:"gte=0s"`
	RateLimit    RateLimitOptions `koanf:"ratelimit" json:"rateLimit" yaml:"ratelimit"`
}

// CircuitBreakerOptions configures the breaker shared by all callers of one named client.
type CircuitBreakerOptions struct {
	// FailureRatio is the failure share that trips the breaker, in (0,1]. Zero is the
	// unset value and selects 0.1, so a ratio of exactly 0 cannot be configured.
	FailureRatio float64 `koanf:"failureratio" json:"failureRatio" yaml:"failureratio" validate:"gte=0,lte=1"`
	// SamplingDuration is the window over which the ratio is measured. Defaults to 30s.
	SamplingDuration time.Duration `koanf:"samplingduration" json:"samplingDuration" yaml:"samplingduration" validate:"gte=0s"`
	// MinimumThroughput is the number of requests in a window before the breaker may trip. Defaults to 100.
	MinimumThroughput int `koanf:"minimumthroughput" json:"minimumThroughput" yaml:"minimumthroughput" validate:"gte=0"`
	// BreakDuration is how long the breaker stays open. Defaults to 5s.
	BreakDuration time.Duration `koanf:"breakduration" json:"breakDuration" yaml:"breakduration" validate:"gte=0s"`
}

// RateLimitOptions enables a client-side token bucket. Zero RequestsPerSecond disables it.
type RateLimitOptions struct {
	RequestsPerSecond float64 `koanf:"requestspersecond" json:"requestsPerSecond" yaml:"requestspersecond" validate:"gte=0"`
	Burst             int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// TelemetryOptions controls how listener failures are treated.
type TelemetryOptions struct {
	// FailureHandling is "logAndContinue" (default) or "propagate".
	FailureHandling string `koanf:"failurehandling" json:"failureHandling" yaml:"failurehandling" validate:"omitempty,oneof=logAndContinue propagate"`
}

// LogSettings configures the logger built by applications from a Loader.
type LogSettings struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}
