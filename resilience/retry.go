package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/middleware"
)

// Retry re-issues transient failures through go-retryablehttp. Request bodies are
// buffered once and replayed on every attempt.
func Retry(s RetrySettings, log logger.Logger) middleware.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		client := &retryablehttp.Client{
			HTTPClient:   &http.Client{Transport: next},
			RetryWaitMin: s.BaseDelay,
			RetryWaitMax: s.maxDelay(),
			RetryMax:     s.MaxAttempts,
			CheckRetry:   CheckRetry,
			Backoff:      s.Wait,
			ErrorHandler: exhausted,
		}
		if log != nil {
			client.Logger = logger.NewLeveledLogger(log)
			client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, retry int) {
				if retry > 0 {
					log.Debug().
						Str("method", req.Method).
						Str("host", req.URL.Host).
						Int("retry", retry).
						Msg("Retrying request")
				}
			}
		}
		return &retryablehttp.RoundTripper{Client: client}
	}
}

// CheckRetry retries connection failures, attempt timeouts and transient statuses.
// Caller cancellation, an expired total deadline and an open circuit stop immediately.
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
			return false, nil
		}
		return true, nil
	}
	return IsTransientStatus(resp.StatusCode), nil
}

// Wait has the retryablehttp.Backoff signature. A Retry-After header on 429 or 503
// wins over the computed delay.
func (s RetrySettings) Wait(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	if d, ok := retryAfter(resp, time.Now()); ok {
		return d
	}
	return s.Delay(attempt)
}

// Delay returns the wait before retry number attempt+1, counting from zero.
func (s RetrySettings) Delay(attempt int) time.Duration {
	maxDelay := s.maxDelay()
	d := s.BaseDelay
	if s.Backoff != config.BackoffConstant {
		for i := 0; i < attempt && d < maxDelay; i++ {
			d *= 2
		}
	}
	if d > maxDelay {
		d = maxDelay
	}
	if s.Jitter && d > 0 {
		// Spread to [d/2, 3d/2) so concurrent clients do not retry in lockstep.
		d = d/2 + time.Duration(rand.Int64N(int64(d)))
		if d > maxDelay {
			d = maxDelay
		}
	}
	return d
}

func (s RetrySettings) maxDelay() time.Duration {
	if s.MaxDelay > 0 {
		return s.MaxDelay
	}
	return config.DefaultMaxRetryDelay
}

// exhausted passes the last response through so callers see its status. Errors are
// wrapped in *RetryExhaustedError when more than one attempt was made.
func exhausted(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if err == nil {
		return resp, nil
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	// A bare context error means the caller or the total deadline stopped the loop.
	//nolint:errorlint // sentinel identity distinguishes it from a wrapped attempt timeout
	if attempts <= 1 || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || err == context.DeadlineExceeded {
		return nil, err
	}
	return nil, &RetryExhaustedError{Attempts: attempts, Err: err}
}
