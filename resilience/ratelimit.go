package resilience

import (
	"math"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/gaborage/sdkcore/middleware"
)

// RateLimit delays requests to stay within a token bucket shared by every caller of
// the client. Zero RequestsPerSecond disables the stage.
func RateLimit(s RateLimitSettings) middleware.Middleware {
	if s.RequestsPerSecond <= 0 {
		return middleware.Passthrough()
	}
	burst := s.Burst
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(s.RequestsPerSecond)))
	}
	limiter := rate.NewLimiter(rate.Limit(s.RequestsPerSecond), burst)

	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}
