package resilience

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/middleware"
)

// errTransientStatus marks a response the breaker should count as a failure while
// the response itself is still returned to the retry stage.
var errTransientStatus = errors.New("transient status")

// Breaker is the circuit breaker of one named client. All callers share its state.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker that trips once the sampling window holds at least
// MinimumThroughput requests and the failure ratio reaches FailureRatio. It then
// rejects calls for BreakDuration and lets a single trial call through.
func NewBreaker(name string, s BreakerSettings, log logger.Logger) *Breaker {
	minThroughput := uint32(max(s.MinimumThroughput, 1))
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.SamplingDuration,
		Timeout:     s.BreakDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minThroughput {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if log != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("client", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		}
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Middleware returns the breaker stage.
func (b *Breaker) Middleware() middleware.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			out, err := b.cb.Execute(func() (interface{}, error) {
				resp, err := next.RoundTrip(req)
				if err != nil {
					return nil, err
				}
				if IsTransientStatus(resp.StatusCode) {
					return resp, errTransientStatus
				}
				return resp, nil
			})

			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return nil, &CircuitOpenError{Name: b.name, Err: err}
			case errors.Is(err, errTransientStatus), err == nil:
				return out.(*http.Response), nil
			default:
				return nil, err
			}
		})
	}
}
