package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCircuitOpen matches every *CircuitOpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError is returned without touching the network while the breaker of a
// named client is open or probing.
type CircuitOpenError struct {
	Name string
	Err  error
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q rejected request: %v", e.Name, e.Err)
}

func (e *CircuitOpenError) Unwrap() error { return e.Err }

// Is matches ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// TimeoutError reports that an attempt, or the whole call when Total is set, ran out
// of time.
type TimeoutError struct {
	Limit time.Duration
	Total bool
	Err   error
}

func (e *TimeoutError) Error() string {
	scope := "attempt"
	if e.Total {
		scope = "request"
	}
	return fmt.Sprintf("%s timed out after %s: %v", scope, e.Limit, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout reports true, matching the net.Error convention.
func (e *TimeoutError) Timeout() bool { return true }

// RetryExhaustedError reports that every allowed attempt failed with an error.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsTransientStatus reports whether code is worth retrying: 408, 429 and every 5xx.
func IsTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
