package resilience

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HeaderRetryAfter is the response header honored on 429 and 503.
const HeaderRetryAfter = "Retry-After"

// maxRetryAfterSeconds keeps the conversion to time.Duration from overflowing.
const maxRetryAfterSeconds = 1 << 30

// ParseRetryAfter interprets a Retry-After value as delta seconds or an HTTP date
// relative to now. Negative results are clamped to zero. ok is false when the value
// is absent or unparseable.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return 0, true
		}
		if secs > maxRetryAfterSeconds {
			secs = maxRetryAfterSeconds
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			return 0, true
		}
		return d, true
	}
	return 0, false
}

// retryAfter returns the server-requested delay of a 429 or 503 response.
func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	return ParseRetryAfter(resp.Header.Get(HeaderRetryAfter), now)
}
