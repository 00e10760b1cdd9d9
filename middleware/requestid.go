package middleware

import (
	"net/http"

	"github.com/gaborage/sdkcore/trace"
)

// RequestID sends the request id carried by the request context in header, generating
// one when the context has none. An empty header selects X-Request-ID. A header
// already set by the caller is left alone.
func RequestID(header string) Middleware {
	if header == "" {
		header = trace.HeaderXRequestID
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(header) != "" {
				return next.RoundTrip(req)
			}
			ctx, id := trace.EnsureRequestID(req.Context())
			return next.RoundTrip(withHeaders(req.WithContext(ctx), func(h http.Header) {
				h.Set(header, id)
			}))
		})
	}
}
