package middleware

import (
	"net/http"

	"github.com/gaborage/sdkcore/identity"
)

// Tracking header names.
const (
	HeaderSDKID  = "X-KC-SDKID"
	HeaderSource = "X-KC-SOURCE"
)

// Tracking attaches the SDK identity header to every request and the source header
// when the calling application is known. Values are precomputed by the caller.
func Tracking(t identity.Tracking) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return next.RoundTrip(withHeaders(req, func(h http.Header) {
				h.Set(HeaderSDKID, t.SDK)
				if t.HasSource {
					h.Set(HeaderSource, t.Source)
				}
			}))
		})
	}
}
