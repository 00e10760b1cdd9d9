package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gaborage/sdkcore/config"
)

// HeaderAuthorization carries the bearer key.
const HeaderAuthorization = "Authorization"

// Authentication attaches "Authorization: Bearer {key}" using the options currently
// stored under name in source. Requests are sent unchanged when no key is configured
// or when the request targets a host other than the configured base URL.
func Authentication(source config.OptionsSource, name string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			opts, ok := source.Current(name)
			if !ok {
				return next.RoundTrip(req)
			}
			key := strings.TrimSpace(opts.GetAPIKey())
			if key == "" || !sameHost(opts.GetBaseURL(), req.URL) {
				return next.RoundTrip(req)
			}
			return next.RoundTrip(withHeaders(req, func(h http.Header) {
				h.Set(HeaderAuthorization, "Bearer "+key)
			}))
		})
	}
}

func sameHost(baseURL string, target *url.URL) bool {
	base, err := url.Parse(baseURL)
	if err != nil || target == nil {
		return false
	}
	return strings.EqualFold(base.Host, target.Host)
}
