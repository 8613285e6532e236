package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per IP address to the specified number per
// minute using a sliding window. Applied ahead of the gate so hash work
// cannot be amplified by a single client.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByCredential limits requests per presented credential (API key
// header value, falling back to client IP when no key is presented).
func RateLimitByCredential(apiKeyHeader string, requestsPerMinute int) func(http.Handler) http.Handler {
	if apiKeyHeader == "" {
		apiKeyHeader = DefaultAPIKeyHeader
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key := r.Header.Get(apiKeyHeader); key != "" {
				return key, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
