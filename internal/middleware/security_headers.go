package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/compactconnect/apps/edge/internal/headers"
)

// SecurityHeaders applies the same header set the edge function attaches in
// CloudFront, keyed on the request host without its port.
func SecurityHeaders(injector *headers.Injector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			injector.Apply(requestHost(r), w.Header())
			next.ServeHTTP(w, r)
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSpace(host)
}
