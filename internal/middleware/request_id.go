package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-Id"
	// CloudFront forwards its own id to the origin.
	headerCloudFrontID = "X-Amz-Cf-Id"
	maxRequestIDLength = 128
)

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := inboundRequestID(r)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func inboundRequestID(r *http.Request) string {
	for _, name := range []string{HeaderRequestID, headerCloudFrontID} {
		id := strings.TrimSpace(r.Header.Get(name))
		if id != "" && len(id) <= maxRequestIDLength && !strings.ContainsFunc(id, isControl) {
			return id
		}
	}
	return ""
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
