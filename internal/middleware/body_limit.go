package middleware

import (
	"net/http"
	"strings"
)

type BodyLimitOverride struct {
	PathPrefix string
	MaxBytes   int64
}

// LimitBody caps request bodies at defaultMax, or at the limit of the longest
// matching override prefix. Requests that declare a larger Content-Length are
// rejected before the handler runs.
func LimitBody(defaultMax int64, overrides ...BodyLimitOverride) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maxBytes := limitFor(r.URL.Path, defaultMax, overrides)
			if maxBytes > 0 {
				if r.ContentLength > maxBytes {
					writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", map[string]int64{"maxBytes": maxBytes})
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func limitFor(path string, defaultMax int64, overrides []BodyLimitOverride) int64 {
	maxBytes := defaultMax
	matched := 0
	for _, override := range overrides {
		if override.PathPrefix == "" || override.MaxBytes <= 0 {
			continue
		}
		if strings.HasPrefix(path, override.PathPrefix) && len(override.PathPrefix) > matched {
			maxBytes = override.MaxBytes
			matched = len(override.PathPrefix)
		}
	}
	return maxBytes
}
