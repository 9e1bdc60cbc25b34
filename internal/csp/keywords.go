// Package csp assembles the Content-Security-Policy header served in front of
// the CompactConnect web app.
package csp

import (
	"io"
	"log/slog"
	"strings"
)

// keywordPolicy lists the CSP keywords the builder knows about. true means the
// keyword may be emitted (quoted), false means it is stripped from any source
// list it shows up in.
var keywordPolicy = map[string]bool{
	"self":           true,
	"none":           true,
	"unsafe-inline":  true,
	"strict-dynamic": true,
	"report-sample":  true,

	"unsafe-eval":              false,
	"unsafe-hashes":            false,
	"wasm-unsafe-eval":         false,
	"unsafe-allow-redirects":   false,
	"inline-speculation-rules": false,
}

// Dropped records a keyword removed from a directive.
type Dropped struct {
	Directive string `json:"directive"`
	Keyword   string `json:"keyword"`
}

// Sanitizer quotes allowed keywords and strips disallowed ones.
type Sanitizer struct {
	logger *slog.Logger
}

func NewSanitizer(logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sanitizer{logger: logger}
}

// Sanitize returns a cleaned copy of sources. The input slice is left as is.
func (s *Sanitizer) Sanitize(directive string, sources []string) ([]string, []Dropped) {
	out := make([]string, 0, len(sources))
	var dropped []Dropped
	for _, source := range sources {
		token := strings.TrimSpace(source)
		if token == "" {
			continue
		}

		keyword := normalizeKeyword(token)
		allowed, known := keywordPolicy[keyword]
		switch {
		case !known:
			out = append(out, token)
		case allowed:
			out = append(out, "'"+keyword+"'")
		default:
			s.logger.Warn("csp_keyword_dropped", "directive", directive, "keyword", keyword)
			dropped = append(dropped, Dropped{Directive: directive, Keyword: keyword})
		}
	}
	return out, dropped
}

func normalizeKeyword(token string) string {
	k := strings.ToLower(token)
	if len(k) >= 2 && strings.HasPrefix(k, "'") && strings.HasSuffix(k, "'") {
		k = k[1 : len(k)-1]
	}
	return k
}

// IsAllowedKeyword reports whether keyword (quoted or bare, any case) may
// appear in a policy.
func IsAllowedKeyword(keyword string) bool {
	return keywordPolicy[normalizeKeyword(strings.TrimSpace(keyword))]
}
