// Package headers builds the security response headers for a host and
// applies them either to a CloudFront header map or to a net/http response.
package headers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/compactconnect/apps/edge/internal/csp"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/metrics"
)

const (
	StrictTransportSecurity = "Strict-Transport-Security"
	ContentTypeOptions      = "X-Content-Type-Options"
	FrameOptions            = "X-Frame-Options"
	ReferrerPolicy          = "Referrer-Policy"
	Server                  = "Server"
	ContentSecurityPolicy   = "Content-Security-Policy"

	ServerName = "CompactConnect"
)

// Header is a single response header in display case. Its JSON form is the
// CloudFront header record.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is everything computed for one host.
type Result struct {
	Resolution environment.Resolution `json:"resolution"`
	Policy     csp.Policy             `json:"policy"`
	Headers    []Header               `json:"headers"`
}

type Injector struct {
	table   *environment.Table
	builder *csp.Builder
	metrics *metrics.Metrics
}

// NewInjector wires a resolver table and a CSP builder. m may be nil.
func NewInjector(table *environment.Table, builder *csp.Builder, m *metrics.Metrics) *Injector {
	if builder == nil {
		builder = csp.NewBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}
	return &Injector{table: table, builder: builder, metrics: m}
}

// For resolves host and returns the full security header set in a fixed order.
func (i *Injector) For(host string) Result {
	res := i.table.Resolve(host)
	policy := i.builder.Build(res.Origins)

	i.metrics.Resolved(res.Environment.Name, res.Fallback)
	for _, d := range policy.Dropped {
		i.metrics.KeywordDropped(d.Directive, d.Keyword)
	}

	return Result{
		Resolution: res,
		Policy:     policy,
		Headers: []Header{
			{Key: StrictTransportSecurity, Value: "max-age=31536000; includeSubdomains; preload"},
			{Key: ContentTypeOptions, Value: "nosniff"},
			{Key: FrameOptions, Value: "DENY"},
			{Key: ReferrerPolicy, Value: "strict-origin-when-cross-origin"},
			{Key: Server, Value: ServerName},
			{Key: ContentSecurityPolicy, Value: policy.Value},
		},
	}
}

// Inject returns a copy of existing with the security headers set. Keys are
// lowercase header names; existing is not modified.
func (i *Injector) Inject(host string, existing map[string][]Header) (map[string][]Header, Result) {
	result := i.For(host)

	out := make(map[string][]Header, len(existing)+len(result.Headers))
	for name, records := range existing {
		out[name] = append([]Header(nil), records...)
	}
	for _, h := range result.Headers {
		out[strings.ToLower(h.Key)] = []Header{{Key: h.Key, Value: h.Value}}
	}
	return out, result
}

// Apply sets the security headers on an outgoing net/http response.
func (i *Injector) Apply(host string, h http.Header) Result {
	result := i.For(host)
	for _, hdr := range result.Headers {
		h.Set(hdr.Key, hdr.Value)
	}
	return result
}
