package csp

import (
	"log/slog"
	"strings"
)

const (
	ManifestSrc    = "manifest-src"
	ScriptSrc      = "script-src"
	ScriptSrcElem  = "script-src-elem"
	ScriptSrcAttr  = "script-src-attr"
	WorkerSrc      = "worker-src"
	StyleSrc       = "style-src"
	StyleSrcElem   = "style-src-elem"
	StyleSrcAttr   = "style-src-attr"
	FontSrc        = "font-src"
	ImgSrc         = "img-src"
	MediaSrc       = "media-src"
	FrameSrc       = "frame-src"
	FrameAncestors = "frame-ancestors"
	ObjectSrc      = "object-src"
	FormAction     = "form-action"
	ConnectSrc     = "connect-src"
	ReportURI      = "report-uri"
)

const (
	fontsStylesheets = "https://fonts.googleapis.com"
	fontsFiles       = "https://fonts.gstatic.com"
	recaptcha        = "https://www.google.com/recaptcha/"
	recaptchaStatic  = "https://www.gstatic.com/recaptcha/"
	recaptchaFrames  = "https://recaptcha.google.com/recaptcha/"
)

// Directive is one CSP directive and its base source list.
type Directive struct {
	Name    string
	Sources []string
	// WithOrigins appends the environment's backend origins after Sources.
	WithOrigins bool
}

// lockedNone directives are rendered as 'none' whatever their configured
// sources say.
var lockedNone = map[string]struct{}{
	FrameAncestors: {},
	ObjectSrc:      {},
	FormAction:     {},
}

// directives is the emitted order.
var directives = []Directive{
	{Name: ManifestSrc, Sources: []string{"self"}},
	{Name: ScriptSrc, Sources: []string{"self", recaptcha, recaptchaStatic}},
	{Name: ScriptSrcElem, Sources: []string{"self", recaptcha, recaptchaStatic}},
	{Name: ScriptSrcAttr, Sources: []string{"none"}},
	{Name: WorkerSrc, Sources: []string{"self", "blob:"}},
	{Name: StyleSrc, Sources: []string{"self", fontsStylesheets}},
	{Name: StyleSrcElem, Sources: []string{"self", fontsStylesheets}},
	{Name: StyleSrcAttr, Sources: []string{"unsafe-inline"}},
	{Name: FontSrc, Sources: []string{"self", fontsFiles}},
	{Name: ImgSrc, Sources: []string{"self", "data:"}, WithOrigins: true},
	{Name: MediaSrc, Sources: []string{"self", "data:"}, WithOrigins: true},
	{Name: FrameSrc, Sources: []string{"self", recaptcha, recaptchaFrames}},
	{Name: FrameAncestors, Sources: []string{"none"}},
	{Name: ObjectSrc, Sources: []string{"none"}},
	{Name: FormAction, Sources: []string{"none"}},
	{Name: ConnectSrc, Sources: []string{"self"}, WithOrigins: true},
}

// Directives returns a copy of the configured directives in emitted order.
func Directives() []Directive {
	out := make([]Directive, len(directives))
	for i, d := range directives {
		d.Sources = append([]string(nil), d.Sources...)
		out[i] = d
	}
	return out
}

// Origins are the fully-qualified backend origins of one environment. Empty
// strings are allowed and are left out of the policy.
type Origins struct {
	DataAPI           string   `json:"dataApi"`
	Uploads           []string `json:"uploads"`
	IdentityProviders []string `json:"identityProviders"`
}

func (o Origins) list() []string {
	out := make([]string, 0, 1+len(o.Uploads)+len(o.IdentityProviders))
	out = append(out, o.DataAPI)
	out = append(out, o.Uploads...)
	out = append(out, o.IdentityProviders...)
	return out
}

// Policy is an assembled Content-Security-Policy value.
type Policy struct {
	Value   string    `json:"value"`
	Dropped []Dropped `json:"dropped,omitempty"`
}

func (p Policy) String() string { return p.Value }

type Option func(*Builder)

// WithReportURI appends a report-uri clause pointing at uri.
func WithReportURI(uri string) Option {
	return func(b *Builder) { b.reportURI = strings.TrimSpace(uri) }
}

// WithDirectives replaces the directive table. Used by tests and by callers
// that need to vet a candidate source list.
func WithDirectives(d []Directive) Option {
	return func(b *Builder) { b.directives = d }
}

type Builder struct {
	sanitizer  *Sanitizer
	directives []Directive
	reportURI  string
}

func NewBuilder(logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		sanitizer:  NewSanitizer(logger),
		directives: directives,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders the policy for origins. The result depends only on the
// builder's configuration and origins.
func (b *Builder) Build(origins Origins) Policy {
	var sb strings.Builder
	var dropped []Dropped

	sb.WriteString("default-src 'none';")
	for _, d := range b.directives {
		if _, ok := lockedNone[d.Name]; ok {
			writeClause(&sb, d.Name, []string{"'none'"})
			continue
		}
		sources := d.Sources
		if d.WithOrigins {
			sources = append(append([]string(nil), d.Sources...), origins.list()...)
		}
		clean, drop := b.sanitizer.Sanitize(d.Name, sources)
		dropped = append(dropped, drop...)
		writeClause(&sb, d.Name, clean)
	}
	if b.reportURI != "" {
		writeClause(&sb, ReportURI, []string{b.reportURI})
	}

	return Policy{Value: sb.String(), Dropped: dropped}
}

func writeClause(sb *strings.Builder, name string, sources []string) {
	sb.WriteByte(' ')
	sb.WriteString(name)
	if len(sources) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(sources, " "))
	}
	sb.WriteByte(';')
}
