// Package report collects Content-Security-Policy violation reports posted by
// browsers so policy gaps show up before users hit them.
package report

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var ErrInvalidReport = errors.New("invalid csp report")

// Report is one distinct violation. Repeats of the same violation bump
// Occurrences instead of creating a new row.
type Report struct {
	ID                 uuid.UUID `json:"id"`
	Fingerprint        string    `json:"fingerprint"`
	DocumentURI        string    `json:"documentUri"`
	BlockedURI         string    `json:"blockedUri"`
	ViolatedDirective  string    `json:"violatedDirective"`
	EffectiveDirective string    `json:"effectiveDirective"`
	OriginalPolicy     string    `json:"originalPolicy"`
	Disposition        string    `json:"disposition"`
	UserAgent          string    `json:"userAgent"`
	Occurrences        int       `json:"occurrences"`
	FirstSeenAt        time.Time `json:"firstSeenAt"`
	LastSeenAt         time.Time `json:"lastSeenAt"`
}

// Store persists reports.
type Store interface {
	Save(ctx context.Context, r Report) (Report, error)
	Recent(ctx context.Context, limit int) ([]Report, error)
}

// wireReport is the body browsers send with Content-Type application/csp-report.
type wireReport struct {
	Body struct {
		DocumentURI        string `json:"document-uri"`
		BlockedURI         string `json:"blocked-uri"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		OriginalPolicy     string `json:"original-policy"`
		Disposition        string `json:"disposition"`
	} `json:"csp-report"`
}

const maxFieldLength = 2048

// Decode parses a browser report body and stamps it with an id, fingerprint
// and receive time.
func Decode(body io.Reader, userAgent string, now time.Time) (Report, error) {
	var wire wireReport
	dec := json.NewDecoder(body)
	if err := dec.Decode(&wire); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	b := wire.Body

	effective := b.EffectiveDirective
	if effective == "" {
		// Older browsers only send violated-directive, e.g. "img-src https:".
		if fields := strings.Fields(b.ViolatedDirective); len(fields) > 0 {
			effective = fields[0]
		}
	}
	if b.DocumentURI == "" || effective == "" {
		return Report{}, fmt.Errorf("%w: document-uri and a directive are required", ErrInvalidReport)
	}
	disposition := b.Disposition
	if disposition == "" {
		disposition = "enforce"
	}

	r := Report{
		ID:                 uuid.New(),
		DocumentURI:        clip(b.DocumentURI),
		BlockedURI:         clip(b.BlockedURI),
		ViolatedDirective:  clip(b.ViolatedDirective),
		EffectiveDirective: clip(effective),
		OriginalPolicy:     clip(b.OriginalPolicy),
		Disposition:        clip(disposition),
		UserAgent:          clip(userAgent),
		Occurrences:        1,
		FirstSeenAt:        now.UTC(),
		LastSeenAt:         now.UTC(),
	}
	r.Fingerprint = Fingerprint(r.EffectiveDirective, r.BlockedURI, r.DocumentURI)
	return r, nil
}

// Fingerprint identifies a violation independent of when or by whom it was
// reported.
func Fingerprint(directive, blockedURI, documentURI string) string {
	sum := blake2b.Sum256([]byte(directive + "\x00" + blockedURI + "\x00" + documentURI))
	return hex.EncodeToString(sum[:])
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxFieldLength {
		return s[:maxFieldLength]
	}
	return s
}
