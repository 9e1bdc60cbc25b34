// Package edge adapts the header injector to CloudFront origin-response
// events.
package edge

import (
	"strings"

	"github.com/compactconnect/apps/edge/internal/headers"
)

// Headers is CloudFront's header map: lowercase name to records.
type Headers map[string][]headers.Header

// Value returns the first value stored under name, if any.
func (h Headers) Value(name string) string {
	records := h[strings.ToLower(name)]
	if len(records) == 0 {
		return ""
	}
	return records[0].Value
}

type Event struct {
	Records []EventRecord `json:"Records"`
}

type EventRecord struct {
	CF CloudFront `json:"cf"`
}

type CloudFront struct {
	Config   Config   `json:"config"`
	Request  Request  `json:"request"`
	Response Response `json:"response"`
}

type Config struct {
	DistributionDomainName string `json:"distributionDomainName,omitempty"`
	DistributionID         string `json:"distributionId,omitempty"`
	EventType              string `json:"eventType,omitempty"`
	RequestID              string `json:"requestId,omitempty"`
}

type Request struct {
	ClientIP    string  `json:"clientIp,omitempty"`
	Method      string  `json:"method,omitempty"`
	URI         string  `json:"uri,omitempty"`
	QueryString string  `json:"querystring,omitempty"`
	Headers     Headers `json:"headers,omitempty"`
}

// Host is the request's Host header, or empty.
func (r Request) Host() string {
	return strings.TrimSpace(r.Headers.Value("host"))
}

type Response struct {
	Status            string  `json:"status"`
	StatusDescription string  `json:"statusDescription,omitempty"`
	Headers           Headers `json:"headers,omitempty"`
}
