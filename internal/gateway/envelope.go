// Package gateway implements the dispatch API (C7) and the maintenance
// scheduler (C8), and wires together the tunnel, security, and
// connection-log packages into one running gateway process.
package gateway

import (
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	envelopeHeaderPrefix = "Headers:\n"
	envelopeBodyMarker   = "\nBody-Base64:\n"
)

// EncodeEnvelope builds the textual wire contract an agent uses to carry
// arbitrary response headers and binary-safe bytes inside a Response
// body (spec.md §6):
//
//	Headers:
//	<Name>: <Value>
//	...
//
//	Body-Base64:
//	<base64>
func EncodeEnvelope(headers http.Header, body []byte) string {
	var b strings.Builder
	b.WriteString(envelopeHeaderPrefix)
	for name, values := range headers {
		for _, v := range values {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	b.WriteString(envelopeBodyMarker) // leading "\n" supplies the blank line separating headers from the body marker
	b.WriteString(base64.StdEncoding.EncodeToString(body))
	b.WriteByte('\n')
	return b.String()
}

// ParseEnvelope decodes raw per spec.md §6. If raw does not start with
// "Headers:\n", ok is false and body is raw verbatim (the documented
// fallback for agents that don't use the envelope).
func ParseEnvelope(raw string) (headers http.Header, body []byte, ok bool) {
	if !strings.HasPrefix(raw, envelopeHeaderPrefix) {
		return nil, []byte(raw), false
	}

	rest := raw[len(envelopeHeaderPrefix):]
	idx := strings.Index(rest, envelopeBodyMarker)
	if idx < 0 {
		return nil, []byte(raw), false
	}

	headerBlock := strings.TrimSuffix(rest[:idx], "\n")
	encoded := strings.TrimSuffix(rest[idx+len(envelopeBodyMarker):], "\n")

	headers = make(http.Header)
	if headerBlock != "" {
		for _, line := range strings.Split(headerBlock, "\n") {
			name, value, found := strings.Cut(line, ": ")
			if !found {
				continue
			}
			headers.Add(name, value)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, []byte(raw), false
	}

	return headers, decoded, true
}
