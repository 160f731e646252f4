package gateway

import (
	"bytes"
	"net/http"
	"testing"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
		body    []byte
	}{
		{"simple", http.Header{"Content-Type": {"text/plain"}}, []byte("hi")},
		{"multi value", http.Header{"X-Foo": {"a", "b"}}, []byte("data")},
		{"no headers", http.Header{}, []byte("just a body")},
		{"binary body", http.Header{"Content-Type": {"application/octet-stream"}}, []byte{0, 1, 2, 255, 0, 254}},
		{"empty body", http.Header{"Content-Type": {"text/plain"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeEnvelope(tt.headers, tt.body)
			headers, body, ok := ParseEnvelope(encoded)
			if !ok {
				t.Fatalf("ParseEnvelope reported ok=false for a valid envelope")
			}
			for name, values := range tt.headers {
				if got := headers.Values(name); !equalStrings(got, values) {
					t.Errorf("header %q: got %v, want %v", name, got, values)
				}
			}
			if !bytes.Equal(body, tt.body) && !(len(body) == 0 && len(tt.body) == 0) {
				t.Errorf("body: got %v, want %v", body, tt.body)
			}
		})
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseEnvelope_VerbatimFallback(t *testing.T) {
	raw := "just some plain text, not an envelope"
	headers, body, ok := ParseEnvelope(raw)
	if ok {
		t.Fatalf("expected ok=false for non-envelope body")
	}
	if headers != nil {
		t.Fatalf("expected nil headers for verbatim fallback")
	}
	if string(body) != raw {
		t.Fatalf("expected verbatim body, got %q", body)
	}
}

func TestParseEnvelope_HeaderSplitterIsFirstColonSpace(t *testing.T) {
	raw := "Headers:\nX-Note: value: with: colons\n\nBody-Base64:\naGk=\n"
	headers, body, ok := ParseEnvelope(raw)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if got := headers.Get("X-Note"); got != "value: with: colons" {
		t.Fatalf("expected splitter to use first \": \" only, got %q", got)
	}
	if string(body) != "hi" {
		t.Fatalf("expected decoded body 'hi', got %q", body)
	}
}

func TestParseEnvelope_MissingBodyMarkerFallsBackVerbatim(t *testing.T) {
	raw := "Headers:\nX: 1\nno body marker here"
	_, body, ok := ParseEnvelope(raw)
	if ok {
		t.Fatalf("expected ok=false when Body-Base64 marker is absent")
	}
	if string(body) != raw {
		t.Fatalf("expected verbatim fallback")
	}
}
