// Package auth provides the gateway's admin-credential comparison helpers:
// extracting a bearer-like key from an Authorization header and comparing
// it to the configured admin API key in constant time.
package auth

import (
	"crypto/subtle"
	"strings"
)

// ExtractAdminKey pulls the credential out of an Authorization header,
// accepting the three forms the dispatch API must recognize, in priority
// order: "Bearer <key>", "ApiKey <key>", or the raw key with no scheme.
// The scheme prefix match is case-insensitive; the key itself is trimmed
// once after the prefix is removed ("Bearer  k" yields "k").
func ExtractAdminKey(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	for _, scheme := range []string{"Bearer ", "ApiKey "} {
		if strings.EqualFold(header, strings.TrimSpace(scheme)) {
			return "", false
		}
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			key := strings.TrimSpace(header[len(scheme):])
			if key == "" {
				return "", false
			}
			return key, true
		}
	}

	return header, true
}

// ConstantTimeEquals compares two credential strings without leaking
// timing information about where they first differ.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
