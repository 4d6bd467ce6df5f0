package fingerprint

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// Generate creates a client fingerprint from the HTTP request.
// It combines the User-Agent string, Accept headers, and a canonical
// ordering of stable header names into a 32-character hex string.
//
// The client IP is deliberately excluded: an address change on a mobile
// or corporate network is an ordinary event that should raise the risk
// score, not terminate the session. A fingerprint mismatch, by contrast,
// is treated as session reuse from a different client.
func Generate(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Accept"),
		headerOrder(r),
	}

	var filtered []string
	for _, comp := range components {
		if comp != "" {
			filtered = append(filtered, comp)
		}
	}

	combined := strings.Join(filtered, "|")
	hash := sha256.Sum256([]byte(combined))

	// First 16 bytes as a 32-character hex string
	return hex.EncodeToString(hash[:16])
}

// Validate compares the current request fingerprint against a stored one
// in constant time. A stored empty fingerprint always validates, allowing
// the caller to bind it on first use.
func Validate(r *http.Request, stored string) bool {
	if stored == "" {
		return true
	}
	current := Generate(r)
	return subtle.ConstantTimeCompare([]byte(current), []byte(stored)) == 1
}

// headerOrder fingerprints the set of stable headers the client sends.
// Different browsers and HTTP clients present different header sets,
// which makes this a useful distinguishing characteristic.
func headerOrder(r *http.Request) string {
	var names []string
	for name := range r.Header {
		switch strings.ToLower(name) {
		case "user-agent", "accept", "accept-language", "accept-encoding",
			"connection", "upgrade-insecure-requests", "sec-fetch-dest",
			"sec-fetch-mode", "sec-fetch-site", "cache-control":
			names = append(names, strings.ToLower(name))
		}
	}

	// Sort for a stable result across identical header sets
	sort.Strings(names)
	return strings.Join(names, ",")
}
