// Package imageid derives a stable content address for an image URL.
// Query strings and fragments carry signing/size parameters that vary
// between fetches of the same underlying image, so the identity is a
// digest of the URL with both stripped.
package imageid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize strips the query and fragment components and surrounding
// whitespace. An empty input normalizes to "".
func Normalize(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return ""
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return u
}

// Hash returns the hex sha256 of the normalized URL. Empty or
// whitespace-only input yields "", which callers treat as "no identity"
// and skip.
func Hash(rawURL string) string {
	canonical := Normalize(rawURL)
	if canonical == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
