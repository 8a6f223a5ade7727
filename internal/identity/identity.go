// Package identity derives the dedup keys of a posting.
//
// A fingerprint identifies "the same posting" across re-ingestions; a content
// hash detects whether that posting's substantive text changed. Both are
// SHA-256 over normalized fields, so casing, punctuation and whitespace
// variations of the same listing map to the same keys.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"jobintel-engine/internal/domain"
)

// Normalize lowercases s, drops everything except ASCII letters, digits and
// whitespace, collapses whitespace runs and trims.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fingerprint hashes
//
//	lower(source):sourceId:norm(title):norm(company):upper(state):lower(suburb)
func Fingerprint(p domain.Posting) string {
	parts := []string{
		strings.ToLower(p.Source),
		p.SourceID,
		Normalize(p.Title),
		Normalize(p.Company),
		strings.ToUpper(domain.Deref(p.State)),
		strings.ToLower(domain.Deref(p.Suburb)),
	}
	return hashString(strings.Join(parts, ":"))
}

// ContentHash hashes norm(description) + "|" + norm(requirements).
func ContentHash(description string, requirements *string) string {
	return hashString(Normalize(description) + "|" + Normalize(domain.Deref(requirements)))
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
