package domain

import (
	"strings"
	"unicode"
)

// NormalizeName prepares a raw entity name for exact-match lookup:
//   - trims leading/trailing whitespace
//   - compresses runs of whitespace into a single space
//
// Case and punctuation are preserved; "Kings Highway" and "King's Highway"
// stay distinct and are reconciled through aliases instead.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name))
	prevSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			b.WriteByte(' ')
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeNamePtr normalizes an optional name. Nil and names that normalize
// to the empty string both yield nil.
func NormalizeNamePtr(name *string) *string {
	if name == nil {
		return nil
	}
	n := NormalizeName(*name)
	if n == "" {
		return nil
	}
	return &n
}
