// Package strings holds small string helpers shared by boundary normalization.
package strings

import (
	"strings"
)

// DedupeFold trims each element, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling seen. A non-nil input yields a non-nil
// result so "replace with nothing" survives normalization.
//
//	DedupeFold([]string{" Go ", "go", "", "Rust"})
//	// []string{"Go", "Rust"}
func DedupeFold(values []string) []string {
	if values == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// IsSlug reports whether s is a URL-safe member key: lowercase ASCII letters,
// digits and single inner hyphens. All-digit strings are member ids, not slugs.
func IsSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevHyphen, digitsOnly := false, true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			prevHyphen = false
		case c >= 'a' && c <= 'z':
			prevHyphen, digitsOnly = false, false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen, digitsOnly = true, false
		default:
			return false
		}
	}
	return !digitsOnly
}
