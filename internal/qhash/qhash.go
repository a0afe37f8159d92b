// Package qhash derives a stable content hash for an imported question
// so that re-running an import does not duplicate it.
package qhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize cleans each part (trim, lowercase, unify line endings) and
// joins them with newlines so that neighbouring fields can never run
// into each other.
func Normalize(question, answer, context string) string {
	parts := []string{question, answer, context}
	for i, p := range parts {
		p = strings.ToLower(p)
		p = strings.TrimSpace(p)
		parts[i] = strings.ReplaceAll(p, "\r\n", "\n")
	}
	return strings.Join(parts, "\n")
}

// Hash returns the SHA-256 of the normalized content as a hex string.
// Two questions that differ only in case, surrounding whitespace or
// line endings hash identically.
func Hash(question, answer, context string) string {
	sum := sha256.Sum256([]byte(Normalize(question, answer, context)))
	return fmt.Sprintf("%x", sum)
}
