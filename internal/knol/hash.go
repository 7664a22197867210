// Package knol derives stable item identifiers from item content.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize joins the set id and both image references after cleaning each
// part. Image references are paths or URLs, so case is preserved; only
// surrounding whitespace and backslash separators are normalised.
func Normalize(setID, question, answer string) string {
	normalizePart := func(part string) string {
		p := strings.TrimSpace(part)
		p = strings.ReplaceAll(p, "\\", "/")
		return p
	}

	// Joined with a newline so that ("ab", "c") and ("a", "bc") differ.
	return strings.Join([]string{normalizePart(setID), normalizePart(question), normalizePart(answer)}, "\n")
}

// Hash returns the SHA-256 of the normalized content as a hex string.
func Hash(setID, question, answer string) string {
	hashBytes := sha256.Sum256([]byte(Normalize(setID, question, answer)))
	return fmt.Sprintf("%x", hashBytes)
}
