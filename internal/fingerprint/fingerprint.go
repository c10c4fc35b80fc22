// Package fingerprint normalizes page text and produces stable
// content hashes. Two pages with equal hash are treated as
// content-identical regardless of superficial formatting.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// Volatile tokens that change between exports of the same content:
// version footers, generation timestamps, confidentiality stamps and
// running page numbers.
var volatilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Form Version:.*`),
	regexp.MustCompile(`(?im)Generated Time \(GMT\):.*`),
	regexp.MustCompile(`(?i)\\Confidential\\`),
	regexp.MustCompile(`(?im)Page \d+ of \d+`),
}

var blankRuns = regexp.MustCompile(`\n\s*\n+`)
var spaceRuns = regexp.MustCompile(`[ \t]+`)

// Sanitize strips volatile tokens and collapses blank-line runs.
// The page structure (line breaks) is preserved so line-based
// similarity still sees the page shape.
func Sanitize(text string) string {
	for _, re := range volatilePatterns {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}

// Normalize sanitizes, collapses horizontal whitespace and case-folds.
// This is the canonical form that gets hashed.
func Normalize(text string) string {
	text = Sanitize(text)
	text = spaceRuns.ReplaceAllString(text, " ")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return strings.ToLower(b.String())
}

// Hash returns the SHA-256 hex digest of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return fmt.Sprintf("%x", sum[:])
}

// HashBlock fingerprints a multi-page block by hashing the
// concatenation of each page's normalized text, in order.
func HashBlock(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(Normalize(p))
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum[:])
}
