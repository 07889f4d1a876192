// Package annotation implements the asynchronous annotation flow: the
// mention detector, the external annotation capability, and the retry
// pipeline that swaps a loading placeholder for exactly one terminal
// comment.
package annotation

import "strings"

// DefaultTokens are the mention tokens that mark a comment as
// annotation-eligible. Matching is an exact, case-sensitive substring
// check.
var DefaultTokens = []string{"@GeminiHoca"}

// Detector classifies comment text. It is pure: no state, no I/O.
type Detector struct {
	tokens []string
}

// NewDetector creates a detector for the given tokens, falling back to
// DefaultTokens when none are provided.
func NewDetector(tokens ...string) *Detector {
	if len(tokens) == 0 {
		tokens = DefaultTokens
	}
	return &Detector{tokens: tokens}
}

// Triggered reports whether the text contains any mention token.
func (d *Detector) Triggered(text string) bool {
	for _, token := range d.tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
