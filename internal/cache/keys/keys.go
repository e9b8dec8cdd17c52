// Package keys derives address cache keys and log-safe fingerprints.
package keys

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Address trims the text and collapses any run of whitespace to a single
// space. No other parsing is applied; case and punctuation are preserved.
func Address(text string) string {
	return collapseWhitespace(strings.TrimSpace(text))
}

// Fingerprint identifies a normalized address in logs without revealing it.
func Fingerprint(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if isSpace(r) {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', '\u00a0':
		return true
	}
	return false
}
