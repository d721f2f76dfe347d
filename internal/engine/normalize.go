package engine

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form every check consumes: Unicode
// canonical composition (NFC) followed by trimming surrounding whitespace.
// Case is preserved. Normalizing an already normalized string is a no-op.
func Normalize(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}
