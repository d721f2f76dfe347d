package engine

import (
	"regexp"
	"strings"
	"unicode"
)

// RE2's \b and \w only know ASCII word characters. Matching needs Unicode
// word semantics (letters, numbers, marks and underscore), so word edges
// are spelled out as consuming classes. Every pattern is only used with
// MatchString, where consuming the neighbouring rune is harmless.
const (
	wordChars = `\p{L}\p{N}\p{M}_`
	wordRune  = `[` + wordChars + `]`
	wordStart = `(?:^|[^` + wordChars + `])`
	wordEnd   = `(?:[^` + wordChars + `]|$)`
	space     = `[\s\p{Z}\x{85}]`
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.In(r, unicode.L, unicode.N, unicode.M)
}

// wholeWordPattern is the Unicode equivalent of `\b` + QuoteMeta(w) + `\b`.
// A boundary next to a word rune needs a non-word rune or a text edge on the
// other side; a boundary next to a non-word rune needs a word rune there.
func wholeWordPattern(w string) string {
	if w == "" {
		// \b\b matches wherever a boundary exists, i.e. any text with a word rune.
		return wordRune
	}
	runes := []rune(w)

	var b strings.Builder
	if isWordRune(runes[0]) {
		b.WriteString(wordStart)
	} else {
		b.WriteString(wordRune)
	}
	b.WriteString(regexp.QuoteMeta(w))
	if isWordRune(runes[len(runes)-1]) {
		b.WriteString(wordEnd)
	} else {
		b.WriteString(wordRune)
	}
	return b.String()
}
