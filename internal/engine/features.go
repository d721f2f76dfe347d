package engine

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlSchemeRe = regexp.MustCompile(`https?://`)
	emailRe     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	scriptRe    = regexp.MustCompile(`(?is)<script.*?</script>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
)

// Limits for feature extraction and display cleanup.
const (
	featureCapsRatio = 0.5
	featureRepeatRun = 4
	displayMaxRunes  = 1000

	asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Features are descriptive statistics of a text. They do not affect scoring.
type Features struct {
	Length           int     `json:"length"`
	WordCount        int     `json:"word_count"`
	UppercaseRatio   float64 `json:"uppercase_ratio"`
	PunctuationRatio float64 `json:"punctuation_ratio"`
	DigitRatio       float64 `json:"digit_ratio"`
	HasURLs          bool    `json:"has_urls"`
	HasEmails        bool    `json:"has_emails"`
	ExcessiveCaps    bool    `json:"excessive_caps"`
	RepeatedChars    bool    `json:"repeated_chars"`
}

// ExtractFeatures computes Features over text as given.
func ExtractFeatures(text string) Features {
	var total, upper, punct, digits int
	for _, r := range text {
		total++
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(asciiPunctuation, r):
			punct++
		}
	}

	f := Features{
		Length:        total,
		WordCount:     len(strings.Fields(text)),
		HasURLs:       urlSchemeRe.MatchString(text),
		HasEmails:     emailRe.MatchString(text),
		RepeatedChars: hasRun(text, featureRepeatRun),
	}
	if total > 0 {
		f.UppercaseRatio = float64(upper) / float64(total)
		f.PunctuationRatio = float64(punct) / float64(total)
		f.DigitRatio = float64(digits) / float64(total)
		f.ExcessiveCaps = f.UppercaseRatio > featureCapsRatio
	}
	return f
}

// CleanForDisplay strips script blocks and HTML tags and truncates the
// result to displayMaxRunes runes, appending "..." when cut.
func CleanForDisplay(text string) string {
	text = scriptRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")

	runes := []rune(text)
	if len(runes) > displayMaxRunes {
		return string(runes[:displayMaxRunes]) + "..."
	}
	return text
}
