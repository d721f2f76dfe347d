package engine

import (
	"math"
	"regexp"
	"unicode"
)

// Per-match weights and fixed heuristic scores.
const (
	lexiconWeight     = 0.3
	obfuscationWeight = 0.4
	threatWeight      = 0.8
	spamWeight        = 0.5

	capsScore   = 0.3
	repeatScore = 0.4

	capsMinRunes     = 10
	capsMaxRatio     = 0.6
	repeatMinRun     = 5
	maxCategoryScore = 1.0
)

// profanityDetector combines whole-word lexicon matches with obfuscation
// patterns into one running score.
type profanityDetector struct {
	patterns []*regexp.Regexp
}

func (d *profanityDetector) Name() string       { return "profanity" }
func (d *profanityDetector) Category() Category { return CategoryProfanity }

func (d *profanityDetector) Detect(req *DetectRequest) *DetectResult {
	var score float64
	var matches int
	var details []string

	// One contribution per distinct entry, however often it occurs.
	for _, e := range req.lexicon {
		if e.re.MatchString(req.Lower) {
			matches++
			score += lexiconWeight
			details = append(details, "lexicon: "+e.word)
		}
	}

	for _, re := range d.patterns {
		if re.MatchString(req.Lower) {
			matches++
			score += obfuscationWeight
			details = append(details, "pattern: "+re.String())
		}
	}

	return &DetectResult{
		Triggered: matches > 0,
		Score:     math.Min(score, maxCategoryScore),
		Matches:   matches,
		Details:   details,
	}
}

// patternDetector scores a category by summing a fixed weight per matching
// pattern.
type patternDetector struct {
	name     string
	category Category
	weight   float64
	patterns []*regexp.Regexp
}

func (d *patternDetector) Name() string       { return d.name }
func (d *patternDetector) Category() Category { return d.category }

func (d *patternDetector) Detect(req *DetectRequest) *DetectResult {
	var score float64
	var matches int
	var details []string

	for _, re := range d.patterns {
		if re.MatchString(req.Lower) {
			matches++
			score += d.weight
			details = append(details, "pattern: "+re.String())
		}
	}

	return &DetectResult{
		Triggered: score > 0,
		Score:     math.Min(score, maxCategoryScore),
		Matches:   matches,
		Details:   details,
	}
}

// capsDetector flags text whose uppercase-letter ratio exceeds capsMaxRatio.
// Texts shorter than capsMinRunes are never flagged.
type capsDetector struct{}

func (capsDetector) Name() string       { return "excessive_caps" }
func (capsDetector) Category() Category { return CategoryExcessiveCaps }

func (capsDetector) Detect(req *DetectRequest) *DetectResult {
	if !hasExcessiveCaps(req.Text) {
		return &DetectResult{}
	}
	return &DetectResult{Triggered: true, Score: capsScore, Matches: 1}
}

func hasExcessiveCaps(text string) bool {
	return upperRatio(text, capsMinRunes) > capsMaxRatio
}

// upperRatio returns the fraction of runes that are uppercase letters, or 0
// when the text has fewer than minRunes runes.
func upperRatio(text string, minRunes int) float64 {
	var total, upper int
	for _, r := range text {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 || total < minRunes {
		return 0
	}
	return float64(upper) / float64(total)
}

// repeatDetector flags any unbroken run of repeatMinRun identical runes.
type repeatDetector struct{}

func (repeatDetector) Name() string       { return "spam_chars" }
func (repeatDetector) Category() Category { return CategorySpamChars }

func (repeatDetector) Detect(req *DetectRequest) *DetectResult {
	if !hasRun(req.Text, repeatMinRun) {
		return &DetectResult{}
	}
	return &DetectResult{Triggered: true, Score: repeatScore, Matches: 1}
}

// hasRun reports whether text holds n or more consecutive identical runes.
// RE2 has no backreferences, so this is a linear scan.
func hasRun(text string, n int) bool {
	count := 0
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
		} else {
			count = 1
			prev = r
		}
		if count >= n {
			return true
		}
	}
	return false
}
