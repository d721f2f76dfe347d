package engine

import (
	"regexp"

	"go.uber.org/zap"
)

// DefaultLexicon is the built-in set of offensive words and phrases.
var DefaultLexicon = []string{
	"damn", "hell", "shit", "fuck", "fucking", "bitch", "asshole", "bastard",
	"crap", "piss", "dick", "cock", "pussy", "whore", "slut", "retard",
	"idiot", "stupid", "dumb", "moron", "nazi", "terrorist", "kill yourself",
	"kys", "suicide", "murder", "rape", "molest", "pedophile", "faggot",
	"nigger", "nigga", "spic", "chink", "gook", "kike", "wetback",
}

// Pattern sources. All of them run against lowercased text. Word edges use
// the Unicode-aware pieces from boundary.go.
var (
	// Letter repetition on the most severe words, plus symbol substitutions.
	// A leading symbol substitution needs word runes before it, as it would
	// under a \b anchor.
	obfuscationSources = []string{
		wordStart + `(f+u+c+k+|s+h+i+t+|d+a+m+n+)` + wordEnd,
		wordStart + `(?:` + wordRune + `+[4@]|4)ss`,
		wordStart + wordRune + `*b[i1]tch`,
		wordStart + `(?:` + wordRune + `+[5$]|5)h[i1]t`,
	}

	threatSources = []string{
		wordStart + `(kill|murder|shoot|stab|bomb|terror)` + space + `+(you|him|her|them)` + wordEnd,
		wordStart + `going` + space + `+to` + space + `+(kill|hurt|destroy)` + wordEnd,
		wordStart + `(death|violence|harm)` + space + `+threat` + wordEnd,
		wordStart + `i` + space + `+will` + space + `+(kill|hurt|destroy)` + wordEnd,
	}

	spamSources = []string{
		wordStart + `(buy` + space + `+now|click` + space + `+here|free` + space + `+money)` + wordEnd,
		wordStart + `(viagra|casino|lottery|winner)` + wordEnd,
		`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`,
	}
)

// PatternSet holds the compiled obfuscation, threat and spam patterns.
// It is immutable after construction.
type PatternSet struct {
	Obfuscation []*regexp.Regexp
	Threat      []*regexp.Regexp
	Spam        []*regexp.Regexp

	dropped []string
}

// Dropped returns the sources that failed to compile.
func (p *PatternSet) Dropped() []string {
	return append([]string(nil), p.dropped...)
}

// DefaultPatternSet compiles the built-in pattern sources.
func DefaultPatternSet(logger *zap.Logger) *PatternSet {
	return CompilePatterns(obfuscationSources, threatSources, spamSources, logger)
}

// CompilePatterns compiles the three source lists. A source that fails to
// compile is dropped from its list and logged; construction never fails.
func CompilePatterns(obfuscation, threat, spam []string, logger *zap.Logger) *PatternSet {
	ps := &PatternSet{}
	ps.Obfuscation = ps.compile("obfuscation", obfuscation, logger)
	ps.Threat = ps.compile("threat", threat, logger)
	ps.Spam = ps.compile("spam", spam, logger)
	return ps
}

func (p *PatternSet) compile(kind string, sources []string, logger *zap.Logger) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			logger.Warn("dropping pattern that failed to compile",
				zap.String("kind", kind),
				zap.String("pattern", src),
				zap.Error(err),
			)
			p.dropped = append(p.dropped, src)
			continue
		}
		out = append(out, re)
	}
	return out
}
