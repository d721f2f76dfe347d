package engine

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Moderator scores texts against one Lexicon and one PatternSet.
//
// Scoring is read-only and safe for concurrent use. AddWords may run
// concurrently with scoring; each scoring call (and each batch) works on a
// lexicon snapshot taken when it starts.
type Moderator struct {
	lexicon  *Lexicon
	patterns *PatternSet
	profane  *profanityDetector
	checks   []Detector
	logger   *zap.Logger
}

// NewModerator builds a Moderator with the default lexicon and patterns.
// It never fails; patterns that do not compile are dropped and logged.
func NewModerator(logger *zap.Logger) *Moderator {
	return NewModeratorWith(NewLexicon(DefaultLexicon...), DefaultPatternSet(logger), logger)
}

// NewModeratorWith builds a Moderator around the given lexicon and patterns.
func NewModeratorWith(lexicon *Lexicon, patterns *PatternSet, logger *zap.Logger) *Moderator {
	profane := &profanityDetector{patterns: patterns.Obfuscation}
	m := &Moderator{
		lexicon:  lexicon,
		patterns: patterns,
		profane:  profane,
		logger:   logger,
	}
	// Evaluation order is the order categories appear in a Result.
	m.checks = []Detector{
		profane,
		&patternDetector{name: "threats", category: CategoryThreats, weight: threatWeight, patterns: patterns.Threat},
		&patternDetector{name: "spam", category: CategorySpam, weight: spamWeight, patterns: patterns.Spam},
		capsDetector{},
		repeatDetector{},
	}

	if dropped := patterns.Dropped(); len(dropped) > 0 {
		logger.Warn("moderator running with reduced pattern coverage",
			zap.Int("dropped_patterns", len(dropped)),
		)
	}
	return m
}

// Lexicon returns the moderator's lexicon.
func (m *Moderator) Lexicon() *Lexicon { return m.lexicon }

// Patterns returns the moderator's compiled patterns.
func (m *Moderator) Patterns() *PatternSet { return m.patterns }

// Moderate normalizes text and runs every check against it.
func (m *Moderator) Moderate(text string) *Result {
	return m.moderate(m.lexicon.snapshot(), text)
}

// Evaluate is Moderate that also returns every detector's raw result,
// triggered or not, in evaluation order.
func (m *Moderator) Evaluate(text string) (*Result, []DetectorResult) {
	req := newDetectRequest(m.lexicon.snapshot(), text)
	results := m.run(req)
	return Aggregate(req.Text, results), results
}

func (m *Moderator) moderate(lexicon []lexiconEntry, text string) *Result {
	req := newDetectRequest(lexicon, text)
	return Aggregate(req.Text, m.run(req))
}

func (m *Moderator) run(req *DetectRequest) []DetectorResult {
	results := make([]DetectorResult, 0, len(m.checks))
	for _, d := range m.checks {
		results = append(results, DetectorResult{
			Detector:     d.Name(),
			Category:     d.Category(),
			DetectResult: *d.Detect(req),
		})
	}
	return results
}

func newDetectRequest(lexicon []lexiconEntry, text string) *DetectRequest {
	normalized := Normalize(text)
	return &DetectRequest{
		Text:    normalized,
		Lower:   strings.ToLower(normalized),
		lexicon: lexicon,
	}
}

// ModerateBatch scores every text independently and returns the results in
// input order. It is all-or-nothing: if any item fails, no results are
// returned. An item fails when ctx is done before it starts; an item that
// has started always runs to completion.
func (m *Moderator) ModerateBatch(ctx context.Context, texts []string) ([]*Result, error) {
	lexicon := m.lexicon.snapshot()
	results := make([]*Result, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("ModerateBatch: item %d: %w", i, err)
			}
			results[i] = m.moderate(lexicon, text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AddWords lowercases each word and adds it to the lexicon.
func (m *Moderator) AddWords(words ...string) {
	added := m.lexicon.Add(words...)
	m.logger.Debug("lexicon extended",
		zap.Int("requested", len(words)),
		zap.Int("added", added),
		zap.Int("size", m.lexicon.Len()),
	)
}

// ContainsProfanity reports whether the combined lexicon and obfuscation
// check matches the normalized, lowercased text.
func (m *Moderator) ContainsProfanity(text string) bool {
	return m.CheckProfanity(text).Triggered
}

// ProfanityScore returns the clamped combined profanity score.
func (m *Moderator) ProfanityScore(text string) float64 {
	return m.CheckProfanity(text).Score
}

// CheckProfanity runs the combined lexicon and obfuscation check once and
// returns both whether it triggered and the clamped score.
func (m *Moderator) CheckProfanity(text string) *DetectResult {
	return m.profane.Detect(newDetectRequest(m.lexicon.snapshot(), text))
}
