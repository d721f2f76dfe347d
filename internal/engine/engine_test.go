package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestModerator(t testing.TB) *Moderator {
	t.Helper()
	return NewModerator(zap.NewNop())
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestModerate_LexiconWordFlagsProfanity(t *testing.T) {
	m := newTestModerator(t)

	res := m.Moderate("I said damn it")
	if res.IsAppropriate {
		t.Fatal("expected is_appropriate=false")
	}
	if !reflect.DeepEqual(res.FlaggedCategories, []string{"profanity"}) {
		t.Fatalf("expected [profanity], got %v", res.FlaggedCategories)
	}
	if res.ConfidenceScore < 0.3 {
		t.Errorf("confidence %.2f below 0.3", res.ConfidenceScore)
	}
	// lexicon "damn" (0.3) + repeated-letter pattern (0.4)
	if !approx(res.ConfidenceScore, 0.7) {
		t.Errorf("expected 0.7, got %v", res.ConfidenceScore)
	}
}

func TestModerate_ExcessiveCaps(t *testing.T) {
	m := newTestModerator(t)

	res := m.Moderate("ABCDEFGHIJKLMNOPQRST")
	if !reflect.DeepEqual(res.FlaggedCategories, []string{"excessive_caps"}) {
		t.Fatalf("expected [excessive_caps], got %v", res.FlaggedCategories)
	}
	if res.ConfidenceScore < 0.3 {
		t.Errorf("confidence %.2f below 0.3", res.ConfidenceScore)
	}

	short := m.Moderate("ABCDE")
	if short.Flagged(CategoryExcessiveCaps) {
		t.Error("5-character text must not flag excessive_caps")
	}
	if !short.IsAppropriate {
		t.Errorf("expected appropriate, got %v", short.FlaggedCategories)
	}
}

func TestModerate_RepeatedChars(t *testing.T) {
	m := newTestModerator(t)

	res := m.Moderate("aaaaaaaa")
	if !reflect.DeepEqual(res.FlaggedCategories, []string{"spam_chars"}) {
		t.Fatalf("expected [spam_chars], got %v", res.FlaggedCategories)
	}
	if !approx(res.ConfidenceScore, 0.4) {
		t.Errorf("expected 0.4, got %v", res.ConfidenceScore)
	}

	if res := m.Moderate("aaaa"); !res.IsAppropriate {
		t.Errorf("4 identical characters must not flag, got %v", res.FlaggedCategories)
	}
}

func TestModerate_CleanText(t *testing.T) {
	m := newTestModerator(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Have a nice day", "Have a nice day"},
		{"trimmed", "  \tHave a nice day\n ", "Have a nice day"},
		{"composed", "Cafe\u0301 opens at noon", "Caf\u00e9 opens at noon"},
		{"hello is not hell", "Hello there, friend", "Hello there, friend"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Moderate(tt.input)
			if !res.IsAppropriate {
				t.Errorf("expected appropriate, flagged %v", res.FlaggedCategories)
			}
			if res.ConfidenceScore != 0 {
				t.Errorf("expected confidence 0, got %v", res.ConfidenceScore)
			}
			if len(res.FlaggedCategories) != 0 {
				t.Errorf("expected no categories, got %v", res.FlaggedCategories)
			}
			if res.ProcessedText != tt.want {
				t.Errorf("processed_text = %q, want %q", res.ProcessedText, tt.want)
			}
		})
	}
}

func TestModerate_CasePreservedInProcessedText(t *testing.T) {
	m := newTestModerator(t)
	res := m.Moderate("  Damn It  ")
	if res.ProcessedText != "Damn It" {
		t.Errorf("expected case-preserved %q, got %q", "Damn It", res.ProcessedText)
	}
	if !res.Flagged(CategoryProfanity) {
		t.Error("matching must run on the lowercased text")
	}
}

func TestModerate_CategoryScores(t *testing.T) {
	m := newTestModerator(t)

	tests := []struct {
		name     string
		input    string
		category Category
		score    float64
	}{
		{"single lexicon entry", "that is crap", CategoryProfanity, 0.3},
		{"entry repeated counts once", "crap crap crap", CategoryProfanity, 0.3},
		{"two distinct entries", "crap and piss", CategoryProfanity, 0.6},
		{"obfuscated repetition", "fuuuuck", CategoryProfanity, 0.4},
		{"symbol substitution", "you b1tch", CategoryProfanity, 0.4},
		{"single threat pattern", "we are going to hurt", CategoryThreats, 0.8},
		{"two threat patterns clamp", "i will kill you", CategoryThreats, 1.0},
		{"single spam pattern", "click here to claim", CategorySpam, 0.5},
		{"one pattern many keywords", "casino winner", CategorySpam, 0.5},
		{"two spam patterns", "buy now at https://example.com/deal", CategorySpam, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Moderate(tt.input)
			got, ok := res.Scores[tt.category]
			if !ok {
				t.Fatalf("expected %s flagged, got %v", tt.category, res.FlaggedCategories)
			}
			if !approx(got, tt.score) {
				t.Errorf("%s score = %v, want %v", tt.category, got, tt.score)
			}
		})
	}
}

func TestModerate_ScoreClampedAtOne(t *testing.T) {
	m := newTestModerator(t)

	res := m.Moderate("damn hell shit crap piss")
	score := res.Scores[CategoryProfanity]
	if score > 1.0 {
		t.Fatalf("profanity score %v exceeds 1.0", score)
	}
	if !approx(score, 1.0) {
		t.Errorf("expected clamped 1.0, got %v", score)
	}
	if res.ConfidenceScore > 1.0 {
		t.Errorf("confidence %v exceeds 1.0", res.ConfidenceScore)
	}
}

func TestModerate_ConfidenceIsMaxNotSum(t *testing.T) {
	m := newTestModerator(t)

	// profanity 0.3, spam 0.5
	res := m.Moderate("crap, click here")
	if !reflect.DeepEqual(res.FlaggedCategories, []string{"profanity", "spam"}) {
		t.Fatalf("unexpected categories: %v", res.FlaggedCategories)
	}
	if !approx(res.ConfidenceScore, 0.5) {
		t.Errorf("expected max 0.5, got %v", res.ConfidenceScore)
	}
}

func TestModerate_EvaluationOrder(t *testing.T) {
	m := newTestModerator(t)

	res := m.Moderate("DAMN I WILL KILL YOU, CLICK HERE!!!!!")
	want := []string{"profanity", "threats", "spam", "excessive_caps", "spam_chars"}
	if !reflect.DeepEqual(res.FlaggedCategories, want) {
		t.Fatalf("expected %v, got %v", want, res.FlaggedCategories)
	}
	if !approx(res.ConfidenceScore, 1.0) {
		t.Errorf("expected 1.0, got %v", res.ConfidenceScore)
	}
}

func TestModerate_Idempotent(t *testing.T) {
	m := newTestModerator(t)

	inputs := []string{
		"  I said damn it  ",
		"Cafe\u0301 FREE MONEY!!!!!",
		"ABCDEFGHIJKLMNOPQRST",
		"nothing to see here",
	}
	for _, in := range inputs {
		first := m.Moderate(in)
		second := m.Moderate(first.ProcessedText)
		if !reflect.DeepEqual(first.FlaggedCategories, second.FlaggedCategories) {
			t.Errorf("%q: categories %v then %v", in, first.FlaggedCategories, second.FlaggedCategories)
		}
		if first.ConfidenceScore != second.ConfidenceScore {
			t.Errorf("%q: confidence %v then %v", in, first.ConfidenceScore, second.ConfidenceScore)
		}
	}
}

func TestModerate_InvariantAppropriateIffNoCategories(t *testing.T) {
	m := newTestModerator(t)

	for _, in := range []string{"", "hi", "damn", "AAAAAAAAAAAA", "visit http://x.io"} {
		res := m.Moderate(in)
		if res.IsAppropriate != (len(res.FlaggedCategories) == 0) {
			t.Errorf("%q: is_appropriate=%v with categories %v", in, res.IsAppropriate, res.FlaggedCategories)
		}
		if res.IsAppropriate && res.ConfidenceScore != 0 {
			t.Errorf("%q: appropriate result with confidence %v", in, res.ConfidenceScore)
		}
	}
}

func TestModerateBatch_EqualsSequential(t *testing.T) {
	m := newTestModerator(t)

	texts := []string{
		"I said damn it",
		"Have a nice day",
		"aaaaaaaa",
		"i will kill you",
		"ABCDEFGHIJKLMNOPQRST",
		"buy now at https://example.com",
	}

	got, err := m.ModerateBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(got))
	}
	for i, text := range texts {
		want := m.Moderate(text)
		if !reflect.DeepEqual(got[i], want) {
			t.Errorf("item %d (%q): batch %+v, single %+v", i, text, got[i], want)
		}
	}
}

func TestModerateBatch_Empty(t *testing.T) {
	m := newTestModerator(t)

	got, err := m.ModerateBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestModerateBatch_AllOrNothing(t *testing.T) {
	m := newTestModerator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := m.ModerateBatch(ctx, []string{"hello", "damn", "world"})
	if err == nil {
		t.Fatal("expected error for cancelled batch")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no partial results, got %d", len(got))
	}
}

func TestAddWords_LowercasesAndExtends(t *testing.T) {
	m := newTestModerator(t)
	before := m.Lexicon().Len()

	if m.ContainsProfanity("you absolute frobnicator") {
		t.Fatal("word should not match before it is added")
	}

	m.AddWords("Frobnicator", "FROBNICATOR", "damn")

	if got := m.Lexicon().Len(); got != before+1 {
		t.Errorf("expected lexicon size %d, got %d", before+1, got)
	}
	if !m.Lexicon().Contains("frobnicator") {
		t.Error("expected lowercased entry in lexicon")
	}
	res := m.Moderate("You absolute FROBNICATOR")
	if !res.Flagged(CategoryProfanity) {
		t.Errorf("expected profanity after AddWords, got %v", res.FlaggedCategories)
	}
}

func TestAddWords_ConcurrentWithScoring(t *testing.T) {
	m := newTestModerator(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.AddWords("gadzooks", "zounds")
		}()
		go func() {
			defer wg.Done()
			if _, err := m.ModerateBatch(context.Background(), []string{"zounds", "damn"}); err != nil {
				t.Errorf("batch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if !m.ContainsProfanity("zounds") {
		t.Error("expected added word to match once writers finished")
	}
}

func TestContainsProfanityAndScore(t *testing.T) {
	m := newTestModerator(t)

	tests := []struct {
		input    string
		contains bool
		score    float64
	}{
		{"Have a nice day", false, 0},
		{"  DAMN  ", true, 0.7},
		{"FUUUCK", true, 0.4},
		{"crap", true, 0.3},
		{"damn hell shit crap piss", true, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := m.ContainsProfanity(tt.input); got != tt.contains {
				t.Errorf("ContainsProfanity(%q) = %v, want %v", tt.input, got, tt.contains)
			}
			if got := m.ProfanityScore(tt.input); !approx(got, tt.score) {
				t.Errorf("ProfanityScore(%q) = %v, want %v", tt.input, got, tt.score)
			}
			if res := m.CheckProfanity(tt.input); res.Triggered != tt.contains || !approx(res.Score, tt.score) {
				t.Errorf("CheckProfanity(%q) = %v/%v, want %v/%v", tt.input, res.Triggered, res.Score, tt.contains, tt.score)
			}
		})
	}
}

func TestEvaluate_ReportsEveryDetector(t *testing.T) {
	m := newTestModerator(t)

	res, details := m.Evaluate("crap")
	if len(details) != len(Categories) {
		t.Fatalf("expected %d detector results, got %d", len(Categories), len(details))
	}
	for i, d := range details {
		if d.Category != Categories[i] {
			t.Errorf("detector %d: category %s, want %s", i, d.Category, Categories[i])
		}
	}
	if !details[0].Triggered || details[0].Details[0] != "lexicon: crap" {
		t.Errorf("unexpected profanity details: %+v", details[0])
	}
	if !reflect.DeepEqual(res, m.Moderate("crap")) {
		t.Error("Evaluate and Moderate disagree")
	}
}

func TestNewModerator_DroppedPatternsDoNotFail(t *testing.T) {
	ps := CompilePatterns(
		[]string{`(unclosed`, `\bdarn\b`},
		[]string{`[z-a]`},
		nil,
		zap.NewNop(),
	)
	if len(ps.Obfuscation) != 1 {
		t.Errorf("expected 1 obfuscation pattern, got %d", len(ps.Obfuscation))
	}
	if len(ps.Threat) != 0 {
		t.Errorf("expected 0 threat patterns, got %d", len(ps.Threat))
	}
	if len(ps.Dropped()) != 2 {
		t.Errorf("expected 2 dropped sources, got %v", ps.Dropped())
	}

	m := NewModeratorWith(NewLexicon(), ps, zap.NewNop())
	if !m.ContainsProfanity("well darn") {
		t.Error("surviving pattern should still match")
	}
	if res := m.Moderate("i will kill you"); res.Flagged(CategoryThreats) {
		t.Error("threat detection should be empty after its only pattern was dropped")
	}
}

func TestDefaultPatternSet_AllCompile(t *testing.T) {
	ps := DefaultPatternSet(zap.NewNop())
	if len(ps.Dropped()) != 0 {
		t.Fatalf("built-in patterns failed to compile: %v", ps.Dropped())
	}
	if len(ps.Obfuscation) != 4 || len(ps.Threat) != 4 || len(ps.Spam) != 3 {
		t.Errorf("unexpected pattern counts: %d/%d/%d", len(ps.Obfuscation), len(ps.Threat), len(ps.Spam))
	}
}

func BenchmarkModerate_Safe(b *testing.B) {
	m := newTestModerator(b)
	text := "Can you help me write a business proposal for a tech startup?"

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.Moderate(text)
	}
}

func BenchmarkModerateBatch(b *testing.B) {
	m := newTestModerator(b)
	texts := make([]string, 256)
	for i := range texts {
		texts[i] = "I said damn it, CLICK HERE!!!!!"
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := m.ModerateBatch(context.Background(), texts); err != nil {
			b.Fatal(err)
		}
	}
}

func TestModerate_NonASCIIWords(t *testing.T) {
	m := NewModerator(zap.NewNop())
	m.AddWords("ñoño", "блять")

	flagged := []string{"ñoño", "ты блять", "ÑOÑO"}
	for _, text := range flagged {
		if res := m.Moderate(text); !res.Flagged(CategoryProfanity) {
			t.Errorf("%q: expected profanity, got %v", text, res.FlaggedCategories)
		}
	}

	// ASCII entries and patterns must not fire inside accented words.
	clean := []string{"hellö", "damné", "shité"}
	for _, text := range clean {
		if res := m.Moderate(text); !res.IsAppropriate {
			t.Errorf("%q: expected clean, got %v", text, res.FlaggedCategories)
		}
	}
}

func TestDefaultPatterns_UnicodeEdges(t *testing.T) {
	m := NewModerator(zap.NewNop())

	tests := []struct {
		text string
		cat  Category
		want bool
	}{
		{"i will kill him", CategoryThreats, true},
		{"i\u00a0will\u00a0kill\u00a0him", CategoryThreats, true},
		{"kill himé", CategoryThreats, false},
		{"buy now", CategorySpam, true},
		{"buy nowé", CategorySpam, false},
		{"le casino", CategorySpam, true},
		{"écasino", CategorySpam, false},
		{"d@ss", CategoryProfanity, true},
		{"@ss", CategoryProfanity, false},
		{"$hit", CategoryProfanity, false},
		{"bull$hit", CategoryProfanity, true},
	}
	for _, tt := range tests {
		res := m.Moderate(tt.text)
		if got := res.Flagged(tt.cat); got != tt.want {
			t.Errorf("%q: %s flagged = %v, want %v (%v)", tt.text, tt.cat, got, tt.want, res.FlaggedCategories)
		}
	}
}
