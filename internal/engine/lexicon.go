package engine

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// lexiconEntry is a lexicon word with its whole-word matcher.
type lexiconEntry struct {
	word string
	re   *regexp.Regexp
}

// Lexicon is a grow-only set of lowercase offensive words and phrases.
//
// Scoring reads a snapshot taken under the read lock; AddWords takes the
// write lock. A snapshot is unaffected by additions made after it was taken.
type Lexicon struct {
	mu      sync.RWMutex
	entries map[string]*regexp.Regexp
}

// NewLexicon creates a lexicon holding the given words.
func NewLexicon(words ...string) *Lexicon {
	l := &Lexicon{entries: make(map[string]*regexp.Regexp, len(words))}
	l.Add(words...)
	return l
}

// Add lowercases each word and inserts it. Duplicates are no-ops and no
// validation is performed on word content. It returns the number of words
// that were new.
func (l *Lexicon) Add(words ...string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, w := range words {
		w = strings.ToLower(w)
		if _, ok := l.entries[w]; ok {
			continue
		}
		// QuoteMeta output always compiles.
		l.entries[w] = regexp.MustCompile(wholeWordPattern(w))
		added++
	}
	return added
}

// Contains reports whether the lowercased word is in the lexicon.
func (l *Lexicon) Contains(word string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[strings.ToLower(word)]
	return ok
}

// Len returns the number of entries.
func (l *Lexicon) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Words returns the entries in sorted order.
func (l *Lexicon) Words() []string {
	snap := l.snapshot()
	words := make([]string, len(snap))
	for i, e := range snap {
		words[i] = e.word
	}
	return words
}

// snapshot copies the current entries, sorted by word so that match
// details are deterministic.
func (l *Lexicon) snapshot() []lexiconEntry {
	l.mu.RLock()
	snap := make([]lexiconEntry, 0, len(l.entries))
	for w, re := range l.entries {
		snap = append(snap, lexiconEntry{word: w, re: re})
	}
	l.mu.RUnlock()

	sort.Slice(snap, func(i, j int) bool { return snap[i].word < snap[j].word })
	return snap
}
