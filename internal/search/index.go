// Package search answers audience questions from the slides themselves when
// no language model is configured. Slide text is split into facts, indexed,
// and ranked against the question by Jaccard similarity of their token sets
// (|Q ∩ F| / |Q ∪ F|). Tokens are NFKC-normalized and case-folded, so
// "Straße" matches "STRASSE" and ligatures match their plain letters.
// An index is immutable once built and safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// Result is a ranked snippet with its similarity score and source slide.
type Result struct {
	Snippet string
	Score   float64
	SlideID int
}

// Index ranks indexed facts against a query.
type Index interface {
	TopK(query string, k int) []Result
}

// Fact is one indexable unit of text attributed to a slide.
type Fact struct {
	SlideID int
	Text    string
}

const (
	defaultMinFactRunes = 8
	defaultK            = 3
)

// Option configures an index.
type Option func(*settings)

type settings struct {
	minRunes int
	stop     map[string]struct{}
	limit    int // 0 = unlimited
}

// WithMinFactRunes drops facts shorter than n runes. Negative n is ignored.
func WithMinFactRunes(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.minRunes = n
		}
	}
}

// WithStopwords ignores the given words in facts and queries.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			s.stop = m
		}
	}
}

// WithMaxDocs caps the number of indexed facts; n <= 0 means no cap.
func WithMaxDocs(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.limit = n
		}
	}
}

type entry struct {
	slideID int
	text    string
	runes   int
	tokens  map[string]struct{}
}

type index struct {
	stop    map[string]struct{}
	entries []entry
}

// NewSlideIndex indexes the facts of every slide (see SlideFacts).
func NewSlideIndex(slides []domain.Slide, opts ...Option) Index {
	var facts []Fact
	for _, sl := range slides {
		for _, f := range SlideFacts(sl) {
			facts = append(facts, Fact{SlideID: sl.ID, Text: f})
		}
	}
	return NewIndex(facts, opts...)
}

// NewIndex builds an Index from pre-split facts. Blank facts, facts below the
// minimum length and facts made only of stopwords are skipped.
func NewIndex(facts []Fact, opts ...Option) Index {
	s := settings{minRunes: defaultMinFactRunes}
	for _, o := range opts {
		o(&s)
	}

	idx := &index{stop: s.stop, entries: make([]entry, 0, len(facts))}
	for _, f := range facts {
		if s.limit > 0 && len(idx.entries) == s.limit {
			break
		}
		text := strings.Join(strings.Fields(f.Text), " ")
		n := utf8.RuneCountInString(text)
		if n == 0 || n < s.minRunes {
			continue
		}
		toks := tokenize(text, s.stop)
		if len(toks) == 0 {
			continue
		}
		idx.entries = append(idx.entries, entry{slideID: f.SlideID, text: text, runes: n, tokens: toks})
	}
	return idx
}

// TopK returns up to k facts sharing at least one token with query, best
// first. Equal scores prefer the shorter fact, then the lexically smaller.
// k <= 0 means 3.
func (i *index) TopK(query string, k int) []Result {
	q := tokenize(query, i.stop)
	if len(q) == 0 || len(i.entries) == 0 {
		return nil
	}
	if k <= 0 {
		k = defaultK
	}

	type hit struct {
		e     *entry
		score float64
	}
	var hits []hit
	for n := range i.entries {
		e := &i.entries[n]
		shared := overlap(q, e.tokens)
		union := len(q) + len(e.tokens) - shared
		if shared == 0 || union <= 0 {
			continue
		}
		hits = append(hits, hit{e: e, score: float64(shared) / float64(union)})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(a, b int) bool {
		ha, hb := hits[a], hits[b]
		switch {
		case ha.score != hb.score:
			return ha.score > hb.score
		case ha.e.runes != hb.e.runes:
			return ha.e.runes < hb.e.runes
		default:
			return ha.e.text < hb.e.text
		}
	})

	out := make([]Result, min(k, len(hits)))
	for n := range out {
		out[n] = Result{Snippet: hits[n].e.text, Score: hits[n].score, SlideID: hits[n].e.slideID}
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

// fold normalizes s for matching. A Caser is stateful, so one is made per
// call.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// tokenize returns the set of folded words of s minus stop, or nil.
func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	var out map[string]struct{}
	for _, w := range wordRE.FindAllString(fold(s), -1) {
		if _, skip := stop[w]; skip {
			continue
		}
		if out == nil {
			out = make(map[string]struct{})
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
