package search

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// NoAnswer is returned when nothing on the slide is close enough to the
// question.
const NoAnswer = "I can't answer that from this slide."

const (
	candidateK       = 10
	defaultThreshold = 0.10
	// minCoverage applies when the question names nothing specific.
	minCoverage = 0.2
	// runnerUpRatio is how close a second fact must score to be appended.
	runnerUpRatio = 0.9
	namedBoost    = 0.05
)

// Answerer answers audience questions extractively from the text of the
// current slide. It needs no network access and is used when no model-backed
// answerer is configured.
type Answerer struct {
	// Threshold is the minimum index score of the chosen fact (default 0.10).
	Threshold float64
	// Options are applied to every per-slide index.
	Options []Option
}

// Answer returns the fact (or two closely tied facts) of slide that best
// answers question, or NoAnswer. Matching is language neutral.
func (a *Answerer) Answer(ctx context.Context, question string, slide domain.Slide, language string) (string, error) {
	_, span := otel.Tracer("search/Answerer").Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.Int("slide.id", slide.ID),
			attribute.String("language", language),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	reply, score := a.retrieve(NewSlideIndex([]domain.Slide{slide}, a.Options...), question)
	span.SetAttributes(attribute.Bool("answered", score != nil))
	return reply, nil
}

type candidate struct {
	text  string
	index float64 // Jaccard score from the index
	score float64 // blend of index and coverage
	named map[string]struct{}
}

// retrieve picks the answer from idx. score is nil when the reply is NoAnswer.
func (a *Answerer) retrieve(idx Index, prompt string) (reply string, score *float64) {
	q := parseQuestion(prompt)
	results := idx.TopK(prompt, candidateK)
	if len(results) == 0 {
		return NoAnswer, nil
	}

	best := 0.0
	for _, r := range results {
		best = max(best, r.Score)
	}
	need := min(len(q.named), 2)

	cands := make([]candidate, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Snippet)
		if text == "" {
			continue
		}
		cov := q.coverage(text)
		hits := q.namedIn(text)
		switch {
		case need == 0 && cov < minCoverage:
			continue
		case need > 0 && len(hits) < need:
			continue
		}
		cands = append(cands, candidate{text: text, index: r.Score, score: 0.5*r.Score/best + 0.5*cov, named: hits})
	}
	if len(cands) == 0 {
		return NoAnswer, nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	top := cands[0]
	threshold := a.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if top.index < threshold {
		return NoAnswer, nil
	}

	out := top.text
	if len(cands) > 1 && cands[1].score >= top.score*runnerUpRatio && covers(cands[1].named, top.named) {
		out += "\n" + cands[1].text
	}
	v := top.index
	return tidyLines(out), &v
}

// covers reports whether every key of want is in got.
func covers(got, want map[string]struct{}) bool {
	for k := range want {
		if _, ok := got[k]; !ok {
			return false
		}
	}
	return true
}

// question is an audience question reduced to what matching needs.
type question struct {
	// keywords are folded words minus stopwords, in order of appearance.
	keywords []string
	// named are terms a fact must mention verbatim: quoted phrases, numbers
	// and capitalised words past the first.
	named []string
}

var (
	questionWordRE = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}.,%]*[\p{L}\p{N}%]|[\p{L}\p{N}]`)
	quotedRE       = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|‘([^’]+)’`)
)

// questionStop are words that carry no topic in a question.
var questionStop = map[string]struct{}{
	"a": {}, "about": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {}, "explain": {},
	"for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "many": {}, "me": {},
	"much": {}, "of": {}, "on": {}, "or": {}, "slide": {}, "tell": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "with": {}, "you": {},
}

func parseQuestion(s string) question {
	var q question
	seen := make(map[string]struct{})
	addNamed := func(t string) {
		if _, dup := seen[t]; !dup && t != "" {
			seen[t] = struct{}{}
			q.named = append(q.named, t)
		}
	}

	for _, m := range quotedRE.FindAllStringSubmatch(s, -1) {
		for _, g := range m[1:] {
			addNamed(fold(strings.TrimSpace(g)))
		}
	}
	kw := make(map[string]struct{})
	for i, w := range questionWordRE.FindAllString(s, -1) {
		f := fold(w)
		if _, stop := questionStop[f]; stop {
			continue
		}
		if _, dup := kw[f]; !dup {
			kw[f] = struct{}{}
			q.keywords = append(q.keywords, f)
		}
		if isNumeric(w) || (i > 0 && startsUpper(w) && utf8.RuneCountInString(w) > 1) {
			addNamed(f)
		}
	}
	return q
}

// coverage is the share of keywords found in text plus a small bonus per
// named term, capped at 1.
func (q question) coverage(text string) float64 {
	if len(q.keywords) == 0 {
		return 0
	}
	t := fold(text)
	found := 0
	for _, k := range q.keywords {
		if strings.Contains(t, k) {
			found++
		}
	}
	c := float64(found)/float64(len(q.keywords)) + namedBoost*float64(len(q.namedIn(text)))
	return min(c, 1)
}

// namedIn returns the named terms of q that text mentions.
func (q question) namedIn(text string) map[string]struct{} {
	t := fold(text)
	hits := make(map[string]struct{}, len(q.named))
	for _, n := range q.named {
		if strings.Contains(t, n) {
			hits[n] = struct{}{}
		}
	}
	return hits
}

func isNumeric(s string) bool {
	digit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case r == '.' || r == ',' || r == '%':
		default:
			return false
		}
	}
	return digit
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// tidyLines collapses runs of whitespace within lines and drops blank ones.
func tidyLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, ln := range lines {
		if f := strings.Fields(ln); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return strings.Join(out, "\n")
}
