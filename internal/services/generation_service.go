// Package services – GenerationService
//
// GenerationService turns an ordered slide list into narration scripts:
//
//  1. Slides are split into fixed-size batches, keeping order.
//  2. Each batch is summarized ("Slide N: Topic - ... Content - ...") and
//     sent to the Generator in one call.
//  3. Responses are healed to the batch length: short ones are padded with
//     PlaceholderIncomplete, long ones truncated, blank entries replaced.
//  4. A failed call is retried once; a second failure fills the batch with
//     PlaceholderFailed.
//  5. Batch outputs are concatenated in slide order.
//  6. Each extra language re-batches the base script through the Translator
//     with the same discipline, falling back to the untranslated text.
//
// Batches of one language run strictly in sequence. Languages fan out
// concurrently with a bounded errgroup.
package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// Placeholder texts written when a collaborator under-delivers or fails.
const (
	PlaceholderIncomplete = "incomplete, needs regeneration"
	PlaceholderFailed     = "narration unavailable, generation failed"
)

// DefaultBatchSize is the number of slides or texts sent per collaborator call.
const DefaultBatchSize = 10

// Generator produces one narration per slide summary, in order.
type Generator interface {
	GenerateNarrations(ctx context.Context, summaries []string, language string) ([]string, error)
	// Model names the underlying model; it is stored on generated rows.
	Model() string
}

// Translator translates texts into targetLanguage, in order.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

// NarrationWriter persists narration batches (implemented by NarrationService).
type NarrationWriter interface {
	UpsertBatch(ctx context.Context, items []NarrationItem, overwrite bool, deckID string) ([]UpsertResult, error)
}

// SlideSource loads the ordered slides of a deck (implemented by DeckService).
type SlideSource interface {
	Slides(ctx context.Context, deckID string) ([]domain.Slide, error)
}

// GenerationService runs the narration generation pipeline.
type GenerationService struct {
	Generator  Generator
	Translator Translator
	Narrations NarrationWriter
	Decks      SlideSource
	Log        zerolog.Logger

	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Parallelism bounds concurrent target languages (default 4).
	Parallelism int
}

// GenerationReport summarizes one GenerateDeck run.
type GenerationReport struct {
	DeckID          string                    `json:"deckId"`
	BaseLanguage    string                    `json:"baseLanguage"`
	Languages       []string                  `json:"languages"`
	Slides          int                       `json:"slides"`
	Calls           int                       `json:"calls"`
	Retries         int                       `json:"retries"`
	DegradedBatches int                       `json:"degradedBatches"`
	Results         map[string][]UpsertResult `json:"results"`
}

// runStats counts collaborator activity for one script.
type runStats struct {
	calls, retries, degraded int
}

func (r *runStats) add(o runStats) {
	r.calls += o.calls
	r.retries += o.retries
	r.degraded += o.degraded
}

// Generate returns one narration per slide for language. The output always
// has len(slides) entries; an empty input makes no collaborator calls.
func (s *GenerationService) Generate(ctx context.Context, slides []domain.Slide, language string) []string {
	out, _ := s.generate(ctx, slides, language)
	return out
}

// Translate returns texts translated into language, one entry per input.
// Batches that fail twice keep their source text.
func (s *GenerationService) Translate(ctx context.Context, texts []string, language string) []string {
	out, _ := s.translate(ctx, texts, language)
	return out
}

func (s *GenerationService) generate(ctx context.Context, slides []domain.Slide, language string) ([]string, runStats) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.Int("slides", len(slides)),
			attribute.String("language", language),
		),
	)
	defer span.End()

	summaries := make([]string, len(slides))
	for i, sl := range slides {
		summaries[i] = fmt.Sprintf("Slide %d: Topic - %s. Content - %s", i+1, strings.TrimSpace(sl.Topic), strings.TrimSpace(sl.Content))
	}
	return s.runBatches(ctx, kindGenerate, summaries,
		func(ctx context.Context, batch []string) ([]string, error) {
			if s.Generator == nil {
				return nil, fmt.Errorf("no generator configured")
			}
			return s.Generator.GenerateNarrations(ctx, batch, language)
		},
		func(batch []string) []string { return repeat(PlaceholderFailed, len(batch)) },
	)
}

func (s *GenerationService) translate(ctx context.Context, texts []string, language string) ([]string, runStats) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Translate",
		trace.WithAttributes(
			attribute.Int("texts", len(texts)),
			attribute.String("language", language),
		),
	)
	defer span.End()

	return s.runBatches(ctx, kindTranslate, texts,
		func(ctx context.Context, batch []string) ([]string, error) {
			if s.Translator == nil {
				return nil, fmt.Errorf("no translator configured")
			}
			return s.Translator.Translate(ctx, batch, language)
		},
		func(batch []string) []string { return append([]string(nil), batch...) },
	)
}

// runBatches applies call to consecutive batches of inputs, in order, with
// one retry per batch, healing each response to the batch length.
func (s *GenerationService) runBatches(
	ctx context.Context,
	kind string,
	inputs []string,
	call func(context.Context, []string) ([]string, error),
	fallback func([]string) []string,
) ([]string, runStats) {
	var st runStats
	out := make([]string, 0, len(inputs))
	size := s.batchSize()

	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		batch := inputs[start:end]

		res, err := call(ctx, batch)
		st.calls++
		observeCall(kind, err)
		if err != nil {
			s.Log.Warn().Err(err).Str("kind", kind).Int("batch_start", start).Msg("collaborator call failed, retrying")
			st.retries++
			res, err = call(ctx, batch)
			st.calls++
			observeCall(kind, err)
		}
		if err != nil {
			cerr := &CollaboratorError{Collaborator: kind, Op: "batch", Err: err}
			s.Log.Error().Err(cerr).Int("batch_start", start).Int("batch_len", len(batch)).Msg("batch degraded to fallback")
			st.degraded++
			out = append(out, fallback(batch)...)
			continue
		}
		out = append(out, heal(res, len(batch))...)
	}
	return out, st
}

// heal forces res to exactly n entries, each storable as a narration.
func heal(res []string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(res) && strings.TrimSpace(res[i]) != "" {
			out[i] = clipRunes(res[i], domain.MaxNarrationRunes)
		} else {
			out[i] = PlaceholderIncomplete
		}
	}
	return out
}

func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func (s *GenerationService) batchSize() int {
	if s.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

// GenerateDeck generates the base script for deckID, translates it into
// every target language, and persists all scripts with overwrite=true.
func (s *GenerationService) GenerateDeck(ctx context.Context, deckID, baseLanguage string, targets []string) (*GenerationReport, error) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "GenerateDeck",
		trace.WithAttributes(attribute.String("deck.id", deckID)),
	)
	defer span.End()

	slides, err := s.Decks.Slides(ctx, deckID)
	if err != nil {
		return nil, err
	}

	base := NormalizeLanguage(baseLanguage)
	langs := uniqueLanguages(base, targets)
	rep := &GenerationReport{
		DeckID:       deckID,
		BaseLanguage: base,
		Languages:    append([]string{base}, langs...),
		Slides:       len(slides),
		Results:      map[string][]UpsertResult{},
	}
	if len(slides) == 0 {
		return rep, nil
	}

	script, st := s.generate(ctx, slides, base)
	total := st

	scripts := make([][]string, len(langs))
	stats := make([]runStats, len(langs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism())
	for i, lang := range langs {
		i, lang := i, lang
		g.Go(func() error {
			scripts[i], stats[i] = s.translate(gctx, script, lang)
			return nil
		})
	}
	_ = g.Wait()
	for _, st := range stats {
		total.add(st)
	}
	rep.Calls, rep.Retries, rep.DegradedBatches = total.calls, total.retries, total.degraded

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	model := ""
	if s.Generator != nil {
		model = s.Generator.Model()
	}
	persist := func(lang string, texts []string) error {
		items := make([]NarrationItem, len(slides))
		for i, sl := range slides {
			items[i] = NarrationItem{SlideID: sl.ID, Text: texts[i], Language: lang, Model: model}
		}
		res, err := s.Narrations.UpsertBatch(ctx, items, true, deckID)
		if err != nil {
			return err
		}
		rep.Results[lang] = res
		return nil
	}
	if err := persist(base, script); err != nil {
		return rep, err
	}
	for i, lang := range langs {
		if err := persist(lang, scripts[i]); err != nil {
			return rep, err
		}
	}

	s.Log.Info().
		Str("deck_id", deckID).
		Int("slides", len(slides)).
		Strs("languages", rep.Languages).
		Int("calls", rep.Calls).
		Int("degraded_batches", rep.DegradedBatches).
		Msg("deck narrations generated")
	return rep, nil
}

func (s *GenerationService) parallelism() int {
	if s.Parallelism <= 0 {
		return 4
	}
	return s.Parallelism
}

// uniqueLanguages normalizes targets, dropping blanks, duplicates and base.
func uniqueLanguages(base string, targets []string) []string {
	seen := map[string]struct{}{base: {}}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if strings.TrimSpace(t) == "" {
			continue
		}
		l := NormalizeLanguage(t)
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
