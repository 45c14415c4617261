// Package services – NarrationService
//
// This file implements NarrationService, the versioned store of per-language
// narration text. It owns the single-active-row protocol: for any
// (slide, language) pair at most one row is active. Writers for the same pair
// are serialized by an in-process keyed mutex, each write runs in its own
// transaction (deactivate, then insert), and the partial unique index
// ux_narrations_active rejects conflicting writers from other processes.
//
// Batches are best effort: items are validated and persisted independently
// and each one gets its own result. The only whole-batch failure is a slide
// that is missing from, or foreign to, the requested deck.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/repo"
)

// Per-item result states.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// NarrationCache caches active narrations per (deck, language). An empty
// language stands for "all languages". Entries are scoped to a per-deck
// generation that InvalidateDeck advances, so rows loaded before an
// invalidation and stored after it are never served. Implementations must
// be safe for concurrent use; errors are treated as cache misses.
type NarrationCache interface {
	Generation(ctx context.Context, deckID string) (int64, error)
	GetActive(ctx context.Context, deckID, language string, gen int64) ([]domain.Narration, bool, error)
	SetActive(ctx context.Context, deckID, language string, gen int64, rows []domain.Narration) error
	InvalidateDeck(ctx context.Context, deckID string) error
}

// NarrationItem is one narration write request.
type NarrationItem struct {
	SlideID  int    `json:"slideId"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`

	// Model records who produced the text. Empty means a manual save.
	Model string `json:"-"`
}

var languageRE = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})?$`)

// Validate checks an item after NormalizeLanguage has been applied.
func (it NarrationItem) Validate() error {
	return validation.ValidateStruct(&it,
		validation.Field(&it.SlideID,
			validation.Required.Error("must be a positive integer"),
			validation.Min(1).Error("must be a positive integer"),
		),
		validation.Field(&it.Text,
			validation.By(notBlank),
			validation.RuneLength(0, domain.MaxNarrationRunes).Error("must be at most 4000 characters"),
		),
		validation.Field(&it.Language,
			validation.Required,
			validation.Match(languageRE).Error("must be a language code such as en or pt-BR"),
		),
	)
}

func notBlank(v interface{}) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

// NormalizeLanguage applies the "en" default and canonical BCP 47 casing.
func NormalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultLanguage
	}
	if !languageRE.MatchString(raw) {
		return raw
	}
	if tag, err := language.Parse(raw); err == nil {
		return tag.String()
	}
	return strings.ToLower(raw)
}

// UpsertResult reports the outcome of one NarrationItem.
type UpsertResult struct {
	SlideID     int    `json:"slideId"`
	Language    string `json:"language"`
	Status      string `json:"status"`
	NarrationID int    `json:"narrationId,omitempty"`
	Version     int    `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`

	Err error `json:"-"`
}

// NarrationService manages versioned narration rows.
type NarrationService struct {
	DB    *gorm.DB
	Cache NarrationCache // optional
	Log   zerolog.Logger

	locks keyedMutex
}

// NewNarrationService constructs a NarrationService. cache may be nil.
func NewNarrationService(db *gorm.DB, cache NarrationCache, lg zerolog.Logger) *NarrationService {
	return &NarrationService{DB: db, Cache: cache, Log: lg}
}

// GetActive returns the active narrations of every slide in deckID, ordered by
// slide id ascending then version descending. An empty language returns all
// languages. Slides without an active row are absent; unknown decks yield an
// empty list.
func (s *NarrationService) GetActive(ctx context.Context, deckID, lang string, includeSlide bool) ([]domain.Narration, error) {
	tr := otel.Tracer("services/NarrationService")
	ctx, span := tr.Start(ctx, "GetActive",
		trace.WithAttributes(
			attribute.String("deck.id", deckID),
			attribute.String("language", lang),
		),
	)
	defer span.End()

	if lang != "" {
		lang = NormalizeLanguage(lang)
	}

	useCache := s.Cache != nil && !includeSlide
	var gen int64
	if useCache {
		// The generation is read before the database so a concurrent write
		// invalidates whatever this call stores.
		g, err := s.Cache.Generation(ctx, deckID)
		if err != nil {
			s.Log.Warn().Err(err).Str("deck_id", deckID).Msg("narration cache read failed")
			useCache = false
		}
		gen = g
	}
	if useCache {
		if rows, ok, err := s.Cache.GetActive(ctx, deckID, lang, gen); err == nil && ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return rows, nil
		} else if err != nil {
			s.Log.Warn().Err(err).Str("deck_id", deckID).Msg("narration cache read failed")
		}
	}

	rows, err := repo.ListActiveNarrations(ctx, s.DB, deckID, lang, includeSlide)
	if err != nil {
		return nil, infra("list active narrations", err)
	}
	if useCache {
		if err := s.Cache.SetActive(ctx, deckID, lang, gen, rows); err != nil {
			s.Log.Warn().Err(err).Str("deck_id", deckID).Msg("narration cache write failed")
		}
	}
	return rows, nil
}

// Script returns the active narration text of each slide for one language,
// aligned with slides. Missing narrations yield "".
func (s *NarrationService) Script(ctx context.Context, deckID, lang string, slides []domain.Slide) ([]string, int, error) {
	rows, err := s.GetActive(ctx, deckID, lang, false)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[int]string, len(rows))
	for _, r := range rows {
		if _, seen := byID[r.SlideID]; !seen {
			byID[r.SlideID] = r.Text
		}
	}
	out := make([]string, len(slides))
	found := 0
	for i, sl := range slides {
		if t, ok := byID[sl.ID]; ok {
			out[i] = t
			found++
		}
	}
	return out, found, nil
}

// UpsertBatch writes items with the given overwrite policy. See the package
// comment for the batch contract. When deckID is non-empty every referenced
// slide must belong to it, otherwise ErrSlideDeckMismatch is returned and
// nothing is written.
func (s *NarrationService) UpsertBatch(ctx context.Context, items []NarrationItem, overwrite bool, deckID string) ([]UpsertResult, error) {
	tr := otel.Tracer("services/NarrationService")
	ctx, span := tr.Start(ctx, "UpsertBatch",
		trace.WithAttributes(
			attribute.String("deck.id", deckID),
			attribute.Int("items", len(items)),
			attribute.Bool("overwrite", overwrite),
		),
	)
	defer span.End()

	if len(items) == 0 {
		return nil, ErrNoItems
	}

	results := make([]UpsertResult, len(items))
	valid := make([]bool, len(items))
	ids := make([]int, 0, len(items))
	for i := range items {
		items[i].Language = NormalizeLanguage(items[i].Language)
		results[i] = UpsertResult{SlideID: items[i].SlideID, Language: items[i].Language}
		if err := items[i].Validate(); err != nil {
			results[i].fail(toValidationError(err))
			continue
		}
		valid[i] = true
		ids = append(ids, items[i].SlideID)
	}

	owners, err := repo.SlideDeckIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, infra("load slide owners", err)
	}
	if deckID != "" {
		for i, it := range items {
			if !valid[i] {
				continue
			}
			if owner, ok := owners[it.SlideID]; !ok || owner != deckID {
				span.SetAttributes(attribute.Int("mismatch.slide_id", it.SlideID))
				return nil, ErrSlideDeckMismatch
			}
		}
	}

	touched := make(map[string]struct{})
	for i, it := range items {
		if !valid[i] {
			continue
		}
		owner, ok := owners[it.SlideID]
		if !ok {
			results[i].fail(&ValidationError{Field: "slideId", Message: "slide " + strconv.Itoa(it.SlideID) + " not found"})
			continue
		}
		saved, err := s.upsertOne(ctx, it, overwrite)
		if err != nil {
			s.Log.Error().Err(err).Int("slide_id", it.SlideID).Str("language", it.Language).Msg("save narration failed")
			results[i].fail(err)
			continue
		}
		touched[owner] = struct{}{}
		results[i].Status = ResultOK
		results[i].NarrationID = saved.ID
		results[i].Version = saved.Version
	}

	s.invalidate(ctx, touched)
	return results, nil
}

// upsertOne persists a single validated item under its (slide, language)
// lock, in its own transaction.
func (s *NarrationService) upsertOne(ctx context.Context, it NarrationItem, overwrite bool) (*domain.Narration, error) {
	unlock := s.locks.Lock(lockKey(it.SlideID, it.Language))
	defer unlock()

	model := it.Model
	if model == "" {
		model = domain.NarrationModelManual
	}

	var saved domain.Narration
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := repo.GetActiveNarration(ctx, tx, it.SlideID, it.Language)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		if active != nil && !overwrite {
			saved = *active
			if active.Text == it.Text {
				return nil
			}
			saved.Text = it.Text
			saved.Version = active.Version + 1
			saved.Model = model
			return repo.UpdateNarrationText(ctx, tx, active.ID, saved.Text, saved.Version, saved.Model)
		}

		maxVersion, err := repo.MaxNarrationVersion(ctx, tx, it.SlideID, it.Language)
		if err != nil {
			return err
		}
		if active != nil {
			if _, err := repo.DeactivateNarrations(ctx, tx, it.SlideID, it.Language); err != nil {
				return err
			}
		}
		saved = domain.Narration{
			SlideID:  it.SlideID,
			Language: it.Language,
			Text:     it.Text,
			IsActive: true,
			Version:  maxVersion + 1,
			Status:   domain.NarrationStatusReady,
			Model:    model,
		}
		return repo.InsertNarration(ctx, tx, &saved)
	})
	if err != nil {
		return nil, infra("save narration", err)
	}
	return &saved, nil
}

// History returns every version of (slideID, language), newest first.
func (s *NarrationService) History(ctx context.Context, slideID int, lang string) ([]domain.Narration, error) {
	tr := otel.Tracer("services/NarrationService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.Int("slide.id", slideID),
			attribute.String("language", lang),
		),
	)
	defer span.End()

	if _, err := repo.GetSlide(ctx, s.DB, slideID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSlideNotFound
		}
		return nil, infra("load slide", err)
	}
	rows, err := repo.ListNarrationVersions(ctx, s.DB, slideID, NormalizeLanguage(lang))
	if err != nil {
		return nil, infra("list narration versions", err)
	}
	return rows, nil
}

// Activate makes narration id the active row of its (slide, language),
// deactivating the current one in the same transaction. Versions are kept.
func (s *NarrationService) Activate(ctx context.Context, id int) (*domain.Narration, error) {
	tr := otel.Tracer("services/NarrationService")
	ctx, span := tr.Start(ctx, "Activate",
		trace.WithAttributes(attribute.Int("narration.id", id)),
	)
	defer span.End()

	n, err := repo.GetNarration(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNarrationNotFound
		}
		return nil, infra("load narration", err)
	}

	unlock := s.locks.Lock(lockKey(n.SlideID, n.Language))
	defer unlock()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.DeactivateNarrations(ctx, tx, n.SlideID, n.Language); err != nil {
			return err
		}
		return repo.SetNarrationActive(ctx, tx, n.ID)
	})
	if err != nil {
		return nil, infra("activate narration", err)
	}
	n.IsActive = true

	if sl, err := repo.GetSlide(ctx, s.DB, n.SlideID); err == nil {
		s.invalidate(ctx, map[string]struct{}{sl.DeckID: {}})
	}
	return n, nil
}

func (s *NarrationService) invalidate(ctx context.Context, decks map[string]struct{}) {
	if s.Cache == nil {
		return
	}
	for id := range decks {
		if err := s.Cache.InvalidateDeck(ctx, id); err != nil {
			s.Log.Warn().Err(err).Str("deck_id", id).Msg("narration cache invalidation failed")
		}
	}
}

func (r *UpsertResult) fail(err error) {
	r.Status = ResultError
	r.Err = err
	r.Error = err.Error()
}

func lockKey(slideID int, lang string) string {
	return strconv.Itoa(slideID) + ":" + lang
}

// toValidationError flattens ozzo validation.Errors into a single
// *ValidationError naming the first failing field.
func toValidationError(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &ValidationError{Field: fields[0], Message: verrs[fields[0]].Error()}
}
