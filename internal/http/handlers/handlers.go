// Handler wiring.
//
// This file declares the service contracts consumed by the HTTP layer, the
// Handlers aggregate, and helpers shared by the deck, narration, question
// and presentation endpoints.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/http/middleware"
	"github.com/tbourn/go-narration-backend/internal/jobs"
	"github.com/tbourn/go-narration-backend/internal/presentation"
	"github.com/tbourn/go-narration-backend/internal/repo"
	"github.com/tbourn/go-narration-backend/internal/services"
	"github.com/tbourn/go-narration-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// DeckService defines deck lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DeckService interface {
	// Create stores a deck with its ordered slides.
	Create(ctx context.Context, in services.CreateDeckInput) (*domain.Deck, error)
	// Get returns a deck with its slides in playback order.
	Get(ctx context.Context, id string) (*domain.Deck, error)
	// ListPage returns a page of decks and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Deck, int64, error)
	// Delete removes one deck and everything it owns.
	Delete(ctx context.Context, id string) error
	// BulkDelete removes several decks and reports how many existed.
	BulkDelete(ctx context.Context, ids []string) (int64, error)
}

// NarrationService defines versioned narration storage operations.
type NarrationService interface {
	// GetActive lists the active narration of every slide in a deck.
	GetActive(ctx context.Context, deckID, lang string, includeSlide bool) ([]domain.Narration, error)
	// UpsertBatch saves narration texts and reports a result per item.
	UpsertBatch(ctx context.Context, items []services.NarrationItem, overwrite bool, deckID string) ([]services.UpsertResult, error)
	// History lists every version for one slide.
	History(ctx context.Context, slideID int, lang string) ([]domain.Narration, error)
	// Activate makes a stored version the active one.
	Activate(ctx context.Context, id int) (*domain.Narration, error)
}

// QuestionService defines the audience question log.
type QuestionService interface {
	Record(ctx context.Context, deckID string, slideID *int, text string) (*domain.Question, error)
	ListByDeck(ctx context.Context, deckID string) ([]domain.Question, error)
	Delete(ctx context.Context, id string) error
}

// Generator runs the narration generation pipeline in-process.
type Generator interface {
	GenerateDeck(ctx context.Context, deckID, base string, targets []string) (*services.GenerationReport, error)
}

// GenerationQueue schedules a generation run in the background worker.
type GenerationQueue interface {
	EnqueueGenerate(ctx context.Context, p jobs.GeneratePayload) (string, error)
}

// Presentations owns the live playback sessions (presentation.Manager).
type Presentations interface {
	Create(ctx context.Context, deckID, language string) (*presentation.Controller, error)
	Get(id string) (*presentation.Controller, error)
	Remove(id string) error
	ReloadDeck(ctx context.Context, deckID string)
}

//
// Handler wiring
//

// Replays remembers POST results per (client, scope, key). Implemented by
// repo.IdempotencyStore.
type Replays interface {
	Find(ctx context.Context, clientID, scope, key string) (*domain.Idempotency, error)
	Remember(ctx context.Context, clientID, scope, key string, status int, result string) error
}

// Deps are the collaborators of Handlers. Queue, Presentations, Replays and
// DB may be nil: without Queue generation always runs in-process, without
// Replays retries repeat the write, without DB there are no ETags.
type Deps struct {
	Decks         DeckService
	Narrations    NarrationService
	Questions     QuestionService
	Generator     Generator
	Queue         GenerationQueue
	Presentations Presentations

	Replays Replays
	DB      *gorm.DB
	// Languages are the generation targets used when a request names none.
	Languages []string
}

// Handlers groups HTTP endpoints for decks, narrations, questions and
// presentation sessions. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	deckSvc  DeckService
	narrSvc  NarrationService
	qSvc     QuestionService
	gen      Generator
	queue    GenerationQueue
	sessions Presentations

	replays   Replays
	db        *gorm.DB
	languages []string
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		deckSvc:   d.Decks,
		narrSvc:   d.Narrations,
		qSvc:      d.Questions,
		gen:       d.Generator,
		queue:     d.Queue,
		sessions:  d.Presentations,
		replays:   d.Replays,
		db:        d.DB,
		languages: d.Languages,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination reads page and page_size (default 20, at most 100).
func clampPagination(c *gin.Context) (page, pageSize int) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), 20, 100)
	return p.Number, p.Size
}

// replaySlot identifies where a POST result is remembered.
type replaySlot struct {
	client, scope, key string
}

// replaySlotOf returns the slot for c, or false when the request carries no
// Idempotency-Key or replays are disabled.
func (h *Handlers) replaySlotOf(c *gin.Context) (replaySlot, bool) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		key = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}
	if key == "" || h.replays == nil {
		return replaySlot{}, false
	}
	return replaySlot{middleware.ClientID(c), middleware.IdempotencyScope(c), key}, true
}

// previous returns the remembered result for slot, if any. Lookup failures
// are logged and treated as a miss.
func (h *Handlers) previous(c *gin.Context, slot replaySlot) (*domain.Idempotency, bool) {
	rec, err := h.replays.Find(c.Request.Context(), slot.client, slot.scope, slot.key)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}
		return nil, false
	}
	return rec, true
}

// remember stores result for slot. A concurrent request holding the same
// key wins; any failure only costs the replay.
func (h *Handlers) remember(c *gin.Context, slot replaySlot, status int, result string) {
	err := h.replays.Remember(c.Request.Context(), slot.client, slot.scope, slot.key, status, result)
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency store failed")
	}
}

// markReplayed flags a response served from a remembered result.
func markReplayed(c *gin.Context) {
	c.Header("Idempotency-Replayed", "true")
}

// intParam parses a positive integer path parameter.
func intParam(c *gin.Context, name string) (int, bool) {
	return utils.PositiveInt(c.Param(name))
}

// checkETag sets the weak ETag of fp and reports whether the client copy is
// current, in which case 304 has been written.
func checkETag(c *gin.Context, prefix string, fp repo.Fingerprint) bool {
	etag := fp.ETag(prefix)
	c.Header("ETag", etag)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// etagMatches applies the weak comparison of If-None-Match: a list of tags
// or "*", with the W/ prefix ignored on either side.
func etagMatches(header, etag string) bool {
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || (tag != "" && strings.TrimPrefix(tag, "W/") == want) {
			return true
		}
	}
	return false
}

// serviceFail maps service-layer errors onto the error envelope. fallback is
// the code used for unexpected failures.
func serviceFail(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, ve.Error())
	case errors.Is(err, services.ErrDeckNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "deck not found")
	case errors.Is(err, services.ErrSlideNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "slide not found")
	case errors.Is(err, services.ErrNarrationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "narration not found")
	case errors.Is(err, services.ErrQuestionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "question not found")
	case errors.Is(err, services.ErrSlideDeckMismatch),
		errors.Is(err, services.ErrNoItems),
		errors.Is(err, services.ErrEmptyText),
		errors.Is(err, services.ErrNoSlides):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, fallback, "request timed out")
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}
