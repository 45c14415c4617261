// Deck HTTP handlers.
//
// This file exposes REST endpoints for slide decks:
//   - POST   /decks                             (create with slides, idempotent)
//   - GET    /decks                             (list, paginated, ETag support)
//   - GET    /decks/{id}                        (deck with ordered slides)
//   - DELETE /decks/{id}                        (cascade delete)
//   - POST   /decks/bulk-delete                 (delete several decks)
//   - POST   /decks/{id}/narrations/generate    (run the generation pipeline)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/jobs"
	"github.com/tbourn/go-narration-backend/internal/repo"
	"github.com/tbourn/go-narration-backend/internal/services"
	"github.com/tbourn/go-narration-backend/internal/utils"
)

//
// DTOs
//

// ListDecksResponse wraps a page of decks and pagination information.
type ListDecksResponse struct {
	Decks      []domain.Deck `json:"decks"`
	Pagination Pagination    `json:"pagination"`
}

// BulkDeleteRequest lists the decks to delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// BulkDeleteResponse reports how many decks were removed.
type BulkDeleteResponse struct {
	Deleted int64 `json:"deleted" example:"2"`
}

// GenerateRequest selects the languages of a generation run. Empty
// Languages fall back to the configured targets.
type GenerateRequest struct {
	BaseLanguage string   `json:"baseLanguage" example:"en"`
	Languages    []string `json:"languages" example:"fr,de"`
	Async        bool     `json:"async"`
}

// GenerateQueuedResponse is returned when a run is handed to the worker.
type GenerateQueuedResponse struct {
	TaskID string `json:"taskId" example:"narration:generate:141add05-4415-4938-b5a1-17e0d3171aff"`
	DeckID string `json:"deckId"`
}

//
// Handlers
//

// CreateDeck godoc
// @ID          createDeck
// @Summary     Create a deck
// @Description Stores a deck with its slides in order and returns it with its presentation URL.
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        Decks
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    services.CreateDeckInput  true  "Deck payload"
//
// @Success     201  {object}  domain.Deck
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /decks [post]
func (h *Handlers) CreateDeck(c *gin.Context) {
	ctx := c.Request.Context()

	var req services.CreateDeckInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	slot, replayable := h.replaySlotOf(c)
	if replayable {
		if rec, found := h.previous(c, slot); found {
			if prev, err := h.deckSvc.Get(ctx, rec.Result); err == nil {
				markReplayed(c)
				created(c, prev.ID, prev)
				return
			}
		}
	}

	d, err := h.deckSvc.Create(ctx, req)
	if err != nil {
		serviceFail(c, err, ErrCodeCreateFailed)
		return
	}

	if replayable {
		h.remember(c, slot, http.StatusCreated, d.ID)
	}
	created(c, d.ID, d)
}

// ListDecks godoc
// @ID          listDecks
// @Summary     List decks (paginated)
// @Description Returns a page of decks, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Decks
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDecksResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /decks [get]
func (h *Handlers) ListDecks(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if h.db != nil {
		if fp, err := repo.DecksFingerprint(ctx, h.db); err == nil {
			if checkETag(c, "decks:"+strconv.Itoa(page)+":"+strconv.Itoa(pageSize), fp) {
				return
			}
		}
	}

	items, total, err := h.deckSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		serviceFail(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Deck{}
	}
	ok(c, http.StatusOK, ListDecksResponse{Decks: items, Pagination: newPagination(page, pageSize, total)})
}

// GetDeck godoc
// @ID          getDeck
// @Summary     Get a deck
// @Description Returns a deck with its slides in playback order.
// @Tags        Decks
// @Produce     json
//
// @Param       id  path  string  true  "Deck ID"  format(uuid)
//
// @Success     200  {object} domain.Deck
// @Failure     404  {object} handlers.ErrorResponse "Deck not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /decks/{id} [get]
func (h *Handlers) GetDeck(c *gin.Context) {
	d, err := h.deckSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceFail(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDeck godoc
// @ID          deleteDeck
// @Summary     Delete a deck
// @Description Removes a deck with its slides, narrations and questions.
// @Tags        Decks
//
// @Param       id  path  string  true  "Deck ID"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Deck not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /decks/{id} [delete]
func (h *Handlers) DeleteDeck(c *gin.Context) {
	if err := h.deckSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		serviceFail(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// BulkDeleteDecks godoc
// @ID          bulkDeleteDecks
// @Summary     Delete several decks
// @Description Removes every listed deck; unknown ids are ignored.
// @Tags        Decks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.BulkDeleteRequest  true  "Deck ids"
//
// @Success     200  {object} handlers.BulkDeleteResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /decks/bulk-delete [post]
func (h *Handlers) BulkDeleteDecks(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids must be a non-empty array")
		return
	}
	n, err := h.deckSvc.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		serviceFail(c, err, ErrCodeDeleteFailed)
		return
	}
	ok(c, http.StatusOK, BulkDeleteResponse{Deleted: n})
}

// GenerateNarrations godoc
// @ID          generateNarrations
// @Summary     Generate deck narrations
// @Description Generates narrations in the base language and translates them into every target.
// @Description With async (body flag or ?async=true) the run is queued for the worker and 202 is returned.
// @Description Live sessions of the deck reload when the run finishes: at once for synchronous runs, on the worker's announcement for queued ones.
// @Tags        Decks
// @Accept      json
// @Produce     json
//
// @Param       id     path   string  true   "Deck ID"  format(uuid)
// @Param       async  query  bool    false  "Queue the run instead of waiting"
// @Param       body   body   handlers.GenerateRequest  false  "Languages"
//
// @Success     200  {object} services.GenerationReport
// @Success     202  {object} handlers.GenerateQueuedResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Deck not found"
// @Failure     409  {object} handlers.ErrorResponse "Generation already queued"
// @Failure     502  {object} handlers.ErrorResponse "Generator failed"
// @Router      /decks/{id}/narrations/generate [post]
func (h *Handlers) GenerateNarrations(c *gin.Context) {
	ctx := c.Request.Context()
	deckID := c.Param("id")

	var req GenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	if q, ok := utils.BoolDefault(c.Query("async"), req.Async); ok {
		req.Async = q
	}
	base := services.NormalizeLanguage(req.BaseLanguage)
	targets := req.Languages
	if len(targets) == 0 {
		targets = h.languages
	}

	if req.Async && h.queue != nil {
		// Unknown decks are rejected before queueing.
		if _, err := h.deckSvc.Get(ctx, deckID); err != nil {
			serviceFail(c, err, ErrCodeGenerateFailed)
			return
		}
		taskID, err := h.queue.EnqueueGenerate(ctx, jobs.GeneratePayload{
			DeckID:       deckID,
			BaseLanguage: base,
			Languages:    targets,
		})
		if err != nil {
			if errors.Is(err, jobs.ErrAlreadyQueued) {
				fail(c, http.StatusConflict, ErrCodeAlreadyQueued, err.Error())
				return
			}
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
			return
		}
		ok(c, http.StatusAccepted, GenerateQueuedResponse{TaskID: taskID, DeckID: deckID})
		return
	}

	report, err := h.gen.GenerateDeck(ctx, deckID, base, targets)
	if err != nil {
		var ce *services.CollaboratorError
		if errors.As(err, &ce) {
			fail(c, http.StatusBadGateway, ErrCodeGenerateFailed, strings.TrimSpace(err.Error()))
			return
		}
		serviceFail(c, err, ErrCodeGenerateFailed)
		return
	}
	if h.sessions != nil {
		h.sessions.ReloadDeck(ctx, deckID)
	}
	ok(c, http.StatusOK, report)
}
