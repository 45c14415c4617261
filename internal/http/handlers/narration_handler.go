// Narration HTTP handlers.
//
// This file exposes REST endpoints for versioned slide narrations:
//   - GET  /narrations                  (active narrations of a deck, ETag support)
//   - POST /narrations                  (batch or single save, idempotent)
//   - GET  /slides/{id}/narrations      (version history)
//   - POST /narrations/{id}/activate    (revert to a stored version)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// save exists for (client, route, key), the handler returns the recorded
// per-item results and sets `Idempotency-Replayed: true`.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/repo"
	"github.com/tbourn/go-narration-backend/internal/services"
	"github.com/tbourn/go-narration-backend/internal/utils"
)

//
// DTOs
//

// PostNarrationsRequest accepts two shapes: a batch ({items, deckId?,
// overwrite}) or a single item ({slideId, text, language?, overwrite}).
type PostNarrationsRequest struct {
	// Items switches the request to batch mode when present.
	Items []services.NarrationItem `json:"items"`
	// DeckID, when set, requires every slide to belong to this deck.
	DeckID    string `json:"deckId" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Overwrite bool   `json:"overwrite"`

	SlideID  int    `json:"slideId" example:"12"`
	Text     string `json:"text" example:"Welcome to the quarterly review."`
	Language string `json:"language" example:"en"`
}

// PostNarrationsResponse reports the outcome of every submitted item.
type PostNarrationsResponse struct {
	Message string                  `json:"message" example:"Processed 2 narration item(s)"`
	Results []services.UpsertResult `json:"results"`
}

// ListNarrationsResponse wraps a list of narrations.
type ListNarrationsResponse struct {
	Narrations []domain.Narration `json:"narrations"`
}

// items normalizes both request shapes into a batch. ok is false when the
// single shape lacks its required fields.
func (r PostNarrationsRequest) items() (items []services.NarrationItem, ok bool) {
	if r.Items != nil {
		out := make([]services.NarrationItem, len(r.Items))
		for i, it := range r.Items {
			if strings.TrimSpace(it.Language) == "" {
				it.Language = r.Language
			}
			out[i] = it
		}
		return out, true
	}
	if r.SlideID == 0 || strings.TrimSpace(r.Text) == "" {
		return nil, false
	}
	return []services.NarrationItem{{SlideID: r.SlideID, Text: r.Text, Language: r.Language}}, true
}

//
// Handlers
//

// GetNarrations godoc
// @ID          getNarrations
// @Summary     List active narrations of a deck
// @Description Returns the active narration of every slide, ordered by slide then version (newest first).
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Narrations
// @Produce     json
//
// @Param       deckId         query   string  true   "Deck ID"                     format(uuid)
// @Param       language       query   string  false  "Language filter"             example(en)
// @Param       includeSlide   query   bool    false  "Embed slide data"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListNarrationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /narrations [get]
func (h *Handlers) GetNarrations(c *gin.Context) {
	ctx := c.Request.Context()
	deckID := strings.TrimSpace(c.Query("deckId"))
	if deckID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deckId is required")
		return
	}
	lang := strings.TrimSpace(c.Query("language"))
	if lang != "" {
		lang = services.NormalizeLanguage(lang)
	}
	includeSlide, _ := utils.BoolDefault(c.Query("includeSlide"), false)

	// ETag pre-check (best effort).
	if h.db != nil {
		if fp, err := repo.ActiveNarrationsFingerprint(ctx, h.db, deckID, lang); err == nil {
			prefix := fmt.Sprintf("narrations:%s:%s:%t", deckID, lang, includeSlide)
			if checkETag(c, prefix, fp) {
				return
			}
		}
	}

	rows, err := h.narrSvc.GetActive(ctx, deckID, lang, includeSlide)
	if err != nil {
		serviceFail(c, err, ErrCodeListFailed)
		return
	}
	if rows == nil {
		rows = []domain.Narration{}
	}
	ok(c, http.StatusOK, ListNarrationsResponse{Narrations: rows})
}

// PostNarrations godoc
// @ID          postNarrations
// @Summary     Save narrations
// @Description Saves one or many narration texts. Each save creates a new version; with overwrite the
// @Description active version is replaced, otherwise an existing active narration is left in place.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Narrations
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.PostNarrationsRequest  true  "Batch or single narration payload"
//
// @Success     201  {object}  handlers.PostNarrationsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or slide/deck mismatch"
// @Failure     413  {object}  handlers.ErrorResponse  "Narration text too long"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /narrations [post]
func (h *Handlers) PostNarrations(c *gin.Context) {
	ctx := c.Request.Context()

	var req PostNarrationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	items, valid := req.items()
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slideId and text are required")
		return
	}
	if len(items) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrNoItems.Error())
		return
	}
	// A lone oversized item is a 413; in a batch it fails on its own.
	if req.Items == nil && utf8.RuneCountInString(req.Text) > domain.MaxNarrationRunes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("text too long for slideId %d: max %d characters", req.SlideID, domain.MaxNarrationRunes))
		return
	}
	deckID := strings.TrimSpace(req.DeckID)

	slot, replayable := h.replaySlotOf(c)
	if replayable {
		if rec, found := h.previous(c, slot); found {
			var prev []services.UpsertResult
			if json.Unmarshal([]byte(rec.Result), &prev) == nil {
				markReplayed(c)
				ok(c, rec.Status, postNarrationsResponse(prev))
				return
			}
		}
	}

	results, err := h.narrSvc.UpsertBatch(ctx, items, req.Overwrite, deckID)
	if err != nil {
		serviceFail(c, err, ErrCodeSaveFailed)
		return
	}

	if replayable {
		if b, err := json.Marshal(results); err == nil {
			h.remember(c, slot, http.StatusCreated, string(b))
		}
	}

	if deckID != "" && h.sessions != nil {
		h.sessions.ReloadDeck(ctx, deckID)
	}
	ok(c, http.StatusCreated, postNarrationsResponse(results))
}

func postNarrationsResponse(results []services.UpsertResult) PostNarrationsResponse {
	return PostNarrationsResponse{
		Message: fmt.Sprintf("Processed %d narration item(s)", len(results)),
		Results: results,
	}
}

// ListSlideNarrations godoc
// @ID          listSlideNarrations
// @Summary     Narration history of a slide
// @Description Returns every stored version for the slide, newest first.
// @Tags        Narrations
// @Produce     json
//
// @Param       id        path   int     true   "Slide ID"
// @Param       language  query  string  false  "Language filter"  example(en)
//
// @Success     200  {object} handlers.ListNarrationsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Slide not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /slides/{id}/narrations [get]
func (h *Handlers) ListSlideNarrations(c *gin.Context) {
	slideID, valid := intParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slide id must be a positive integer")
		return
	}
	rows, err := h.narrSvc.History(c.Request.Context(), slideID, strings.TrimSpace(c.Query("language")))
	if err != nil {
		serviceFail(c, err, ErrCodeListFailed)
		return
	}
	if rows == nil {
		rows = []domain.Narration{}
	}
	ok(c, http.StatusOK, ListNarrationsResponse{Narrations: rows})
}

// ActivateNarration godoc
// @ID          activateNarration
// @Summary     Activate a narration version
// @Description Makes the given version the active narration for its slide and language.
// @Tags        Narrations
// @Produce     json
//
// @Param       id  path  int  true  "Narration ID"
//
// @Success     200  {object} domain.Narration
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Narration not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /narrations/{id}/activate [post]
func (h *Handlers) ActivateNarration(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "narration id must be a positive integer")
		return
	}
	n, err := h.narrSvc.Activate(c.Request.Context(), id)
	if err != nil {
		serviceFail(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, n)
}
