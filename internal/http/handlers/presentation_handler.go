// Presentation HTTP handlers.
//
// This file exposes the playback session endpoints:
//   - POST   /presentations                  (create a session)
//   - GET    /presentations/{sid}            (current snapshot)
//   - POST   /presentations/{sid}/commands   (playback commands)
//   - POST   /presentations/{sid}/events     (avatar events relayed by the browser)
//   - GET    /presentations/{sid}/stream     (server-sent snapshots)
//   - DELETE /presentations/{sid}            (stop and drop)
//
// Commands that are not valid in the current state are reported with
// applied=false and HTTP 200; only malformed requests and failures are errors.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-narration-backend/internal/presentation"
	"github.com/tbourn/go-narration-backend/internal/services"
)

// CreatePresentationRequest opens a session for one deck.
type CreatePresentationRequest struct {
	DeckID   string `json:"deckId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Language string `json:"language" example:"en"`
}

// CreatePresentation godoc
// @ID          createPresentation
// @Summary     Create a presentation session
// @Description Opens an idle playback session and loads the deck's narrations for the language.
// @Tags        Presentations
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreatePresentationRequest  true  "Session payload"
//
// @Success     201  {object}  presentation.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Deck not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Session limit reached"
// @Router      /presentations [post]
func (h *Handlers) CreatePresentation(c *gin.Context) {
	var req CreatePresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deckId is required")
		return
	}
	ctl, err := h.sessions.Create(c.Request.Context(), req.DeckID, req.Language)
	if err != nil {
		if errors.Is(err, presentation.ErrTooManySessions) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
			return
		}
		serviceFail(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, ctl.ID(), ctl.Snapshot())
}

// GetPresentation godoc
// @ID          getPresentation
// @Summary     Get a presentation snapshot
// @Tags        Presentations
// @Produce     json
//
// @Param       sid  path  string  true  "Session ID"  format(uuid)
//
// @Success     200  {object} presentation.Snapshot
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /presentations/{sid} [get]
func (h *Handlers) GetPresentation(c *gin.Context) {
	ctl, found := h.session(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, ctl.Snapshot())
}

// PostCommand godoc
// @ID          postPresentationCommand
// @Summary     Send a playback command
// @Description Commands: connect, start, next, prev, goto, pause, resume, stop, language, reload, ask, edit, commit.
// @Description No-ops (e.g. next on the last slide) return applied=false with a reason.
// @Tags        Presentations
// @Accept      json
// @Produce     json
//
// @Param       sid   path  string  true  "Session ID"  format(uuid)
// @Param       body  body  presentation.Command  true  "Command"
//
// @Success     200  {object} presentation.Result
// @Failure     400  {object} handlers.ErrorResponse "Unknown or malformed command"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "Narrations not ready or session closed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /presentations/{sid}/commands [post]
func (h *Handlers) PostCommand(c *gin.Context) {
	ctl, found := h.session(c)
	if !found {
		return
	}
	var cmd presentation.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := ctl.Do(c.Request.Context(), cmd)
	if err != nil {
		commandFail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// PostEvent godoc
// @ID          postPresentationEvent
// @Summary     Relay an avatar event
// @Description Events: streamReady, streamDisconnected, speechEnded (with speechSeq).
// @Tags        Presentations
// @Accept      json
// @Produce     json
//
// @Param       sid   path  string  true  "Session ID"  format(uuid)
// @Param       body  body  presentation.Event  true  "Event"
//
// @Success     200  {object} presentation.Result
// @Failure     400  {object} handlers.ErrorResponse "Unknown event"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /presentations/{sid}/events [post]
func (h *Handlers) PostEvent(c *gin.Context) {
	ctl, found := h.session(c)
	if !found {
		return
	}
	var ev presentation.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := ctl.HandleEvent(ev)
	if err != nil {
		commandFail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// StreamPresentation godoc
// @ID          streamPresentation
// @Summary     Stream presentation snapshots
// @Description Server-sent events; each "snapshot" event carries a presentation.Snapshot.
// @Tags        Presentations
// @Produce     text/event-stream
//
// @Param       sid  path  string  true  "Session ID"  format(uuid)
//
// @Success     200  {object} presentation.Snapshot
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /presentations/{sid}/stream [get]
func (h *Handlers) StreamPresentation(c *gin.Context) {
	ctl, found := h.session(c)
	if !found {
		return
	}
	ch, cancel := ctl.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// The first snapshot is always buffered.
	if s, open := <-ch; open {
		c.SSEvent("snapshot", s)
		c.Writer.Flush()
	}
	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case s, open := <-ch:
			if !open {
				c.SSEvent("closed", gin.H{"sessionId": ctl.ID()})
				c.Writer.Flush()
				return
			}
			c.SSEvent("snapshot", s)
			c.Writer.Flush()
		}
	}
}

// DeletePresentation godoc
// @ID          deletePresentation
// @Summary     Stop a presentation session
// @Description Disconnects the avatar and drops the session.
// @Tags        Presentations
//
// @Param       sid  path  string  true  "Session ID"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /presentations/{sid} [delete]
func (h *Handlers) DeletePresentation(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("sid")); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "presentation not found")
		return
	}
	noContent(c)
}

// session resolves the :sid path parameter or writes 404.
func (h *Handlers) session(c *gin.Context) (*presentation.Controller, bool) {
	ctl, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "presentation not found")
		return nil, false
	}
	return ctl, true
}

// commandFail maps controller errors onto the error envelope.
func commandFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, presentation.ErrUnknownCommand):
		fail(c, http.StatusBadRequest, ErrCodeUnknownCommand, err.Error())
	case errors.Is(err, presentation.ErrEmptyQuestion), services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, presentation.ErrNotReady):
		fail(c, http.StatusConflict, ErrCodeNotReady, err.Error())
	case errors.Is(err, presentation.ErrClosed):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		serviceFail(c, err, ErrCodeCommandFailed)
	}
}
