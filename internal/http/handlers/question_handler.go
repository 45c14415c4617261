// Question HTTP handlers.
//
// This file exposes REST endpoints for the audience question log:
//   - POST   /questions              (record a question)
//   - GET    /decks/{id}/questions   (moderator list, newest first)
//   - DELETE /questions/{id}         (moderator delete)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// PostQuestionRequest is the JSON payload for recording a question.
type PostQuestionRequest struct {
	DeckID  string `json:"deckId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	SlideID *int   `json:"slideId" example:"12"`
	Text    string `json:"text" binding:"required" example:"How was churn measured?"`
}

// ListQuestionsResponse wraps the questions of a deck.
type ListQuestionsResponse struct {
	Questions []domain.Question `json:"questions"`
}

// PostQuestion godoc
// @ID          postQuestion
// @Summary     Record a question
// @Description Stores an audience question, optionally tied to a slide of the deck.
// @Tags        Questions
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.PostQuestionRequest  true  "Question payload"
//
// @Success     201  {object}  domain.Question
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Deck not found"
// @Failure     413  {object}  handlers.ErrorResponse  "Question too long"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /questions [post]
func (h *Handlers) PostQuestion(c *gin.Context) {
	var req PostQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deckId and text are required")
		return
	}
	q, err := h.qSvc.Record(c.Request.Context(), req.DeckID, req.SlideID, req.Text)
	if err != nil {
		serviceFail(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, q.ID, q)
}

// ListDeckQuestions godoc
// @ID          listDeckQuestions
// @Summary     List questions of a deck
// @Tags        Questions
// @Produce     json
//
// @Param       id  path  string  true  "Deck ID"  format(uuid)
//
// @Success     200  {object} handlers.ListQuestionsResponse
// @Failure     404  {object} handlers.ErrorResponse "Deck not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /decks/{id}/questions [get]
func (h *Handlers) ListDeckQuestions(c *gin.Context) {
	qs, err := h.qSvc.ListByDeck(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceFail(c, err, ErrCodeListFailed)
		return
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	ok(c, http.StatusOK, ListQuestionsResponse{Questions: qs})
}

// DeleteQuestion godoc
// @ID          deleteQuestion
// @Summary     Delete a question
// @Tags        Questions
//
// @Param       id  path  string  true  "Question ID"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Question not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /questions/{id} [delete]
func (h *Handlers) DeleteQuestion(c *gin.Context) {
	if err := h.qSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		serviceFail(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}
