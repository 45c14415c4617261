package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-narration-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client error to server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go
	Code string `json:"code" example:"not_found"`
	// Safe to show in the editor UI
	Message string `json:"message" example:"deck not found"`
}

// fail aborts with the error envelope. Server errors are logged at error
// level and client errors at debug, both through the request-scoped logger so
// they carry the deck or session the request targeted.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	ev := lg.Debug()
	if status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// created answers 201 with Location pointing at id under the request path.
func created(c *gin.Context, id string, body any) {
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+id)
	c.JSON(http.StatusCreated, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
