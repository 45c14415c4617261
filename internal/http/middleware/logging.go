// Package middleware contains the Gin middleware shared by the narration API.
//
// This file provides correlation IDs, structured access logs, panic recovery
// and the request-scoped logger handlers read through LoggerFrom. Every
// request-scoped logger carries the resource the request targets (deck,
// slide, narration, question or presentation session) so a deck's history can
// be followed across handlers, services and the generation worker logs.
//
// Recommended order:
//  1. RequestID()
//  2. Logger() or RedactingLogger()
//  3. Recovery()
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key of the request-scoped logger.
	loggerKey = "logger"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds inbound correlation IDs.
	maxRequestIDLength = 128
)

// quietPaths are probe endpoints logged at debug level.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// RequestID attaches (or propagates) a correlation identifier per request.
//
// An inbound X-Request-ID is reused when it is at most 128 characters of
// [A-Za-z0-9._:-]; anything else is replaced with a fresh UUIDv4 so log lines
// cannot be forged through the header. The ID is echoed on the response and
// stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}

// Logger writes one structured access log line per request and attaches the
// request-scoped logger for LoggerFrom.
//
// Level is chosen by outcome: error for 5xx or collected Gin errors, warn for
// 4xx, debug for probe endpoints and info otherwise. Presentation streams are
// logged once, when the client goes away, with the stream duration.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := attachLogger(c).With().
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			// ContentLength can be -1 if unknown.
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Next()

		ev := eventFor(&l, c, c.Writer.Status())
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg(accessMessage(c))
	}
}

// Recovery converts panics into the JSON 500 envelope
// { "request_id", "code": "internal_error", "message" } when nothing has been
// written yet, and logs the panic with its stack through the request-scoped
// logger.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := asString(c.Value(requestIDKey))
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or the global logger
// when no logging middleware ran. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// attachLogger builds the request-scoped logger and stores it on c.
func attachLogger(c *gin.Context) *zerolog.Logger {
	lc := log.With().
		Str("request_id", requestIDOf(c)).
		Str("client_id", ClientID(c)).
		Str("method", c.Request.Method).
		Str("path", routeOf(c))
	l := withScope(lc, c).Logger()
	c.Set(loggerKey, &l)
	return &l
}

// requestIDOf prefers the ID set by RequestID and falls back to the
// response and request headers when it is not installed.
func requestIDOf(c *gin.Context) string {
	if rid := asString(c.Value(requestIDKey)); rid != "" {
		return rid
	}
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	return truncate(c.GetHeader(requestIDHeader), maxRequestIDLength)
}

// withScope adds the resource a request targets, read from the route
// parameters (or the deckId query of collection endpoints).
func withScope(lc zerolog.Context, c *gin.Context) zerolog.Context {
	if sid := c.Param("sid"); sid != "" {
		lc = lc.Str("session_id", sid)
	}
	id := c.Param("id")
	if id == "" {
		if deck := c.Query("deckId"); deck != "" {
			lc = lc.Str("deck_id", truncate(deck, maxRequestIDLength))
		}
		return lc
	}
	route := c.FullPath()
	switch {
	case strings.Contains(route, "/decks/"):
		lc = lc.Str("deck_id", id)
	case strings.Contains(route, "/slides/"):
		lc = lc.Str("slide_id", id)
	case strings.Contains(route, "/narrations/"):
		lc = lc.Str("narration_id", id)
	case strings.Contains(route, "/questions/"):
		lc = lc.Str("question_id", id)
	}
	return lc
}

// eventFor picks the log level for a finished request.
func eventFor(l *zerolog.Logger, c *gin.Context, status int) *zerolog.Event {
	switch {
	case len(c.Errors) > 0, status >= 500:
		return l.Error()
	case status >= 400:
		return l.Warn()
	}
	if _, quiet := quietPaths[c.Request.URL.Path]; quiet {
		return l.Debug()
	}
	return l.Info()
}

func accessMessage(c *gin.Context) string {
	if isStream(c) {
		return "stream closed"
	}
	return "request"
}

// isStream reports whether c is a server-sent event stream.
func isStream(c *gin.Context) bool {
	return strings.HasSuffix(c.FullPath(), "/stream")
}

// routeOf returns the matched route template, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// asString converts an arbitrary interface to a string, returning an empty
// string when the value is not a string. Used for context values.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate returns s unchanged when within max length, otherwise it truncates
// s to max bytes and appends an ellipsis. A max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
