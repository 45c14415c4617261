package middleware

// Idempotency-Key handling for the write endpoints (deck upload, narration
// batches, generation runs, audience questions). The middleware validates the
// key and flags replays; handlers own storing and replaying responses.

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key for a write.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderClientID identifies the calling client (e.g. an editor tab or an
// integration). It is optional; the client IP is used when absent.
const HeaderClientID = "X-Client-ID"

// ctxKeyClientID is where upstream middleware may store an authenticated
// client identity.
const ctxKeyClientID = "clientID"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored response exists for this request's
// client, scope and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation. Expiry is the lookup's job.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a stored, unexpired response exists for
// (clientID, scope, key) at now.
type IdempotencyLookup func(ctx context.Context, clientID, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator checks the Idempotency-Key header. Requests without
// one pass through untouched; malformed keys get 400 bad_idempotency_key. A
// valid key is stored for GetIdempotencyKey, and when lookup finds a stored
// response for (client, scope, key) the request is flagged for IsReplay and
// let past the rate limiter. Lookup errors are treated as a miss.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			now := time.Now().UTC()
			if exists, _ := lookup(c.Request.Context(), ClientID(c), IdempotencyScope(c), key, now); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// ClientID identifies the caller for idempotency and rate limiting. It prefers
// an identity set by upstream middleware, then the X-Client-ID header, and
// falls back to the client IP.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyClientID); ok {
		if s, ok := v.(string); ok && s != "" {
			return "client:" + s
		}
	}
	if h := strings.TrimSpace(c.GetHeader(HeaderClientID)); h != "" && len(h) <= 128 {
		return "client:" + h
	}
	return "ip:" + c.ClientIP()
}

// IdempotencyScope names the operation a key applies to: the method and
// route template, plus the :id path parameter when the route has one. The
// same key may therefore be reused across different endpoints.
func IdempotencyScope(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	scope := c.Request.Method + " " + route
	if id := c.Param("id"); id != "" {
		scope += "#" + id
	}
	return scope
}
