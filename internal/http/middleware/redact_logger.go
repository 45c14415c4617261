package middleware

// RedactingLogger is the access logger mounted in production. Request bodies
// (narration text, audience questions) are never logged; query strings and
// header values are pattern-scrubbed, and credentials are masked outright.

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are header names (case-insensitive) whose values are
	// replaced with "[REDACTED]", on top of Authorization, Cookie and
	// Set-Cookie.
	MaskHeaders []string
	// KeepIDs leaves UUIDs readable. Deck, slide and narration IDs are not
	// personal data and are the main key for following a deck through logs.
	KeepIDs bool
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex segments never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redactor scrubs free text for logging.
type redactor struct {
	keepIDs bool
	masked  map[string]struct{}
}

func newRedactor(opts RedactOptions) redactor {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}
	return redactor{keepIDs: opts.KeepIDs, masked: masked}
}

// text redacts emails and phone numbers, and UUIDs unless keepIDs is set.
// UUIDs are replaced (or shielded) first; the phone pattern would otherwise
// eat their digit runs.
func (r redactor) text(s string) string {
	if s == "" {
		return s
	}
	if r.keepIDs {
		ids := uuidRE.FindAllStringIndex(s, -1)
		if len(ids) == 0 {
			return r.scrub(s)
		}
		var b strings.Builder
		last := 0
		for _, loc := range ids {
			b.WriteString(r.scrub(s[last:loc[0]]))
			b.WriteString(s[loc[0]:loc[1]])
			last = loc[1]
		}
		b.WriteString(r.scrub(s[last:]))
		return b.String()
	}
	return r.scrub(uuidRE.ReplaceAllString(s, "[REDACTED:id]"))
}

func (r redactor) scrub(s string) string {
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func (r redactor) headers(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.text(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger logs one "http_request" line per request with scrubbed
// query and headers, and attaches the request-scoped logger for LoggerFrom.
// Levels follow Logger.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()

		l := attachLogger(c)
		query := red.text(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		headers := red.headers(c.Request.Header)

		c.Next()

		status := c.Writer.Status()
		ev := eventFor(l, c, status)
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", red.text(c.Errors.String()))
		}
		if isStream(c) {
			ev = ev.Bool("stream", true)
		}
		ev.Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
