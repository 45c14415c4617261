package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// apiCSP locks JSON responses down completely; nothing the API returns is
	// meant to be rendered.
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// defaultHSTSMaxAge is used when SecurityOptions.HSTSMaxAge is unset.
	defaultHSTSMaxAge = 180 * 24 * time.Hour
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS bool // only when traffic is HTTPS end-to-end
	HSTSMaxAge time.Duration
	// NoStore marks every response uncacheable. Narration reads carry ETags,
	// so the API leaves this off.
	NoStore      bool
	EnablePolicy bool // Permissions-Policy and X-Permitted-Cross-Domain-Policies
	// DocsPrefix is exempt from the API Content-Security-Policy; the Swagger
	// UI needs inline scripts and styles.
	DocsPrefix string
}

// SecurityHeaders hardens every response:
//
//   - nosniff, frame denial and no-referrer always
//   - a deny-all Content-Security-Policy outside DocsPrefix
//   - HSTS for HTTPS requests when enabled
//   - no-cache and proxy buffering off for presentation event streams
//   - X-Request-ID added to Access-Control-Expose-Headers when present
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if opt.DocsPrefix == "" || !strings.HasPrefix(c.Request.URL.Path, opt.DocsPrefix) {
			h.Set("Content-Security-Policy", apiCSP)
		}

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		switch {
		case isStream(c):
			h.Set("Cache-Control", "no-cache")
			h.Set("X-Accel-Buffering", "no")
		case opt.NoStore:
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}

		c.Next()
	}
}

// exposeHeader adds name to Access-Control-Expose-Headers unless listed.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	if cur == "" {
		h.Set(key, name)
		return
	}
	for _, v := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return
		}
	}
	h.Set(key, cur+", "+name)
}

// isHTTPS reports whether the request arrived over TLS, directly or through
// a proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
