package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecured(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/decks", ok)
	r.GET("/swagger/*any", ok)
	r.GET("/presentations/:sid/stream", ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecured(t, SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/decks", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	if h.Get("Content-Security-Policy") != apiCSP {
		t.Fatalf("CSP = %q", h.Get("Content-Security-Policy"))
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_DocsExemptFromCSP(t *testing.T) {
	opt := SecurityOptions{DocsPrefix: "/swagger/"}
	h := serveSecured(t, opt, nil, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if h.Get("Content-Security-Policy") != "" {
		t.Fatalf("docs must not carry the API CSP")
	}
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("docs still get baseline headers")
	}
}

func TestSecurityHeaders_StreamsNotCachedOrBuffered(t *testing.T) {
	h := serveSecured(t, SecurityOptions{NoStore: true}, nil,
		httptest.NewRequest(http.MethodGet, "/presentations/s1/stream", nil))
	if h.Get("Cache-Control") != "no-cache" || h.Get("X-Accel-Buffering") != "no" {
		t.Fatalf("stream headers = %#v", h)
	}
}

func TestSecurityHeaders_PolicyNoStoreHSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/decks", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecured(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil, req)

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_HSTSDefaultsAndPlainHTTP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/decks", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	h := serveSecured(t, SecurityOptions{EnableHSTS: true}, nil, req)
	if got := h.Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default HSTS = %q", got)
	}

	h = serveSecured(t, SecurityOptions{EnableHSTS: true}, nil, httptest.NewRequest(http.MethodGet, "/decks", nil))
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	cases := []struct {
		name, existing, want string
	}{
		{"empty", "", "X-Request-ID"},
		{"append", "ETag", "ETag, X-Request-ID"},
		{"already listed", "x-request-id, ETag", "x-request-id, ETag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header(requestIDHeader, "rid-1")
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecured(t, SecurityOptions{}, pre, httptest.NewRequest(http.MethodGet, "/decks", nil))
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q; want %q", got, tc.want)
			}
		})
	}
}

func Test_isHTTPS(t *testing.T) {
	if isHTTPS(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Fatalf("plain HTTP should not be https")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	if !isHTTPS(req) {
		t.Fatalf("TLS request should be https")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(req) {
		t.Fatalf("X-Forwarded-Proto=https should be https")
	}
}
