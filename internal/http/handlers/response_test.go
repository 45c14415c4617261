package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// scopedRouter installs a request id and a request-scoped logger writing to
// buf, the way the logging middleware does.
func scopedRouter(rid string, buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lg := zerolog.New(buf).Level(zerolog.DebugLevel).With().Str("deck_id", "d-1").Logger()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Set("logger", &lg)
		c.Next()
	})
	return r
}

func TestFail_LevelsByStatus(t *testing.T) {
	cases := []struct {
		status int
		code   string
		level  string
	}{
		{http.StatusInternalServerError, ErrCodeSaveFailed, "error"},
		{http.StatusServiceUnavailable, ErrCodeUnavailable, "error"},
		{http.StatusNotFound, ErrCodeNotFound, "debug"},
		{http.StatusConflict, ErrCodeConflict, "debug"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		r := scopedRouter("rid-1", &buf)
		r.GET("/x", func(c *gin.Context) { fail(c, tc.status, tc.code, "msg") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != tc.status {
			t.Fatalf("status = %d; want %d", w.Code, tc.status)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json: %v", err)
		}
		if resp.RequestID != "rid-1" || resp.Code != tc.code || resp.Message != "msg" {
			t.Fatalf("unexpected body: %+v", resp)
		}
		logs := buf.String()
		if !strings.Contains(logs, `"level":"`+tc.level+`"`) || !strings.Contains(logs, `"deck_id":"d-1"`) {
			t.Fatalf("%d: expected scoped %s log, got: %s", tc.status, tc.level, logs)
		}
	}
}

func TestFail_AbortsChain(t *testing.T) {
	var buf bytes.Buffer
	r := scopedRouter("rid-2", &buf)
	reached := false
	r.GET("/x",
		func(c *gin.Context) { Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nope") },
		func(c *gin.Context) { reached = true },
	)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusBadRequest || reached {
		t.Fatalf("status=%d reached=%v", w.Code, reached)
	}
}

func TestCreatedAndNoContent(t *testing.T) {
	var buf bytes.Buffer
	r := scopedRouter("rid-3", &buf)
	r.POST("/api/v1/decks", func(c *gin.Context) { created(c, "d-9", gin.H{"id": "d-9"}) })
	r.POST("/api/v1/questions/", func(c *gin.Context) { created(c, "q-1", gin.H{"id": "q-1"}) })
	r.DELETE("/api/v1/decks/:id", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/decks", nil))
	if w.Code != http.StatusCreated || w.Header().Get("Location") != "/api/v1/decks/d-9" {
		t.Fatalf("created: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["id"] != "d-9" {
		t.Fatalf("created body: %s (%v)", w.Body.String(), err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/questions/", nil))
	if got := w.Header().Get("Location"); got != "/api/v1/questions/q-1" {
		t.Fatalf("trailing slash location = %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/decks/d-9", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestOK_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	r := scopedRouter("rid-4", &buf)
	r.GET("/x", func(c *gin.Context) { ok(c, http.StatusAccepted, gin.H{"taskId": "t1"}) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), `"taskId":"t1"`) {
		t.Fatalf("ok: %d %s", w.Code, w.Body.String())
	}
}
