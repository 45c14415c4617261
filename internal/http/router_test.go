package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-narration-backend/internal/config"
	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/http/middleware"
	"github.com/tbourn/go-narration-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		PublicBaseURL:  "http://localhost:3000",
		RateRPS:        100,
		RateBurst:      50,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		IdempotencyTTL: time.Hour,
		Languages:      []string{"en"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg, Deps{Services: NewServices(db, cfg, nil, zerolog.Nop())})
	return r, db
}

func serve(r *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	// /health works
	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := serve(r, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := serve(r, http.MethodPost, "/health", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is off by default
	if w := serve(r, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}

	// presentation routes are only mounted with a session manager
	if w := serve(r, http.MethodGet, "/api/v1/presentations/x", ""); w.Code != http.StatusNotFound {
		t.Fatalf("presentations without a manager: got %d", w.Code)
	}
}

func TestRegisterRoutes_AccessLogMode(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	cases := []struct {
		raw  bool
		want string
	}{
		{false, `"message":"http_request"`},
		{true, `"message":"request"`},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		log.Logger = zerolog.New(&buf)

		cfg := testConfig()
		cfg.LogRawAccess = tc.raw
		r, _ := newRouter(t, cfg)
		if w := serve(r, http.MethodGet, "/api/v1/decks", ""); w.Code != http.StatusOK {
			t.Fatalf("GET /decks = %d", w.Code)
		}
		if !strings.Contains(buf.String(), tc.want) {
			t.Fatalf("raw=%v: want %s in %s", tc.raw, tc.want, buf.String())
		}
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = serve(r, http.MethodGet, "/health", "", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "http://evil.example" {
		t.Fatalf("unlisted origin must not be echoed")
	}
}

func TestRegisterRoutes_DeckAndNarrationFlow(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodPost, "/api/v1/decks",
		`{"title":"Launch","avatar":"Anna","slides":[{"topic":"Intro"},{"topic":"Plan"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create deck: %d %s", w.Code, w.Body.String())
	}
	var d domain.Deck
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("json: %v", err)
	}

	body := fmt.Sprintf(`{"deckId":%q,"items":[{"slideId":%d,"text":"Welcome"},{"slideId":%d,"text":"Next steps"}]}`,
		d.ID, d.Slides[0].ID, d.Slides[1].ID)
	if w := serve(r, http.MethodPost, "/api/v1/narrations", body); w.Code != http.StatusCreated {
		t.Fatalf("save narrations: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/narrations?deckId="+d.ID, "", "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK {
		t.Fatalf("get narrations: %d", w.Code)
	}
	if ce := w.Header().Get("Content-Encoding"); ce != "gzip" {
		t.Fatalf("Content-Encoding=%q", ce)
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	raw, _ := io.ReadAll(zr)
	var got struct {
		Narrations []domain.Narration `json:"narrations"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json: %v (%s)", err, raw)
	}
	if len(got.Narrations) != 2 || got.Narrations[0].Text != "Welcome" {
		t.Fatalf("unexpected narrations %+v", got.Narrations)
	}
}

func TestRegisterRoutes_IdempotentReplayThroughStack(t *testing.T) {
	r, db := newRouter(t, testConfig())
	body := `{"title":"Once","avatar":"Anna","slides":[{"topic":"a"}]}`

	w1 := serve(r, http.MethodPost, "/api/v1/decks", body, middleware.HeaderIdempotencyKey, "k-1")
	w2 := serve(r, http.MethodPost, "/api/v1/decks", body, middleware.HeaderIdempotencyKey, "k-1")
	if w1.Code != http.StatusCreated || w2.Code != http.StatusCreated {
		t.Fatalf("status %d/%d", w1.Code, w2.Code)
	}
	if w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("second request should be a replay")
	}
	var n int64
	if err := db.Model(&domain.Deck{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("decks=%d err=%v", n, err)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/narrations") {
		t.Fatalf("doc.json should describe the narration routes")
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestRegisterRoutes_Ready(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg, Deps{Services: NewServices(db, cfg, nil, zerolog.Nop()), Cache: fakePinger{}})
	w := serve(r, http.MethodGet, "/ready", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cache":"ok"`) {
		t.Fatalf("ready: %d %s", w.Code, w.Body.String())
	}

	// a failing cache degrades but keeps the probe green
	r = gin.New()
	RegisterRoutes(r, db, cfg, Deps{Services: NewServices(db, cfg, nil, zerolog.Nop()), Cache: fakePinger{err: errors.New("down")}})
	w = serve(r, http.MethodGet, "/ready", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"degraded"`) {
		t.Fatalf("degraded: %d %s", w.Code, w.Body.String())
	}

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	if w := serve(r, http.MethodGet, "/ready", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("closed db should fail readiness, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := serve(r, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	r, db := newRouter(t, testConfig())

	// force queries to fail by closing the underlying connection
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	w := serve(r, http.MethodPost, "/health", "{}", middleware.HeaderIdempotencyKey, "force-error")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
