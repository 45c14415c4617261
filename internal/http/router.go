// Package httpapi mounts the narration API on a Gin engine: the middleware
// chain, probes, docs and the /api/v1 routes for decks, narrations,
// questions and presentation sessions.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-narration-backend/docs" // swagger docs registration
	"github.com/tbourn/go-narration-backend/internal/config"
	"github.com/tbourn/go-narration-backend/internal/http/handlers"
	"github.com/tbourn/go-narration-backend/internal/http/middleware"
	"github.com/tbourn/go-narration-backend/internal/repo"
	"github.com/tbourn/go-narration-backend/internal/services"
)

// maxBodyBytes caps request bodies; a full narration batch of a long deck
// stays well below it.
const maxBodyBytes = 4 << 20

// Services are the application services behind the API.
type Services struct {
	Decks      *services.DeckService
	Narrations *services.NarrationService
	Questions  *services.QuestionService
}

// NewServices builds the application services over db. cache may be nil.
func NewServices(db *gorm.DB, cfg config.Config, cache services.NarrationCache, lg zerolog.Logger) Services {
	decks := services.NewDeckService(db, repo.DeckStore{}, cfg.PublicBaseURL)
	decks.Cache = cache
	decks.Log = lg
	return Services{
		Decks:      decks,
		Narrations: services.NewNarrationService(db, cache, lg),
		Questions:  &services.QuestionService{DB: db, Log: lg},
	}
}

// Pinger is an optional dependency checked by /ready (the narration cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators mounted by RegisterRoutes. Queue may be nil, in
// which case generation always runs in the request. Cache may be nil.
type Deps struct {
	Services
	Generator     handlers.Generator
	Queue         handlers.GenerationQueue
	Presentations handlers.Presentations
	Cache         Pinger
}

// RegisterRoutes installs the middleware chain, the probes and docs, and
// the API under cfg.APIBasePath. The chain runs in this order:
//
//	tracing, request id, access logger, recovery, body limit, metrics,
//	idempotency lookup, rate limit, CORS, security headers, gzip.
//
// The idempotency lookup precedes the limiter so replayed POSTs are not
// throttled. The access logger redacts unless cfg.LogRawAccess is set.
// Recovery runs inside the logger so panics are logged with the
// request id. SSE streams bypass gzip.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if cfg.LogRawAccess {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-Api-Key"},
			KeepIDs:     true,
		}))
	}
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	replays := repo.NewIdempotencyStore(db, cfg.IdempotencyTTL)
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, replays.Seen))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRoute(middleware.KeyByClient()))
	r.Use(rl.Handler())

	r.Use(corsChain(cfg.CORS.AllowedOrigins)...)

	// HSTS is only sent over HTTPS.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		DocsPrefix:   "/swagger/",
	}))

	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`/stream$`, `^/metrics$`}),
	))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(db, d))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Decks:         d.Decks,
		Narrations:    d.Narrations,
		Questions:     d.Questions,
		Generator:     d.Generator,
		Queue:         d.Queue,
		Presentations: d.Presentations,
		Replays:       replays,
		DB:            db,
		Languages:     cfg.Languages,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Decks
		api.POST("/decks", h.CreateDeck)
		api.GET("/decks", h.ListDecks)
		api.POST("/decks/bulk-delete", h.BulkDeleteDecks)
		api.GET("/decks/:id", h.GetDeck)
		api.DELETE("/decks/:id", h.DeleteDeck)
		api.POST("/decks/:id/narrations/generate", h.GenerateNarrations)
		api.GET("/decks/:id/questions", h.ListDeckQuestions)

		// Narrations
		api.GET("/narrations", h.GetNarrations)
		api.POST("/narrations", h.PostNarrations)
		api.POST("/narrations/:id/activate", h.ActivateNarration)
		api.GET("/slides/:id/narrations", h.ListSlideNarrations)

		// Questions
		api.POST("/questions", h.PostQuestion)
		api.DELETE("/questions/:id", h.DeleteQuestion)

		// Presentation sessions
		if d.Presentations != nil {
			api.POST("/presentations", h.CreatePresentation)
			api.GET("/presentations/:sid", h.GetPresentation)
			api.DELETE("/presentations/:sid", h.DeletePresentation)
			api.POST("/presentations/:sid/commands", h.PostCommand)
			api.POST("/presentations/:sid/events", h.PostEvent)
			api.GET("/presentations/:sid/stream", h.StreamPresentation)
		}
	}
}

// readiness reports whether the database (and the cache, when configured)
// answers within a short deadline. The cache is soft: reads fall back to the
// database, so a cache failure degrades rather than fails the probe.
func readiness(db *gorm.DB, d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok", "database": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			body["status"], body["database"] = "unavailable", "down"
			status = http.StatusServiceUnavailable
		}
		if d.Cache != nil {
			body["cache"] = "ok"
			if err := d.Cache.Ping(ctx); err != nil {
				body["cache"] = "down"
				if status == http.StatusOK {
					body["status"] = "degraded"
				}
			}
		}
		if n, ok := d.Presentations.(interface{ Len() int }); ok {
			body["sessions"] = n.Len()
		}
		c.JSON(status, body)
	}
}

// corsChain allows any origin when origins is empty. Otherwise only listed
// origins are echoed back, with Vary: Origin. Credentials are never allowed.
func corsChain(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderClientID, middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		// cors only answers requests carrying an Origin; probes and curl get it too.
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(cc)}
	}

	cc.AllowOrigins = origins
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	echo := func(c *gin.Context) {
		if o := c.GetHeader("Origin"); allowed[o] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", o)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(cc)}
}

// limitBody caps every request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
