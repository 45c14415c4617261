// Command server runs the narration HTTP API: decks, versioned narrations,
// questions, generation runs and live presentation sessions.
//
// @title       Narration Backend API
// @version     1.0
// @description Versioned slide narrations, generation runs and live presentation sessions.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/avatar"
	"github.com/tbourn/go-narration-backend/internal/cache"
	"github.com/tbourn/go-narration-backend/internal/config"
	httpapi "github.com/tbourn/go-narration-backend/internal/http"
	"github.com/tbourn/go-narration-backend/internal/jobs"
	"github.com/tbourn/go-narration-backend/internal/llm"
	"github.com/tbourn/go-narration-backend/internal/observability"
	"github.com/tbourn/go-narration-backend/internal/presentation"
	"github.com/tbourn/go-narration-backend/internal/repo"
	"github.com/tbourn/go-narration-backend/internal/search"
	"github.com/tbourn/go-narration-backend/internal/services"
	"github.com/tbourn/go-narration-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

// model is what the server needs from a language model.
type model interface {
	services.Generator
	services.Translator
	presentation.Answerer
}

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	lg := sysutil.NewLogger(sysutil.LogOptions{
		Service: cfg.OTEL.ServiceName,
		Version: ver,
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Identity{Version: ver, Component: observability.ComponentAPI})
	if err != nil {
		lg.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := observability.Shutdown(otelShutdown, 5*time.Second); err != nil {
			lg.Error().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		lg.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database init failed")
	}

	// Redis backs the narration cache and the generation queue; both are
	// optional.
	var (
		narrCache *cache.NarrationCache
		reloads   *cache.ReloadBus
		queue     *jobs.Enqueuer
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			lg.Warn().Err(err).Msg("redis unavailable; cache and queue disabled")
		} else {
			defer rdb.Close()
			narrCache = cache.NewNarrationCache(rdb, cfg.Redis.CacheTTL)
			reloads = cache.NewReloadBus(rdb)

			client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer client.Close()
			queue = &jobs.Enqueuer{Client: client, Log: lg}
		}
	}

	var cacheDep services.NarrationCache
	if narrCache != nil {
		cacheDep = narrCache
	}
	svcs := httpapi.NewServices(db, cfg, cacheDep, lg)

	m, usingGemini := newModel(cfg, lg)
	gen := &services.GenerationService{
		Generator:  m,
		Translator: m,
		Narrations: svcs.Narrations,
		Decks:      svcs.Decks,
		Log:        lg,
		BatchSize:  cfg.BatchSize,
	}

	// Offline runs answer from the slide itself. Table-heavy slides are
	// capped at 64 facts.
	answerer := presentation.FallbackAnswerer{Secondary: &search.Answerer{
		Options: []search.Option{search.WithMaxDocs(64)},
	}}
	if usingGemini {
		answerer.Primary = m
	}

	sessions := &presentation.Manager{
		Decks: svcs.Decks,
		Deps: presentation.Deps{
			Avatar:    newAvatar(cfg, lg),
			Answerer:  answerer,
			Questions: svcs.Questions,
			Scripts:   svcs.Narrations,
			Writer:    svcs.Narrations,
			Clock:     presentation.RealClock(),
			Log:       lg,
		},
		AdvanceDelay:      cfg.AdvanceDelay,
		ConnectRetryDelay: cfg.ConnectRetryDelay,
		MaxSessions:       cfg.MaxSessions,
	}

	// Queued generation runs finish in the worker; it announces them here.
	if reloads != nil {
		go func() {
			if err := reloads.Listen(ctx, sessions.ReloadDeck); err != nil {
				lg.Warn().Err(err).Msg("session reload listener stopped")
			}
		}()
	}

	deps := httpapi.Deps{
		Services:      svcs,
		Generator:     gen,
		Presentations: sessions,
	}
	if queue != nil {
		deps.Queue = queue
	}
	if narrCache != nil {
		deps.Cache = narrCache
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		lg.Info().
			Str("addr", srv.Addr).
			Bool("gemini", usingGemini).
			Bool("queue", queue != nil).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	lg.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}
	sessions.Shutdown()
}

// openDB connects, instruments and migrates the configured database.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := repo.Instrument(db); err != nil {
		return nil, err
	}
	if !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")) {
		if err := repo.AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// newModel returns Gemini when a key is configured and the offline stub
// otherwise.
func newModel(cfg config.Config, lg zerolog.Logger) (model, bool) {
	if cfg.Gemini.APIKey == "" {
		lg.Warn().Msg("GEMINI_API_KEY not set; using stub narrations")
		return &llm.Stub{}, false
	}
	g, err := llm.NewGemini(llm.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	}, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("gemini init failed")
	}
	return g, true
}

// newAvatar returns the HeyGen client when a key is configured and an
// in-memory recorder otherwise.
func newAvatar(cfg config.Config, lg zerolog.Logger) presentation.Avatar {
	if cfg.HeyGen.APIKey == "" {
		lg.Warn().Msg("HEYGEN_API_KEY not set; avatar speech is recorded only")
		return &avatar.Recorder{}
	}
	h, err := avatar.NewHeyGen(avatar.Config{
		APIKey:  cfg.HeyGen.APIKey,
		BaseURL: cfg.HeyGen.BaseURL,
		Voices:  cfg.HeyGen.VoiceIDs,
	}, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("heygen init failed")
	}
	return h
}
