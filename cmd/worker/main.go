// Command worker consumes queued narration generation runs from Redis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/tbourn/go-narration-backend/internal/cache"
	"github.com/tbourn/go-narration-backend/internal/config"
	"github.com/tbourn/go-narration-backend/internal/jobs"
	"github.com/tbourn/go-narration-backend/internal/llm"
	"github.com/tbourn/go-narration-backend/internal/observability"
	"github.com/tbourn/go-narration-backend/internal/repo"
	"github.com/tbourn/go-narration-backend/internal/services"
	"github.com/tbourn/go-narration-backend/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	lg := sysutil.NewLogger(sysutil.LogOptions{
		Service: cfg.OTEL.ServiceName + "-worker",
		Version: ver,
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
	})

	if cfg.Redis.Addr == "" {
		lg.Fatal().Msg("REDIS_ADDR is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Identity{Version: ver, Component: observability.ComponentWorker})
	if err != nil {
		lg.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() { _ = observability.Shutdown(otelShutdown, 5*time.Second) }()

	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		lg.Fatal().Err(err).Msg("database init failed")
	}
	if err := repo.Instrument(db); err != nil {
		lg.Fatal().Err(err).Msg("gorm tracing")
	}
	if err := repo.AutoMigrate(db); err != nil {
		lg.Fatal().Err(err).Msg("migrate")
	}

	// The worker writes through the same cache as the API so invalidation
	// reaches readers immediately.
	// Finished runs are announced on the same Redis so the API reloads live
	// sessions of the deck.
	var (
		narrCache services.NarrationCache
		notifier  jobs.ReloadNotifier
	)
	if rdb, err := cache.NewClient(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}); err != nil {
		lg.Warn().Err(err).Msg("narration cache and session reloads disabled")
	} else {
		defer rdb.Close()
		narrCache = cache.NewNarrationCache(rdb, cfg.Redis.CacheTTL)
		notifier = cache.NewReloadBus(rdb)
	}

	var (
		gen   services.Generator
		trans services.Translator
	)
	if cfg.Gemini.APIKey != "" {
		g, err := llm.NewGemini(llm.Config{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model, BaseURL: cfg.Gemini.BaseURL}, lg)
		if err != nil {
			lg.Fatal().Err(err).Msg("gemini init failed")
		}
		gen, trans = g, g
	} else {
		lg.Warn().Msg("GEMINI_API_KEY not set; using stub narrations")
		s := &llm.Stub{}
		gen, trans = s, s
	}

	pipeline := &services.GenerationService{
		Generator:  gen,
		Translator: trans,
		Narrations: services.NewNarrationService(db, narrCache, lg),
		Decks:      services.NewDeckService(db, repo.DeckStore{}, cfg.PublicBaseURL),
		Log:        lg,
		BatchSize:  cfg.BatchSize,
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	srv := jobs.NewServer(redisOpt, cfg.WorkerConcurrency, lg)
	mux := jobs.NewServeMux(
		&jobs.GenerateHandler{Generator: pipeline, Notifier: notifier, Log: lg},
		&jobs.PurgeHandler{Store: repo.NewIdempotencyStore(db, cfg.IdempotencyTTL), Log: lg},
	)

	sched := jobs.NewScheduler(redisOpt, lg)
	if _, err := jobs.SchedulePurge(sched, jobs.DefaultPurgeEvery); err != nil {
		lg.Fatal().Err(err).Msg("schedule replay purge")
	}

	if err := srv.Start(mux); err != nil {
		lg.Fatal().Err(err).Msg("worker start failed")
	}
	if err := sched.Start(); err != nil {
		lg.Fatal().Err(err).Msg("scheduler start failed")
	}
	lg.Info().Int("concurrency", cfg.WorkerConcurrency).Str("queue", jobs.QueueNarrations).Msg("worker started")

	<-ctx.Done()
	lg.Info().Msg("shutting down worker")
	sched.Shutdown()
	srv.Shutdown()
}
