package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Rules reused across settings. ozzo skips zero values for threshold rules,
// so "positive" pairs Required with Min.
var (
	positive = []validation.Rule{
		validation.Required.Error("must be > 0"),
		validation.Min(1).Error("must be > 0"),
	}
	nonNegative = []validation.Rule{validation.Min(0).Error("must be >= 0")}
)

// Validate checks every setting and reports all violations at once, keyed by
// the environment variable that sets them.
func (c Config) Validate() error {
	sqlite, postgres := c.DBDriver == "sqlite", c.DBDriver == "postgres"

	return validation.Errors{
		"PORT": validation.Validate(strings.TrimSpace(c.Port),
			validation.Required.Error("must not be empty")),
		"LOG_LEVEL": validation.Validate(c.LogLevel,
			validation.In("debug", "info", "warn", "error", "fatal", "panic").
				Error("must be one of: debug, info, warn, error, fatal, panic")),

		"READ_TIMEOUT":        validation.Validate(c.ReadTimeout, positive...),
		"READ_HEADER_TIMEOUT": validation.Validate(c.ReadHeaderTimeout, positive...),
		"WRITE_TIMEOUT":       validation.Validate(c.WriteTimeout, positive...),
		"IDLE_TIMEOUT":        validation.Validate(c.IdleTimeout, positive...),
		"MAX_HEADER_BYTES":    validation.Validate(c.MaxHeaderBytes, positive...),

		"DB_DRIVER": validation.Validate(c.DBDriver,
			validation.In("sqlite", "postgres").Error("must be one of: sqlite, postgres")),
		"DB_PATH": validation.Validate(strings.TrimSpace(c.DBPath),
			validation.When(sqlite, validation.Required.Error("must not be empty"))),
		"DATABASE_URL": validation.Validate(strings.TrimSpace(c.DatabaseURL),
			validation.When(postgres, validation.Required.Error("is required when DB_DRIVER=postgres"))),
		"REDIS_DB":            validation.Validate(c.Redis.DB, nonNegative...),
		"NARRATION_CACHE_TTL": validation.Validate(c.Redis.CacheTTL, positive...),

		"GENERATION_BATCH_SIZE": validation.Validate(c.BatchSize, positive...),
		"WORKER_CONCURRENCY":    validation.Validate(c.WorkerConcurrency, positive...),
		"ADVANCE_DELAY":         validation.Validate(c.AdvanceDelay, nonNegative...),
		"CONNECT_RETRY_DELAY":   validation.Validate(c.ConnectRetryDelay, nonNegative...),
		"MAX_SESSIONS":          validation.Validate(c.MaxSessions, positive...),

		"RATE_RPS":     validation.Validate(c.RateRPS, validation.Min(0.0).Error("must be >= 0")),
		"RATE_BURST":   validation.Validate(c.RateBurst, positive...),
		"HSTS_MAX_AGE": validation.Validate(c.Security.HSTSMaxAge, nonNegative...),

		"IDEMPOTENCY_TTL": validation.Validate(c.IdempotencyTTL, positive...),
		"OTEL_TRACES_SAMPLER_ARG": validation.Validate(c.OTEL.SampleRatio,
			validation.Min(0.0).Error("must be in [0,1]"),
			validation.Max(1.0).Error("must be in [0,1]")),
	}.Filter()
}

