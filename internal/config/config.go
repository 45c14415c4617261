// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, collaborators (Gemini, HeyGen),
// playback timing, rate limiting, and observability.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-narration-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RedisConfig holds the Redis connection used by the narration cache and
// the generation queue. Addr empty disables both.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	CacheTTL time.Duration // NARRATION_CACHE_TTL
}

// GeminiConfig configures the narration generator / translator.
type GeminiConfig struct {
	APIKey  string // GEMINI_API_KEY; empty selects the offline stub
	Model   string // GEMINI_MODEL
	BaseURL string // GEMINI_BASE_URL
}

// HeyGenConfig configures the streaming avatar.
type HeyGenConfig struct {
	APIKey   string            // HEYGEN_API_KEY; empty selects the in-memory recorder
	BaseURL  string            // HEYGEN_BASE_URL
	VoiceIDs map[string]string // HEYGEN_VOICE_IDS, "en=abc,de=def"
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	PublicBaseURL     string        // used to build presentation URLs

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRawAccess   bool   // unredacted access logs, local debugging only
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN
	Redis       RedisConfig

	// Collaborators
	Gemini GeminiConfig
	HeyGen HeyGenConfig

	// Generation
	BatchSize         int      // slides per generator call
	Languages         []string // target languages for generation runs
	WorkerConcurrency int      // asynq worker concurrency

	// Playback
	AdvanceDelay      time.Duration // pause between slides
	ConnectRetryDelay time.Duration // wait before the single connect retry
	MaxSessions       int           // concurrent presentation sessions

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		PublicBaseURL:     strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogRawAccess:   getbool("LOG_RAW_ACCESS", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "app.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			CacheTTL: getdur("NARRATION_CACHE_TTL", 10*time.Minute),
		},

		// Collaborators
		Gemini: GeminiConfig{
			APIKey:  strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
			Model:   getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		},
		HeyGen: HeyGenConfig{
			APIKey:  strings.TrimSpace(getenv("HEYGEN_API_KEY", "")),
			BaseURL: getenv("HEYGEN_BASE_URL", "https://api.heygen.com"),
		},

		// Generation
		BatchSize:         getint("GENERATION_BATCH_SIZE", 10),
		Languages:         splitCSV(strings.ToLower(getenv("NARRATION_LANGUAGES", "en"))),
		WorkerConcurrency: getint("WORKER_CONCURRENCY", 2),

		// Playback
		AdvanceDelay:      getdur("ADVANCE_DELAY", 1500*time.Millisecond),
		ConnectRetryDelay: getdur("CONNECT_RETRY_DELAY", 2*time.Second),
		MaxSessions:       getint("MAX_SESSIONS", 100),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-narration-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	voices, err := parseVoices(getenv("HEYGEN_VOICE_IDS", ""))
	if err != nil {
		return cfg, err
	}
	cfg.HeyGen.VoiceIDs = voices

	cfg.normalize()
	return cfg, cfg.Validate()
}

// normalize folds accepted aliases onto their canonical spelling.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.DBDriver == "postgresql" {
		c.DBDriver = "postgres"
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"en"}
	}
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseVoices parses "lang=voice" pairs. Language keys are lower-cased.
func parseVoices(s string) (map[string]string, error) {
	pairs := splitCSV(s)
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		lang, voice, ok := strings.Cut(p, "=")
		lang = strings.ToLower(strings.TrimSpace(lang))
		voice = strings.TrimSpace(voice)
		if !ok || lang == "" || voice == "" {
			return nil, fmt.Errorf("HEYGEN_VOICE_IDS: invalid pair %q (want lang=voice)", p)
		}
		out[lang] = voice
	}
	return out, nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
