// Package sysutil holds the process bootstrap helpers shared by the API
// server and the generation worker.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a LOG_LEVEL value to a zerolog level. "warning" is accepted
// for warn; empty and unknown values mean info.
func ParseLevel(s string) zerolog.Level {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "warning" {
		v = "warn"
	}
	lvl, err := zerolog.ParseLevel(v)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel sets the global zerolog level from a LOG_LEVEL value.
func SetLogLevel(lvl string) {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
}

// LogOptions describe the process logger.
type LogOptions struct {
	Service string
	Version string
	Level   string
	Pretty  bool      // human-readable console output for local runs
	Out     io.Writer // defaults to stderr
}

// NewLogger configures the global logger (used by the HTTP middleware) and
// returns it. Every line carries the service name and build version, so API
// and worker output can share one log stream.
func NewLogger(opts LogOptions) zerolog.Logger {
	SetLogLevel(opts.Level)
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", opts.Service).
		Str("version", opts.Version).
		Logger()
	return log.Logger
}

// IsTruthy reports whether an environment value means true: "1", "true",
// "yes", "y" or "on", case-insensitive.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value that is not blank, unchanged.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
