// Package logging installs a tint handler as the slog default so every
// package logs through one colored, source-annotated stream.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default handler. The minimum level comes from the
// LOG_LEVEL environment variable (debug, info, warn, error); anything
// unrecognized falls back to info.
func Setup() {
	SetupWithLevel(levelFromEnv())
}

// SetupWithLevel installs the default handler at an explicit level,
// bypassing the environment. Tests use this to silence noise.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}),
	))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
