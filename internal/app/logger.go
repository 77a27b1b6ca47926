package app

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ebcovid/caseledger/internal/config"
)

// LevelCritical sits above error for the numeric verbosity scale.
const LevelCritical = slog.LevelError + 4

// NewLogger creates a *slog.Logger based on the provided LogConfig
// and sets it as the default logger via slog.SetDefault.
//
// Format "json" produces structured JSON output.
// Format "text" produces human-readable output; at debug level it includes
// source info.
// Output is always os.Stderr so that stdout stays free for reports.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	logger := NewLoggerTo(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

// NewLoggerTo builds the logger NewLogger would build, writing to w.
func NewLoggerTo(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug && strings.EqualFold(cfg.Format, "text"),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel accepts level names (debug, info, warn, warning, error,
// critical) or the numeric verbosity scale 10/20/30/40/50. Anything else is
// info.
func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return verbosityLevel(n)
	}
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

func verbosityLevel(n int) slog.Level {
	switch {
	case n <= 10:
		return slog.LevelDebug
	case n <= 20:
		return slog.LevelInfo
	case n <= 30:
		return slog.LevelWarn
	case n <= 40:
		return slog.LevelError
	default:
		return LevelCritical
	}
}
