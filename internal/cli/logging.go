package cli

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/pulse/internal/core/config"
	"github.com/vietddude/pulse/internal/pkg/logfilter"
)

// defaultLogFilter keeps source diagnostics visible while the rest logs at
// the base level.
const defaultLogFilter = "source=debug"

// setupLogging installs the tint handler behind the component filter.
// PULSE_LOG overrides the configured filter and LOG_LEVEL the base level.
func setupLogging(cfg *config.AppConfig) {
	base := slog.LevelInfo
	filter := defaultLogFilter
	if cfg != nil {
		base = parseLevel(cfg.Logging.Level, base)
		if cfg.Logging.Filter != "" {
			filter = cfg.Logging.Filter
		}
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		base = parseLevel(env, base)
	}
	if isDebug {
		base = slog.LevelDebug
	}
	if env := os.Getenv("PULSE_LOG"); env != "" {
		filter = env
	}

	directives, errs := logfilter.Parse(filter, base)

	stylelog.InitDefault(&tint.Options{
		Level:      directives.Min(),
		TimeFormat: time.RFC3339,
	})
	slog.SetDefault(slog.New(logfilter.New(slog.Default().Handler(), directives)))

	for _, err := range errs {
		slog.Warn("Invalid log directive", "error", err)
	}
	slog.Debug("Logger initialized", "level", base.String(), "filter", filter)
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return fallback
	}
	return level
}
