package logfilter

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	d, errs := Parse("warn, consumer=debug,http=error,bogus=loud", slog.LevelInfo)

	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if d.Default != slog.LevelWarn {
		t.Errorf("expected default warn, got %s", d.Default)
	}
	if d.LevelFor("consumer") != slog.LevelDebug {
		t.Errorf("expected consumer debug, got %s", d.LevelFor("consumer"))
	}
	if d.LevelFor("http") != slog.LevelError {
		t.Errorf("expected http error, got %s", d.LevelFor("http"))
	}
	if d.LevelFor("watcher") != slog.LevelWarn {
		t.Errorf("expected fallback to default, got %s", d.LevelFor("watcher"))
	}
	if d.Min() != slog.LevelDebug {
		t.Errorf("expected min debug, got %s", d.Min())
	}
}

func TestParse_Empty(t *testing.T) {
	d, errs := Parse("", slog.LevelInfo)
	if len(errs) != 0 {
		t.Errorf("unexpected errors %v", errs)
	}
	if d.Default != slog.LevelInfo || len(d.Components) != 0 {
		t.Errorf("unexpected directives %+v", d)
	}
}

func TestHandler_FiltersByComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	d, _ := Parse("info,consumer=debug,http=error", slog.LevelInfo)
	logger := slog.New(New(base, d))

	logger.With("component", "consumer").Debug("consumer debug")
	logger.With("component", "http").Warn("http warn")
	logger.With("component", "http").Error("http error")
	logger.With("component", "watcher").Debug("watcher debug")
	logger.With("component", "watcher").Info("watcher info")
	logger.WithGroup("g").With("component", "consumer").Debug("grouped consumer debug")

	out := buf.String()
	for _, want := range []string{"consumer debug", "http error", "watcher info", "grouped consumer debug"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"http warn", "watcher debug"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("did not expect %q in output:\n%s", unwanted, out)
		}
	}
}
