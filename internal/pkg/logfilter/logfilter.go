// Package logfilter applies per-component level directives to a slog handler.
//
// Directives use the form "info,consumer=debug,http=warn": a bare level sets
// the default and component=level pairs override it for loggers carrying a
// matching "component" attribute.
package logfilter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ComponentKey is the attribute that selects a directive.
const ComponentKey = "component"

// Directives maps components to minimum levels.
type Directives struct {
	Default    slog.Level
	Components map[string]slog.Level
}

// Parse reads a directive string. Invalid directives are skipped and
// reported; the rest still apply.
func Parse(directives string, fallback slog.Level) (Directives, []error) {
	d := Directives{Default: fallback, Components: make(map[string]slog.Level)}
	var errs []error

	for _, part := range strings.Split(directives, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, levelText, hasName := strings.Cut(part, "=")
		if !hasName {
			levelText, name = name, ""
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(levelText))); err != nil {
			errs = append(errs, fmt.Errorf("ignoring directive %q: %w", part, err))
			continue
		}

		if name = strings.TrimSpace(name); name == "" {
			d.Default = level
		} else {
			d.Components[name] = level
		}
	}

	return d, errs
}

// Min returns the lowest level any directive enables.
func (d Directives) Min() slog.Level {
	lowest := d.Default
	for _, l := range d.Components {
		if l < lowest {
			lowest = l
		}
	}
	return lowest
}

// LevelFor returns the minimum level for a component.
func (d Directives) LevelFor(component string) slog.Level {
	if l, ok := d.Components[component]; ok {
		return l
	}
	return d.Default
}

// Handler filters records by the level configured for their component.
type Handler struct {
	next       slog.Handler
	directives Directives
	component  string
}

// New wraps next. next should accept every level down to d.Min().
func New(next slog.Handler, d Directives) *Handler {
	return &Handler{next: next, directives: d}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.directives.LevelFor(h.component) && h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	for _, a := range attrs {
		if a.Key == ComponentKey {
			clone.component = a.Value.String()
		}
	}
	clone.next = h.next.WithAttrs(attrs)
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
