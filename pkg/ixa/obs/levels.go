package obs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Levels is a per-module minimum log level, the Go equivalent of the
// source's --log-level module=LEVEL comma-list.
type Levels map[string]slog.Level

// ParseLevels parses a comma-separated list of module=LEVEL pairs
// ("scheduler=Debug,query=Trace") into a Levels map. LEVEL is
// case-insensitive and one of Trace, Debug, Info, Warn, Error; Trace maps
// to a slog level one step below Debug, matching the source's five-level
// scheme against slog's four.
func ParseLevels(spec string) (Levels, error) {
	m := make(Levels)
	if spec == "" {
		return m, nil
	}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("obs: malformed --log-level entry %q, want module=LEVEL", pair)
		}
		lvl, err := parseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("obs: module %q: %w", k, err)
		}
		m[strings.TrimSpace(k)] = lvl
	}
	return m, nil
}

// LevelTrace sits one step below slog.LevelDebug, the finest verbosity
// named by the --log-level spec.
const LevelTrace = slog.Level(-8)

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unrecognized level %q", s)
	}
}

// VerbosityLevel maps the -v/-vv/-vvv shorthand to a slog.Level, applied
// as the default for any module not named in --log-level.
func VerbosityLevel(count int) slog.Level {
	switch {
	case count <= 0:
		return slog.LevelWarn
	case count == 1:
		return slog.LevelInfo
	case count == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// ModuleHandler wraps a slog.Handler, filtering records by the minimum
// level configured for the "module" attribute, falling back to a default
// level for modules with no specific entry.
type ModuleHandler struct {
	next     slog.Handler
	levels   Levels
	fallback slog.Level
}

// NewModuleHandler builds a ModuleHandler delegating emission to next.
func NewModuleHandler(next slog.Handler, levels Levels, fallback slog.Level) *ModuleHandler {
	return &ModuleHandler{next: next, levels: levels, fallback: fallback}
}

func (h *ModuleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.fallback || len(h.levels) > 0
}

func (h *ModuleHandler) Handle(ctx context.Context, r slog.Record) error {
	module := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" {
			module = a.Value.String()
			return false
		}
		return true
	})

	min := h.fallback
	if lvl, ok := h.levels[module]; ok {
		min = lvl
	}
	if r.Level < min {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ModuleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ModuleHandler{next: h.next.WithAttrs(attrs), levels: h.levels, fallback: h.fallback}
}

func (h *ModuleHandler) WithGroup(name string) slog.Handler {
	return &ModuleHandler{next: h.next.WithGroup(name), levels: h.levels, fallback: h.fallback}
}
