package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{buf: &bytes.Buffer{}, level: slog.LevelDebug}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{"level": r.Level.String(), "msg": r.Message}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{buf: h.buf, level: h.level, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler { return h }

func (h *testHandler) lastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(lines[i], &m); err == nil {
			return m
		}
	}
	return nil
}

func TestEnrichLoggerBindsRunID(t *testing.T) {
	h := newTestHandler()
	enriched := EnrichLogger(slog.New(h), "run-123")
	enriched.Info("test message")

	record := h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "run-123", record["run_id"])
}

func TestEnrichLoggerNilFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, EnrichLogger(nil, "run-123"))
}

func TestScheduleLoggerLifecycle(t *testing.T) {
	h := newTestHandler()
	l := NewScheduleLogger(slog.New(h))

	l.SchedulerStart()
	record := h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "scheduler starting", record["msg"])

	l.PlanFire(3.5, "normal")
	record = h.lastRecord()
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, 3.5, record["time"])
	assert.Equal(t, "normal", record["phase"])

	l.PlanError(4.0, errors.New("boom"))
	record = h.lastRecord()
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "boom", record["error"])

	l.Shutdown("")
	record = h.lastRecord()
	assert.Equal(t, "plan queue emptied", record["reason"])

	l.Shutdown("model requested")
	record = h.lastRecord()
	assert.Equal(t, "model requested", record["reason"])
}

func TestScheduleLoggerNilIsSafe(t *testing.T) {
	var l *ScheduleLogger
	assert.NotPanics(t, func() {
		l.SchedulerStart()
		l.PlanFire(0, "first")
		l.PlanError(0, errors.New("x"))
		l.Shutdown("x")
		l.EntityCreated("Person", 1)
		l.PropertySet("Person", 1, "Age")
	})
}

func TestParseLevels(t *testing.T) {
	m, err := ParseLevels("scheduler=Debug,query=Trace")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, m["scheduler"])
	assert.Equal(t, LevelTrace, m["query"])

	_, err = ParseLevels("scheduler")
	assert.Error(t, err)

	_, err = ParseLevels("scheduler=bogus")
	assert.Error(t, err)
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, VerbosityLevel(0))
	assert.Equal(t, slog.LevelInfo, VerbosityLevel(1))
	assert.Equal(t, slog.LevelDebug, VerbosityLevel(2))
	assert.Equal(t, LevelTrace, VerbosityLevel(3))
}

func TestModuleHandlerFiltersByModule(t *testing.T) {
	h := newTestHandler()
	levels, err := ParseLevels("query=Error")
	require.NoError(t, err)

	mh := NewModuleHandler(h, levels, slog.LevelInfo)
	logger := slog.New(mh)

	logger.Debug("suppressed by query=Error", slog.String("module", "query"))
	assert.Nil(t, h.lastRecord())

	logger.Debug("suppressed by fallback Info", slog.String("module", "scheduler"))
	assert.Nil(t, h.lastRecord())

	logger.Error("passes query=Error", slog.String("module", "query"))
	record := h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "passes query=Error", record["msg"])
}
