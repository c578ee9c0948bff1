// Package obs provides the ambient observability stack shared by every
// other package: structured logging via log/slog, metrics and tracing via
// OpenTelemetry, and the module-scoped log-level filter behind --log-level.
//
// All features are opt-in and have no-op implementations when disabled, so
// a model author who configures nothing still gets a working, silent
// Context.
package obs

import (
	"log/slog"
)

// EnrichLogger returns a new logger with run_id bound, the way every
// subsequent log line from this run identifies itself.
func EnrichLogger(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger.With(slog.String("run_id", runID))
}

// ScheduleLogger emits the scheduler's lifecycle events at the log levels
// a model author would expect: lifecycle milestones at Info, per-plan
// detail at Debug, failures at Error.
type ScheduleLogger struct {
	logger *slog.Logger
}

// NewScheduleLogger wraps logger for scheduler use. A nil logger is
// rejected by callers before reaching here; construction always succeeds.
func NewScheduleLogger(logger *slog.Logger) *ScheduleLogger {
	return &ScheduleLogger{logger: logger}
}

func (l *ScheduleLogger) SchedulerStart() {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("scheduler starting")
}

func (l *ScheduleLogger) PlanFire(t float64, phase string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("plan firing", slog.Float64("time", t), slog.String("phase", phase))
}

func (l *ScheduleLogger) PlanError(t float64, err error) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Error("plan failed", slog.Float64("time", t), slog.String("error", err.Error()))
}

func (l *ScheduleLogger) Shutdown(reason string) {
	if l == nil || l.logger == nil {
		return
	}
	if reason == "" {
		reason = "plan queue emptied"
	}
	l.logger.Info("scheduler stopped", slog.String("reason", reason))
}

func (l *ScheduleLogger) EntityCreated(entityType string, id uint64) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("entity created", slog.String("entity_type", entityType), slog.Uint64("id", id))
}

func (l *ScheduleLogger) PropertySet(entityType string, id uint64, property string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("property set",
		slog.String("entity_type", entityType),
		slog.Uint64("id", id),
		slog.String("property", property),
	)
}
