package obs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ComputedStatistic is one entry of the profiling JSON's
// computed_statistics object: a human-readable description alongside the
// value it was computed from.
type ComputedStatistic struct {
	Description string `json:"description"`
	Value       any    `json:"value"`
}

// ExecutionStatistics is the profiling JSON's execution_statistics
// object: wall-clock facts about the run that aren't derived from any
// single named counter.
type ExecutionStatistics struct {
	RunID       string  `json:"run_id"`
	DurationMs  int64   `json:"duration_ms"`
	FinalTime   float64 `json:"final_time"`
	PlansFired  int64   `json:"plans_fired"`
	PoisonCount int     `json:"poison_count"`
}

// ProfilingReport is the full shape serialized to
// <output>/<prefix>profiling.json.
type ProfilingReport struct {
	ExecutionStatistics ExecutionStatistics          `json:"execution_statistics"`
	NamedCounts         []NamedCount                 `json:"named_counts"`
	NamedSpans          []NamedSpan                  `json:"named_spans"`
	ComputedStatistics  map[string]ComputedStatistic `json:"computed_statistics"`
}

// BuildProfilingReport assembles a ProfilingReport from a run's
// accumulated metrics and span tallies. duration, finalTime, and
// poisonCount are supplied by the caller since neither Metrics nor
// SpanManager track wall-clock run duration, virtual time, or poisoned
// plans themselves.
func BuildProfilingReport(runID string, duration time.Duration, finalTime float64, poisonCount int, m Metrics, sm SpanManager) ProfilingReport {
	snap := m.Snapshot()

	computed := map[string]ComputedStatistic{
		"mean_plan_latency_ms": {
			Description: "mean plan callback latency in milliseconds",
			Value:       meanPlanLatencyMs(sm),
		},
		"plan_error_rate": {
			Description: "fraction of fired plans that panicked",
			Value:       planErrorRate(snap),
		},
	}

	return ProfilingReport{
		ExecutionStatistics: ExecutionStatistics{
			RunID:       runID,
			DurationMs:  duration.Milliseconds(),
			FinalTime:   finalTime,
			PlansFired:  snap.PlansFired,
			PoisonCount: poisonCount,
		},
		NamedCounts:        snap.NamedCounts(),
		NamedSpans:         sm.NamedSpans(),
		ComputedStatistics: computed,
	}
}

func meanPlanLatencyMs(sm SpanManager) float64 {
	var count, totalNs int64
	for _, s := range sm.NamedSpans() {
		if len(s.Label) >= len("ixa.plan") && s.Label[:len("ixa.plan")] == "ixa.plan" {
			count += s.Count
			totalNs += s.TotalNs
		}
	}
	if count == 0 {
		return 0
	}
	return float64(totalNs) / float64(count) / 1e6
}

func planErrorRate(s Snapshot) float64 {
	if s.PlansFired == 0 {
		return 0
	}
	return float64(s.PlanErrors) / float64(s.PlansFired)
}

// WriteProfilingJSON writes report to <dir>/<prefix>profiling.json. If
// forceOverwrite is false and the file already exists, it fails instead
// of truncating it, matching report.NewFileSink's overwrite semantics.
func WriteProfilingJSON(dir, prefix string, forceOverwrite bool, report ProfilingReport) error {
	path := filepath.Join(dir, prefix+"profiling.json")
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !forceOverwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if !forceOverwrite && os.IsExist(err) {
			return fmt.Errorf("obs: %s already exists (use --force-overwrite)", path)
		}
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
