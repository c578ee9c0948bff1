package obs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfilingReportAggregatesMetricsAndSpans(t *testing.T) {
	m := NewMetrics()
	m.RecordPlanFired(context.Background(), "normal", 10*time.Millisecond, nil)
	m.RecordPlanFired(context.Background(), "normal", 20*time.Millisecond, assert.AnError)

	sm := NewSpanManager()
	_, runSpan := sm.StartRunSpan(context.Background(), "run-1")
	sm.EndSpanWithError(runSpan, nil)

	report := BuildProfilingReport("run-1", 5*time.Second, 12.5, 1, m, sm)

	assert.Equal(t, "run-1", report.ExecutionStatistics.RunID)
	assert.Equal(t, int64(5000), report.ExecutionStatistics.DurationMs)
	assert.Equal(t, 12.5, report.ExecutionStatistics.FinalTime)
	assert.Equal(t, 1, report.ExecutionStatistics.PoisonCount)
	assert.Equal(t, int64(2), report.ExecutionStatistics.PlansFired)
	assert.NotEmpty(t, report.NamedCounts)
	assert.NotEmpty(t, report.NamedSpans)
	assert.Contains(t, report.ComputedStatistics, "plan_error_rate")
	assert.Equal(t, 0.5, report.ComputedStatistics["plan_error_rate"].Value)
}

func TestWriteProfilingJSONWritesFile(t *testing.T) {
	dir := t.TempDir()
	report := ProfilingReport{
		ExecutionStatistics: ExecutionStatistics{RunID: "run-1", PlansFired: 3},
		ComputedStatistics:  map[string]ComputedStatistic{},
	}

	require.NoError(t, WriteProfilingJSON(dir, "run1_", true, report))

	data, err := os.ReadFile(filepath.Join(dir, "run1_profiling.json"))
	require.NoError(t, err)

	var decoded ProfilingReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.ExecutionStatistics.RunID)
}

func TestWriteProfilingJSONRefusesOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1_profiling.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	err := WriteProfilingJSON(dir, "run1_", false, ProfilingReport{})
	assert.Error(t, err)
}
