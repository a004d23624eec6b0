package engine

import (
	"testing"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsRecordsStagesAndOutcomes(t *testing.T) {
	registry := metrics.NewRegistry()
	m := NewRunMetrics(registry)

	m.StageTimer("CompileMain", 2*time.Second)
	m.StageTimer("CompileMain", time.Second)
	m.StageTimer("CodeGen", 500*time.Millisecond)
	m.RunTimer(4 * time.Second)
	m.MarkCompleted()
	m.MarkFailed()
	m.MarkFailed()

	totals := m.StageTotals()
	require.Len(t, totals, 2)
	assert.Equal(t, StageTiming{Name: "CodeGen", Duration: 500 * time.Millisecond}, totals[0])
	assert.Equal(t, StageTiming{Name: "CompileMain", Duration: 3 * time.Second}, totals[1])

	assert.Equal(t, int64(1), m.Count("npk.run.completed"))
	assert.Equal(t, int64(2), m.Count("npk.run.failed"))
	assert.Equal(t, int64(0), m.Count("npk.run.cancelled"))
	assert.Equal(t, int64(1), m.Count("npk.run.duration"))
	assert.NotNil(t, registry.Get("npk.stage.CodeGen.duration"))

	assert.Equal(t, 4*time.Second, m.RunTotal())
	assert.Equal(t, map[string]int64{
		"npk.run.completed":                 1,
		"npk.run.failed":                    2,
		"npk.run.duration_ms":               4000,
		"npk.stage.CompileMain.duration_ms": 3000,
		"npk.stage.CodeGen.duration_ms":     500,
	}, m.Snapshot())
}

func TestRunMetricsEmptyRegistry(t *testing.T) {
	m := NewRunMetrics(nil)
	assert.Empty(t, m.StageTotals())
	assert.Zero(t, m.RunTotal())
	assert.Empty(t, m.Snapshot())
}
