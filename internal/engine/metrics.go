package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

const (
	metricRunDuration  = "npk.run.duration"
	metricRunCompleted = "npk.run.completed"
	metricRunFailed    = "npk.run.failed"
	metricRunCancelled = "npk.run.cancelled"
	metricStagePrefix  = "npk.stage."
	metricStageSuffix  = ".duration"
)

type RunMetrics struct {
	registry metrics.Registry
}

func NewRunMetrics(registry metrics.Registry) *RunMetrics {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &RunMetrics{registry: registry}
}

func (m *RunMetrics) RunTimer(d time.Duration) {
	m.timer(metricRunDuration).Update(d)
}

func (m *RunMetrics) StageTimer(stage string, d time.Duration) {
	m.timer(fmt.Sprintf("%s%s%s", metricStagePrefix, stage, metricStageSuffix)).Update(d)
}

func (m *RunMetrics) MarkCompleted() {
	m.meter(metricRunCompleted).Mark(1)
}

func (m *RunMetrics) MarkFailed() {
	m.meter(metricRunFailed).Mark(1)
}

func (m *RunMetrics) MarkCancelled() {
	m.meter(metricRunCancelled).Mark(1)
}

// StageTotals returns the accumulated time per stage, ordered by name.
func (m *RunMetrics) StageTotals() []StageTiming {
	totals := []StageTiming{}
	m.registry.Each(func(name string, metric interface{}) {
		timer, ok := metric.(metrics.Timer)
		if !ok || !strings.HasPrefix(name, metricStagePrefix) || !strings.HasSuffix(name, metricStageSuffix) {
			return
		}
		stage := strings.TrimSuffix(strings.TrimPrefix(name, metricStagePrefix), metricStageSuffix)
		totals = append(totals, StageTiming{Name: stage, Duration: time.Duration(timer.Sum())})
	})
	sort.Slice(totals, func(i, j int) bool { return totals[i].Name < totals[j].Name })
	return totals
}

// Count reports how many times a meter or timer was updated.
func (m *RunMetrics) Count(name string) int64 {
	switch metric := m.registry.Get(name).(type) {
	case metrics.Meter:
		return metric.Count()
	case metrics.Timer:
		return metric.Count()
	default:
		return 0
	}
}

// RunTotal is the summed duration of every recorded run.
func (m *RunMetrics) RunTotal() time.Duration {
	if timer, ok := m.registry.Get(metricRunDuration).(metrics.Timer); ok {
		return time.Duration(timer.Sum())
	}
	return 0
}

// Snapshot flattens the registry for event details: meters report their
// count and timers their summed milliseconds.
func (m *RunMetrics) Snapshot() map[string]int64 {
	out := map[string]int64{}
	m.registry.Each(func(name string, metric interface{}) {
		switch metric := metric.(type) {
		case metrics.Meter:
			out[name] = metric.Count()
		case metrics.Timer:
			out[name+"_ms"] = time.Duration(metric.Sum()).Milliseconds()
		}
	})
	return out
}

func (m *RunMetrics) timer(name string) metrics.Timer {
	return metrics.GetOrRegisterTimer(name, m.registry)
}

func (m *RunMetrics) meter(name string) metrics.Meter {
	return metrics.GetOrRegisterMeter(name, m.registry)
}
