package output

import "time"

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventRunStarted      EventName = "run_started"
	EventOutputLine      EventName = "output_line"
	EventStageEntered    EventName = "stage_entered"
	EventProgressChanged EventName = "progress_changed"
	EventRunCompleted    EventName = "run_completed"
	EventRunFailed       EventName = "run_failed"
	EventRunCancelled    EventName = "run_cancelled"
	EventRunFinished     EventName = "run_finished"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	RunID     string         `json:"run_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// IntDetail reads an integer detail regardless of whether the event was
// built in-process or decoded from JSON.
func (e Event) IntDetail(key string) (int, bool) {
	switch value := e.Details[key].(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

func (e Event) StringDetail(key string) string {
	value, _ := e.Details[key].(string)
	return value
}
