package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONEmitterSerializesEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	emitter := NewJSONEmitter(buf)

	event := Event{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     LevelInfo,
		Event:     EventStageEntered,
		RunID:     "run-1",
		Message:   "CompileMain",
		Details: map[string]any{
			"index": 1,
		},
	}

	if err := emitter.Emit(event); err != nil {
		t.Fatalf("emit: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var decoded Event
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}

	if decoded.Event != EventStageEntered {
		t.Fatalf("unexpected event name: %v", decoded.Event)
	}
	if decoded.RunID != "run-1" {
		t.Fatalf("unexpected run id: %v", decoded.RunID)
	}
	if index, ok := decoded.IntDetail("index"); !ok || index != 1 {
		t.Fatalf("expected index detail 1 after decode, got %v (ok=%v)", index, ok)
	}
}

func TestHumanEmitterRouting(t *testing.T) {
	tests := []struct {
		name       string
		quiet      bool
		verbose    bool
		event      Event
		wantStdout string
		wantStderr string
	}{
		{name: "output line hidden by default", event: Event{Level: LevelInfo, Event: EventOutputLine, Message: "Nuitka: Compiling module"}},
		{name: "output line verbose", verbose: true, event: Event{Level: LevelInfo, Event: EventOutputLine, Message: "Nuitka: Compiling module"}, wantStdout: "Nuitka: Compiling module\n"},
		{name: "warning line", event: Event{Level: LevelWarn, Event: EventOutputLine, Message: "Nuitka:WARNING: slow"}, wantStderr: "WARN: Nuitka:WARNING: slow\n"},
		{name: "quiet warning", quiet: true, event: Event{Level: LevelWarn, Event: EventOutputLine, Message: "x"}},
		{name: "error always", quiet: true, event: Event{Level: LevelError, Event: EventRunFailed, Message: "exit 1"}, wantStderr: "ERROR: exit 1\n"},
		{name: "stage", event: Event{Level: LevelInfo, Event: EventStageEntered, Message: "CodeGen"}, wantStdout: "=== CodeGen ===\n"},
		{name: "progress never", verbose: true, event: Event{Level: LevelInfo, Event: EventProgressChanged, Message: "42%"}},
		{name: "quiet summary", quiet: true, event: Event{Level: LevelInfo, Event: EventRunFinished, Message: "done"}, wantStdout: "done\n"},
		{name: "debug hidden", event: Event{Level: LevelDebug, Event: EventRunStarted, Message: "cmd"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			emitter := NewHumanEmitter(stdout, stderr, tc.quiet, tc.verbose)
			if err := emitter.Emit(tc.event); err != nil {
				t.Fatalf("emit: %v", err)
			}
			if stdout.String() != tc.wantStdout {
				t.Fatalf("stdout = %q, want %q", stdout.String(), tc.wantStdout)
			}
			if stderr.String() != tc.wantStderr {
				t.Fatalf("stderr = %q, want %q", stderr.String(), tc.wantStderr)
			}
		})
	}
}
