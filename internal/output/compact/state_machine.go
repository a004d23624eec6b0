package compact

import "sync"

type StateMachine struct {
	mu    sync.Mutex
	state RunView
}

func NewStateMachine() *StateMachine {
	m := &StateMachine{}
	m.Reset()
	return m
}

func (m *StateMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = RunView{Lifecycle: RunLifecycleIdle}
}

func (m *StateMachine) BeginRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = RunView{RunID: runID, Lifecycle: RunLifecycleRunning}
}

// EnterStage ignores stages that are behind the one already shown.
func (m *StateMachine) EnterStage(name string, index int, count int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Stage.Name != "" && index < m.state.Stage.Index {
		return false
	}
	m.state.Stage = StageView{Name: name, Index: clampCount(index), Count: clampCount(count)}
	return true
}

func (m *StateMachine) SetPercent(percent int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	clamped := int(ClampPercent(float64(percent)))
	if clamped == m.state.Percent {
		return false
	}
	m.state.Percent = clamped
	return true
}

func (m *StateMachine) CountLine(kind LineKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Lines.Total++
	switch kind {
	case LineKindWarning:
		m.state.Lines.Warnings++
	case LineKindError:
		m.state.Lines.Errors++
	}
}

func (m *StateMachine) Complete(artifact string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Lifecycle = RunLifecycleCompleted
	m.state.Artifact = artifact
	m.state.Percent = 100
}

func (m *StateMachine) Fail(exitCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Lifecycle = RunLifecycleFailed
	m.state.ExitCode = exitCode
}

func (m *StateMachine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Lifecycle = RunLifecycleCancelled
}

func (m *StateMachine) Snapshot() RunView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func clampCount(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
