package progress

import (
	"errors"
	"strings"
	"sync"
)

var ErrAlreadyRunning = errors.New("a packaging run is already active")

const DefaultTickIncrement = 2

// Lines containing DefaultNudgeMarker bump the current stage by
// DefaultNudgeIncrement points.
const (
	DefaultNudgeMarker    = "Progress"
	DefaultNudgeIncrement = 5
)

// State is the mutable progress of one run. The overall percentage is
// always derived from it and never stored.
type State struct {
	StageIndex    int
	StageProgress int
}

type RunCompleted struct {
	ArtifactPath string
}

// Update describes the effect of one line or tick.
type Update struct {
	Percent   int
	Changed   bool
	Entered   *Stage
	Completed *RunCompleted
}

type Tracker struct {
	model          *Model
	increment      int
	nudgeMarker    string
	nudgeIncrement int

	mu        sync.Mutex
	state     State
	active    bool
	completed bool
	halted    bool
	artifact  string
	percent   int
}

func NewTracker(model *Model, tickIncrement int) *Tracker {
	if model == nil {
		model = MustDefaultModel()
	}
	if tickIncrement <= 0 {
		tickIncrement = DefaultTickIncrement
	}
	return &Tracker{
		model:          model,
		increment:      tickIncrement,
		nudgeMarker:    DefaultNudgeMarker,
		nudgeIncrement: DefaultNudgeIncrement,
	}
}

// SetLineNudge replaces the per-line nudge. An empty marker or a
// non-positive increment turns it off.
func (t *Tracker) SetLineNudge(marker string, increment int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if marker == "" || increment <= 0 {
		t.nudgeMarker, t.nudgeIncrement = "", 0
		return
	}
	t.nudgeMarker, t.nudgeIncrement = marker, increment
}

func (t *Tracker) Model() *Model {
	return t.model
}

func (t *Tracker) StartRun() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return ErrAlreadyRunning
	}
	t.state = State{}
	t.active = true
	t.completed = false
	t.halted = false
	t.artifact = ""
	t.percent = t.overallLocked()
	return nil
}

func (t *Tracker) OnOutputLine(line string) Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	update := Update{Percent: t.percent}
	if !t.active {
		return update
	}

	if stage, ok := t.model.MatchFrom(line, t.state.StageIndex); ok && stage.Index > t.state.StageIndex {
		t.enterLocked(stage.Index, 0)
		entered := stage
		update.Entered = &entered
	}

	// The nudge never moves to the next stage; only markers and ticks do.
	if t.nudgeMarker != "" && !t.completed && strings.Contains(line, t.nudgeMarker) {
		t.state.StageProgress = clampProgress(t.state.StageProgress + t.nudgeIncrement)
	}

	if artifact, ok := t.model.FinalArtifact(line); ok && !t.completed {
		last := t.model.LastIndex()
		if t.state.StageIndex != last {
			entered := t.model.Stage(last)
			update.Entered = &entered
		}
		t.enterLocked(last, 100)
		t.completed = true
		t.artifact = artifact
		update.Completed = &RunCompleted{ArtifactPath: artifact}
	}

	return t.finishLocked(update)
}

// OnTick nudges the current stage forward. Reaching 100% on the last stage
// halts ticking but is not a completion signal.
func (t *Tracker) OnTick() Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	update := Update{Percent: t.percent}
	if !t.active || t.completed || t.halted {
		return update
	}

	t.state.StageProgress = clampProgress(t.state.StageProgress + t.increment)
	if t.state.StageProgress >= 100 {
		if t.state.StageIndex < t.model.LastIndex() {
			t.enterLocked(t.state.StageIndex+1, 0)
			entered := t.model.Stage(t.state.StageIndex)
			update.Entered = &entered
		} else {
			t.halted = true
		}
	}

	return t.finishLocked(update)
}

// EndRun closes the run and returns the final percentage: 100 on success,
// the last computed value otherwise.
func (t *Tracker) EndRun(success bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	if success {
		t.state = State{StageIndex: t.model.LastIndex(), StageProgress: 100}
		t.percent = t.overallLocked()
	}
	return t.percent
}

func (t *Tracker) OverallPercent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overallLocked()
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) CurrentStage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Stage(t.state.StageIndex)
}

func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

func (t *Tracker) Artifact() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.artifact
}

// enterLocked only ever moves the index forward.
func (t *Tracker) enterLocked(index int, stageProgress int) {
	if index < t.state.StageIndex {
		return
	}
	if index > t.model.LastIndex() {
		index = t.model.LastIndex()
	}
	t.state.StageIndex = index
	t.state.StageProgress = clampProgress(stageProgress)
}

func (t *Tracker) finishLocked(update Update) Update {
	percent := t.overallLocked()
	update.Changed = percent != t.percent
	update.Percent = percent
	t.percent = percent
	return update
}

func (t *Tracker) overallLocked() int {
	return OverallPercent(t.model, t.state)
}

// OverallPercent blends completed stage weights with the weighted share of
// the current stage, rounded down.
func OverallPercent(model *Model, state State) int {
	index := state.StageIndex
	if index < 0 {
		index = 0
	}
	if index > model.LastIndex() {
		index = model.LastIndex()
	}
	current := model.Stage(index).Weight * clampProgress(state.StageProgress)
	percent := (model.weightBefore(index)*100 + current) / 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func clampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
