package compact

type RunLifecycle string

const (
	RunLifecycleIdle      RunLifecycle = "idle"
	RunLifecycleRunning   RunLifecycle = "running"
	RunLifecycleCompleted RunLifecycle = "completed"
	RunLifecycleFailed    RunLifecycle = "failed"
	RunLifecycleCancelled RunLifecycle = "cancelled"
)

type StageView struct {
	Name  string
	Index int
	Count int
}

type LineCounts struct {
	Total    int
	Warnings int
	Errors   int
}

// RunView is the read-only picture of a run that the terminal display draws.
type RunView struct {
	RunID     string
	Lifecycle RunLifecycle
	Stage     StageView
	Percent   int
	Lines     LineCounts
	Artifact  string
	ExitCode  int
}
