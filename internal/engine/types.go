package engine

import (
	"time"
)

type ExecSpec struct {
	Bin            string
	Args           []string
	Dir            string
	Env            []string
	Timeout        time.Duration
	DisplayCommand string
	// OutputEncoding names the console encoding of the child (gbk,
	// shift_jis, ...). Empty means UTF-8.
	OutputEncoding string
}

type ExecResult struct {
	ExitCode    int
	Duration    time.Duration
	Interrupted bool
	TimedOut    bool
	OutputTail  string
	Err         error
}

type StageTiming struct {
	Name     string
	Duration time.Duration
}

// RunResult summarises one supervised packaging run.
type RunResult struct {
	RunID        string
	ExitCode     int
	Percent      int
	Completed    bool
	Cancelled    bool
	TimedOut     bool
	ArtifactPath string
	Lines        int
	Duration     time.Duration
	PeakRSSBytes uint64
	Stages       []StageTiming
	OutputTail   string
}

func (r RunResult) Succeeded() bool {
	return r.ExitCode == 0 && !r.Cancelled && !r.TimedOut
}
