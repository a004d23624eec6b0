//go:build windows

package engine

import (
	"context"
	"os/exec"
)

func configureCommandForTermination(cmd *exec.Cmd) {}

// terminateCommand has no process group to signal, so it snapshots the
// child's tree first and kills every member. The scons jobs and compilers
// would otherwise keep running after nuitka itself is gone.
func terminateCommand(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	tree := descendants(context.Background(), int32(cmd.Process.Pid))
	_ = cmd.Process.Kill()
	for _, proc := range tree {
		_ = proc.Kill()
	}
}
