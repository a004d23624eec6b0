//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
)

// Nuitka fans out into scons and one compiler per job; all of them share
// the child's process group so one signal reaches the whole tree.
func configureCommandForTermination(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateCommand(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if pid := cmd.Process.Pid; pid > 0 {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
	_ = cmd.Process.Kill()
}
