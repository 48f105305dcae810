//go:build !windows

package watch

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// StopDaemon sends SIGTERM so the watcher can remove its own state, and
// falls back to SIGKILL when the signal is refused.
func StopDaemon(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			RemoveState(pid)
			return nil
		}
		if err := p.Kill(); err != nil {
			return err
		}
	}
	RemoveState(pid)
	return nil
}

// isProcessRunning probes pid with signal 0.
func isProcessRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	return err == nil && p.Signal(syscall.Signal(0)) == nil
}
