package watch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DaemonLogPath is where detached watchers write their output.
func DaemonLogPath() string {
	return filepath.Join(StateDir(), "daemon.log")
}

// StartDaemon re-executes the current binary as "watch <path>" in its own
// process group and returns the child's PID. Output goes to DaemonLogPath.
func StartDaemon(path, serverAddr string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locating executable: %w", err)
	}
	args := []string{"watch", path}
	if serverAddr != "" {
		args = append(args, "--server", serverAddr)
	}
	cmd := exec.Command(exe, args...)
	detach(cmd)

	out, err := openDaemonLog()
	if err != nil {
		return 0, err
	}
	// The child keeps its own descriptor once started.
	defer out.Close()
	cmd.Stdout, cmd.Stderr = out, out

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting watcher: %w", err)
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func openDaemonLog() (*os.File, error) {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	f, err := os.OpenFile(DaemonLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening daemon log: %w", err)
	}
	return f, nil
}

// StopAllDaemons stops every watcher with a live state file and returns
// how many it stopped. The first stop failure is returned alongside the count.
func StopAllDaemons() (int, error) {
	states, err := ListStates()
	if err != nil {
		return 0, err
	}
	var firstErr error
	stopped := 0
	for _, st := range states {
		if err := StopDaemon(st.PID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("stopping watcher %d: %w", st.PID, err)
			}
			continue
		}
		stopped++
	}
	return stopped, firstErr
}
