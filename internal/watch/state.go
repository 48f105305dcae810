package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// WatcherState is the on-disk record of a running watcher, one JSON file
// per process under StateDir.
type WatcherState struct {
	PID             int       `json:"pid"`
	Path            string    `json:"path"`
	Server          string    `json:"server,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FileCount       int       `json:"file_count"`
	FilesWithErrors int       `json:"files_with_errors"`
	LastSync        time.Time `json:"last_sync"`

	parseErrors map[string]int
}

// Record folds a batch into the state. Removed files and files that could
// not be analyzed drop out of the counts.
func (s *WatcherState) Record(b Batch) {
	if s.parseErrors == nil {
		s.parseErrors = make(map[string]int)
	}
	for _, f := range b.Files {
		if f.Removed || f.Error != "" {
			delete(s.parseErrors, f.Path)
			continue
		}
		s.parseErrors[f.Path] = f.ParseErrors
	}

	s.FileCount = len(s.parseErrors)
	s.FilesWithErrors = 0
	for _, n := range s.parseErrors {
		if n > 0 {
			s.FilesWithErrors++
		}
	}
	s.LastSync = b.At
}

// StateDir is $XDG_STATE_HOME/rice-syntax/watchers, falling back to
// ~/.local/state.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "rice-syntax", "watchers")
}

// StatePath returns the state file of the watcher with pid.
func StatePath(pid int) string {
	return filepath.Join(StateDir(), strconv.Itoa(pid)+".json")
}

// SaveState writes state atomically.
func SaveState(state *WatcherState) error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	path := StatePath(state.PID)
	tmp, err := os.CreateTemp(StateDir(), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readState(path string) (*WatcherState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state WatcherState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &state, nil
}

// LoadState reads the state of the watcher with pid.
func LoadState(pid int) (*WatcherState, error) {
	return readState(StatePath(pid))
}

// ListStates returns the live watchers, oldest first. Files left behind by
// dead processes are removed; unreadable ones are skipped.
func ListStates() ([]*WatcherState, error) {
	dir := StateDir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var states []*WatcherState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		state, err := readState(path)
		if err != nil {
			continue
		}
		if !isProcessRunning(state.PID) {
			os.Remove(path)
			continue
		}
		states = append(states, state)
	}

	slices.SortFunc(states, func(a, b *WatcherState) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return states, nil
}

// RemoveState deletes the state file of the watcher with pid.
func RemoveState(pid int) error {
	return os.Remove(StatePath(pid))
}
