package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"
)

// State is the persistence surface for bootstrap run records
type State interface {
	// Current run
	CreateRun(r *Run) error      // Atomic create (fails if exists)
	BeginRun(r *Run) error       // Replace a finished record, fail if one is live
	SaveRun(r *Run) error        // Update existing record
	LoadRun() (*Run, error)      // Returns ErrNoRun if not found
	ClearRun() error             // Delete run file
	HasActiveRun() (bool, error) // Checks existence AND liveness

	// Run history
	ArchiveRun(r *Run) error
	LoadHistory() (*HistoryResult, error) // Partial results + errors
	PruneHistory(keep int) error
	ClearHistory() error
}

// FileState keeps run records as JSON files under the state directory
type FileState struct {
	stateDir string
}

var _ State = (*FileState)(nil)

// New returns a FileState rooted at the project's .venvup directory
func New(projectRoot string) *FileState {
	return &FileState{stateDir: filepath.Join(projectRoot, ".venvup")}
}

// NewWithDir returns a FileState over an explicit directory (for testing)
func NewWithDir(stateDir string) *FileState {
	return &FileState{stateDir: stateDir}
}

func (s *FileState) runPath() string {
	return filepath.Join(s.stateDir, "run.json")
}

func (s *FileState) historyDir() string {
	return filepath.Join(s.stateDir, "history")
}

// CreateRun writes a brand-new run record, failing with ErrRunExists
// when one is already on disk. O_EXCL makes the check-and-create atomic.
func (s *FileState) CreateRun(r *Run) error {
	if err := os.MkdirAll(s.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	r.Version = CurrentRunVersion
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	f, err := os.OpenFile(s.runPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if os.IsExist(err) {
		return ErrRunExists
	}
	if err != nil {
		return fmt.Errorf("failed to create run file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(s.runPath())
		return fmt.Errorf("failed to write run: %w", err)
	}
	return nil
}

// BeginRun replaces any finished record with a fresh one. A record held
// by a live bootstrap fails with ErrRunActive.
func (s *FileState) BeginRun(r *Run) error {
	active, err := s.HasActiveRun()
	if err != nil {
		return err
	}
	if active {
		return ErrRunActive
	}

	if err := s.ClearRun(); err != nil {
		return fmt.Errorf("failed to clear previous run: %w", err)
	}
	return s.CreateRun(r)
}

// SaveRun rewrites the current record in place (atomic replace)
func (s *FileState) SaveRun(r *Run) error {
	r.Version = CurrentRunVersion
	return s.saveJSON(s.runPath(), r)
}

// LoadRun reads the current record, ErrNoRun when none exists
func (s *FileState) LoadRun() (*Run, error) {
	var r Run
	if err := s.loadJSON(s.runPath(), &r); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRun
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	// Version 1 is the only schema in the wild, nothing to migrate yet
	return &r, nil
}

// ClearRun deletes the current record, a missing file is not an error
func (s *FileState) ClearRun() error {
	if err := os.Remove(s.runPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasActiveRun reports whether the current record belongs to a live
// bootstrap. Finished records, records left behind by crashed
// processes, and records that no longer parse all read as inactive,
// so a damaged run.json never blocks the next run or a clean.
func (s *FileState) HasActiveRun() (bool, error) {
	run, err := s.LoadRun()
	if errors.Is(err, ErrNoRun) || errors.Is(err, ErrRunCorrupt) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !run.Finished() && isProcessAlive(run.PID), nil
}

// isProcessAlive probes pid with signal 0, which tests for existence
// without delivering anything
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ArchiveRun copies a record into the history directory keyed by run ID
func (s *FileState) ArchiveRun(r *Run) error {
	if r.ID == "" {
		return fmt.Errorf("cannot archive a run without an ID")
	}
	return s.saveJSON(filepath.Join(s.historyDir(), r.ID+".json"), r)
}

// LoadHistory returns archived runs newest first. Entries that fail to
// parse are reported in HistoryResult.Errors instead of aborting the
// whole listing.
func (s *FileState) LoadHistory() (*HistoryResult, error) {
	result := &HistoryResult{}

	entries, err := os.ReadDir(s.historyDir())
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var r Run
		if err := s.loadJSON(filepath.Join(s.historyDir(), e.Name()), &r); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to load %s: %w", e.Name(), err))
			continue
		}
		result.Runs = append(result.Runs, &r)
	}

	sort.Slice(result.Runs, func(i, j int) bool {
		return result.Runs[i].StartedAt.After(result.Runs[j].StartedAt)
	})
	return result, nil
}

// PruneHistory drops archived runs beyond the newest keep entries
func (s *FileState) PruneHistory(keep int) error {
	if keep < 0 {
		keep = 0
	}
	result, err := s.LoadHistory()
	if err != nil {
		return err
	}
	if len(result.Runs) <= keep {
		return nil
	}

	for _, r := range result.Runs[keep:] {
		path := filepath.Join(s.historyDir(), r.ID+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to prune %s: %w", r.ID, err)
		}
	}
	return nil
}

// ClearHistory removes the history directory and everything in it
func (s *FileState) ClearHistory() error {
	return os.RemoveAll(s.historyDir())
}

// saveJSON writes v to path via a temp file and rename, so readers
// never observe a half-written record
func (s *FileState) saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

// loadJSON reads path into v, passing through os errors untouched so
// callers can test os.IsNotExist
func (s *FileState) loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrRunCorrupt, err)
	}
	return nil
}
