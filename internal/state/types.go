package state

import (
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
)

// Schema versions - increment when structure changes
const (
	CurrentRunVersion = 1
)

// DefaultHistoryLimit is how many archived runs are kept
const DefaultHistoryLimit = 20

// Sentinel errors
var (
	ErrNoRun      = errors.New("no recorded run")
	ErrRunExists  = errors.New("run record already exists")
	ErrRunActive  = errors.New("a bootstrap run is already in progress")
	ErrRunCorrupt = errors.New("run record is not valid JSON")
)

// RunStatus represents bootstrap run lifecycle
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"   // preparation steps in progress
	RunStatusLaunched  RunStatus = "launched"  // entry point started
	RunStatusCompleted RunStatus = "completed" // sequence finished, entry point exited
	RunStatusFailed    RunStatus = "failed"    // aborted before the entry point ran
)

// Run represents one bootstrap run of a project
type Run struct {
	Version       int       `json:"version"`
	ID            string    `json:"id"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	PID           int       `json:"pid"` // Bootstrapper process ID
	EntryPID      int       `json:"entry_pid,omitempty"`
	ProjectRoot   string    `json:"project_root"`
	VenvPath      string    `json:"venv_path"`
	VenvCreated   bool      `json:"venv_created"`
	PythonVersion string    `json:"python_version,omitempty"`
	Packages      []string  `json:"packages,omitempty"` // requirements installed so far
	ExitCode      int       `json:"exit_code"`
	FailedStep    string    `json:"failed_step,omitempty"`
}

// NewRun creates a run record for the current process
func NewRun(projectRoot, venvPath string) *Run {
	return &Run{
		Version:     CurrentRunVersion,
		ID:          uuid.New().String(),
		Status:      RunStatusRunning,
		StartedAt:   time.Now(),
		PID:         os.Getpid(),
		ProjectRoot: projectRoot,
		VenvPath:    venvPath,
	}
}

// Finished reports whether the run reached a terminal status
func (r *Run) Finished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// HistoryResult contains archived runs and any load errors
type HistoryResult struct {
	Runs   []*Run
	Errors []error
}
