package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Config describes how to run the entry point
type Config struct {
	// Python is the interpreter to run the script with
	Python string
	// Script is the entry point path, relative to WorkDir
	Script string
	// Args are extra arguments passed to the script
	Args []string
	// WorkDir is the directory to run in
	WorkDir string
	// Env is the complete child environment
	Env []string
}

// Result describes a finished entry point process
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Process is a started entry point
type Process struct {
	cmd       *exec.Cmd
	script    string
	startedAt time.Time
}

// Launcher starts the entry point as a blocking foreground child.
// The child inherits this process's stdin, stdout, and stderr, so it
// owns the terminal until it exits.
type Launcher struct{}

// New creates a Launcher
func New() *Launcher {
	return &Launcher{}
}

// Launch starts the entry point. The spawn itself can fail (interpreter
// gone, fork error); a script that starts and then crashes is reported
// through Wait instead.
func (l *Launcher) Launch(cfg *Config) (*Process, error) {
	if cfg.Python == "" {
		return nil, fmt.Errorf("launch: no interpreter configured")
	}
	if cfg.Script == "" {
		return nil, fmt.Errorf("launch: no entry point configured")
	}

	cmd := buildCommand(cfg)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Script, err)
	}

	return &Process{
		cmd:       cmd,
		script:    cfg.Script,
		startedAt: time.Now(),
	}, nil
}

// buildCommand assembles the entry point command with inherited stdio
func buildCommand(cfg *Config) *exec.Cmd {
	args := append([]string{cfg.Script}, cfg.Args...)
	cmd := exec.Command(cfg.Python, args...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = cfg.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// PID returns the child process ID
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait blocks until the entry point exits. A non-zero exit status is
// carried in the Result, not returned as an error.
func (p *Process) Wait() (*Result, error) {
	err := p.cmd.Wait()
	res := &Result{Duration: time.Since(p.startedAt)}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("waiting for %s: %w", filepath.Base(p.script), err)
	}

	return res, nil
}
