package python

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Executor runs interpreter commands
type Executor interface {
	// Run executes a command and returns its trimmed stdout
	Run(dir string, name string, args ...string) (string, error)
	// RunSilent executes a command, discarding output
	RunSilent(dir string, name string, args ...string) error
}

// DefaultExecutor runs commands on the host system
var DefaultExecutor Executor = systemExecutor{}

type systemExecutor struct{}

func (systemExecutor) Run(dir string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir // empty inherits the current directory

	out, err := cmd.Output()
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) && len(exit.Stderr) > 0 {
			return "", fmt.Errorf("%s %s failed: %w\n%s", filepath.Base(name), strings.Join(args, " "), err, strings.TrimSpace(string(exit.Stderr)))
		}
		return "", fmt.Errorf("%s %s failed: %w", filepath.Base(name), strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e systemExecutor) RunSilent(dir string, name string, args ...string) error {
	_, err := e.Run(dir, name, args...)
	return err
}
