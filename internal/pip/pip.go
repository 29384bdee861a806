package pip

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Executor runs commands with the activated environment attached
type Executor interface {
	// Run executes a command and returns its trimmed stdout
	Run(dir string, env []string, name string, args ...string) (string, error)
}

// DefaultExecutor runs commands on the host system
var DefaultExecutor Executor = systemExecutor{}

type systemExecutor struct{}

func (systemExecutor) Run(dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir // empty inherits the current directory
	cmd.Env = env // nil inherits the process environment

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

// Package is one installed distribution as reported by pip
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Installer drives pip inside an activated virtual environment.
// Every operation runs `python -m pip ...` with the environment's own
// interpreter, so the environment's pip is always the one invoked.
type Installer struct {
	python   string // environment interpreter path
	workDir  string
	env      []string // fully-applied activation environment
	executor Executor
}

// NewInstaller creates an Installer bound to an activated environment
func NewInstaller(python, workDir string, env []string) *Installer {
	return NewInstallerWithExecutor(python, workDir, env, DefaultExecutor)
}

// NewInstallerWithExecutor creates an Installer with a custom executor (for testing)
func NewInstallerWithExecutor(python, workDir string, env []string, executor Executor) *Installer {
	return &Installer{
		python:   python,
		workDir:  workDir,
		env:      env,
		executor: executor,
	}
}

// Upgrade brings pip itself to the latest version
func (i *Installer) Upgrade() error {
	if _, err := i.run("install", "--upgrade", "pip"); err != nil {
		return fmt.Errorf("failed to upgrade pip: %w", err)
	}
	return nil
}

// Install installs a single requirement. Unpinned names resolve to
// whatever the index currently serves.
func (i *Installer) Install(req string) error {
	if strings.TrimSpace(req) == "" {
		return fmt.Errorf("empty package requirement")
	}
	if _, err := i.run("install", req); err != nil {
		return fmt.Errorf("failed to install %s: %w", req, err)
	}
	return nil
}

// List returns the packages installed in the environment
func (i *Installer) List() ([]Package, error) {
	out, err := i.run("list", "--format=json")
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	var pkgs []Package
	if err := json.Unmarshal([]byte(out), &pkgs); err != nil {
		return nil, fmt.Errorf("unexpected pip list output: %w", err)
	}
	return pkgs, nil
}

// Version reports pip's own version line
func (i *Installer) Version() (string, error) {
	out, err := i.run("--version")
	if err != nil {
		return "", fmt.Errorf("failed to get pip version: %w", err)
	}
	return out, nil
}

func (i *Installer) run(args ...string) (string, error) {
	full := append([]string{"-m", "pip"}, args...)
	return i.executor.Run(i.workDir, i.env, i.python, full...)
}

// NormalizeName lowercases a distribution name and collapses runs of
// dot, dash, and underscore to a single dash, the way package indexes
// do, so names compare regardless of registered spelling
func NormalizeName(name string) string {
	var sb strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !lastSep {
				sb.WriteByte('-')
			}
			lastSep = true
			continue
		}
		sb.WriteRune(r)
		lastSep = false
	}
	return sb.String()
}
