package python

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// DefaultVenvDir is the conventional environment directory name
	DefaultVenvDir = "venv"
	// venvMarkerFile identifies a directory as a virtual environment
	venvMarkerFile = "pyvenv.cfg"
)

// Manager handles creation and inspection of a project's virtual environment.
// Existing environments are never recreated or repaired: if the directory is
// present, it is used as-is, and a broken one must be removed by hand.
type Manager struct {
	projectDir string
	venvPath   string // always absolute
	executor   Executor
}

// NewManager creates a Manager for the project's environment directory
func NewManager(projectDir, venvDir string) *Manager {
	return NewManagerWithExecutor(projectDir, venvDir, DefaultExecutor)
}

// NewManagerWithExecutor creates a Manager with a custom executor (for testing)
func NewManagerWithExecutor(projectDir, venvDir string, executor Executor) *Manager {
	if venvDir == "" {
		venvDir = DefaultVenvDir
	}
	venvPath := venvDir
	if !filepath.IsAbs(venvPath) {
		venvPath = filepath.Join(projectDir, venvDir)
	}
	return &Manager{
		projectDir: projectDir,
		venvPath:   venvPath,
		executor:   executor,
	}
}

// Path returns the absolute path of the virtual environment
func (m *Manager) Path() string {
	return m.venvPath
}

// BinDir returns the environment's script directory
func (m *Manager) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(m.venvPath, "Scripts")
	}
	return filepath.Join(m.venvPath, "bin")
}

// InterpreterPath returns the path of the environment's python binary
func (m *Manager) InterpreterPath() string {
	name := "python"
	if runtime.GOOS == "windows" {
		name = "python.exe"
	}
	return filepath.Join(m.BinDir(), name)
}

// Exists reports whether the environment directory is present.
// Presence alone decides whether creation is skipped; see Validate for health.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.venvPath)
	return err == nil && info.IsDir()
}

// IsVenv reports whether the directory carries the pyvenv.cfg marker
// every real virtual environment has at its root
func (m *Manager) IsVenv() bool {
	info, err := os.Stat(filepath.Join(m.venvPath, venvMarkerFile))
	return err == nil && !info.IsDir()
}

// Validate checks that the environment exists and is usable.
// Returns ErrVenvMissing or ErrVenvCorrupt wrapped with detail.
func (m *Manager) Validate() error {
	if !m.Exists() {
		return fmt.Errorf("%w: %s", ErrVenvMissing, m.venvPath)
	}
	if !m.IsVenv() {
		return fmt.Errorf("%w: %s has no %s", ErrVenvCorrupt, m.venvPath, venvMarkerFile)
	}

	interp := m.InterpreterPath()
	info, err := os.Stat(interp)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: interpreter missing at %s", ErrVenvCorrupt, interp)
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return fmt.Errorf("%w: interpreter at %s is not executable", ErrVenvCorrupt, interp)
	}
	return nil
}

// Create builds a fresh virtual environment with the base interpreter
func (m *Manager) Create(interp *Interpreter) error {
	if _, err := m.executor.Run(m.projectDir, interp.Path, "-m", "venv", m.venvPath); err != nil {
		return fmt.Errorf("failed to create virtual environment: %w", err)
	}
	return nil
}

// Ensure creates the environment if the directory does not exist yet.
// Returns true when a new environment was created.
func (m *Manager) Ensure(interp *Interpreter) (bool, error) {
	if m.Exists() {
		return false, nil
	}
	if err := m.Create(interp); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the environment directory
func (m *Manager) Remove() error {
	if err := os.RemoveAll(m.venvPath); err != nil {
		return fmt.Errorf("failed to remove virtual environment: %w", err)
	}
	return nil
}

// PythonVersion reports the version of the environment's own interpreter
func (m *Manager) PythonVersion() (string, error) {
	out, err := m.executor.Run(m.projectDir, m.InterpreterPath(), "--version")
	if err != nil {
		return "", err
	}
	version, _, _, err := parseVersion(out)
	if err != nil {
		return "", fmt.Errorf("unexpected version output: %q", out)
	}
	return version, nil
}

// Activate validates the environment and builds its activation variables.
// A corrupt environment fails here, before anything gets installed into it.
func (m *Manager) Activate() (*Environment, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return BuildEnvironment(m.venvPath, m.BinDir()), nil
}
