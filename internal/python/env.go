package python

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment holds the variables that activate a virtual environment for
// child processes. Activation is session-scoped: nothing is written to the
// parent shell and nothing persists after the process exits.
type Environment struct {
	// VenvPath is the absolute environment path, exported as VIRTUAL_ENV
	VenvPath string
	// BinDir is the environment's script directory, prepended to PATH
	BinDir string
	// Prompt is the shell prompt marker, exported as VIRTUAL_ENV_PROMPT
	Prompt string
}

// BuildEnvironment creates an Environment for the given venv layout
func BuildEnvironment(venvPath, binDir string) *Environment {
	return &Environment{
		VenvPath: venvPath,
		BinDir:   binDir,
		Prompt:   fmt.Sprintf("(%s) ", filepath.Base(venvPath)),
	}
}

// ToEnvVars converts the Environment to a slice of KEY=VALUE strings
func (e *Environment) ToEnvVars() []string {
	return []string{
		fmt.Sprintf("VIRTUAL_ENV=%s", e.VenvPath),
		fmt.Sprintf("VIRTUAL_ENV_PROMPT=%s", e.Prompt),
	}
}

// Apply merges the activation into a base environment, usually os.Environ().
// The script directory is prepended to PATH and PYTHONHOME is dropped, the
// same way the standard activate script does it.
func (e *Environment) Apply(base []string) []string {
	result := make([]string, 0, len(base)+3)
	pathSeen := false

	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		switch {
		case strings.EqualFold(key, "PYTHONHOME"):
			continue
		case key == "VIRTUAL_ENV" || key == "VIRTUAL_ENV_PROMPT":
			continue
		case strings.EqualFold(key, "PATH"):
			result = append(result, fmt.Sprintf("%s=%s%c%s", key, e.BinDir, os.PathListSeparator, kv[len(key)+1:]))
			pathSeen = true
		default:
			result = append(result, kv)
		}
	}

	if !pathSeen {
		result = append(result, fmt.Sprintf("PATH=%s", e.BinDir))
	}
	return append(result, e.ToEnvVars()...)
}

// ToEnvFile converts the Environment to shell-sourceable file content
func (e *Environment) ToEnvFile() string {
	var sb strings.Builder
	sb.WriteString("# venvup activation environment\n")
	sb.WriteString("# Source this file to activate the environment in a shell\n\n")
	sb.WriteString(fmt.Sprintf("export VIRTUAL_ENV=%q\n", e.VenvPath))
	sb.WriteString(fmt.Sprintf("export VIRTUAL_ENV_PROMPT=%q\n", e.Prompt))
	sb.WriteString(fmt.Sprintf("export PATH=%q:$PATH\n", e.BinDir))
	sb.WriteString("unset PYTHONHOME\n")
	return sb.String()
}
