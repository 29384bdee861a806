package python

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// interpreterCandidates returns the binary names to try, in order
func interpreterCandidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"python", "py"}
	}
	return []string{"python3", "python"}
}

// FindInterpreter locates a python binary to bootstrap environments with.
// If override is non-empty it is used as the binary name or path; otherwise
// the platform candidates are tried in order. Binaries that cannot report
// a parseable version are skipped.
func FindInterpreter(override string) (*Interpreter, error) {
	return FindInterpreterWithExecutor(override, DefaultExecutor)
}

// FindInterpreterWithExecutor locates an interpreter using a custom executor (for testing)
func FindInterpreterWithExecutor(override string, executor Executor) (*Interpreter, error) {
	candidates := interpreterCandidates()
	if override != "" {
		candidates = []string{override}
	}

	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		interp, err := probeInterpreter(path, executor)
		if err != nil {
			continue
		}
		return interp, nil
	}

	if override != "" {
		return nil, fmt.Errorf("%w: %q is not a runnable python", ErrInterpreterNotFound, override)
	}
	return nil, fmt.Errorf("%w: tried %s", ErrInterpreterNotFound, strings.Join(candidates, ", "))
}

// probeInterpreter runs --version and parses the result
func probeInterpreter(path string, executor Executor) (*Interpreter, error) {
	out, err := executor.Run("", path, "--version")
	if err != nil {
		return nil, err
	}

	version, major, minor, err := parseVersion(out)
	if err != nil {
		return nil, fmt.Errorf("unexpected version output from %s: %q", path, out)
	}

	return &Interpreter{
		Path:    path,
		Version: version,
		Major:   major,
		Minor:   minor,
	}, nil
}

// parseVersion extracts "3.12.4" style versions from "Python 3.12.4" output
func parseVersion(out string) (string, int, int, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "Python" {
		return "", 0, 0, fmt.Errorf("not a python version string: %q", out)
	}

	version := fields[1]
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return "", 0, 0, fmt.Errorf("malformed version: %q", version)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed major version: %q", version)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed minor version: %q", version)
	}

	return version, major, minor, nil
}
