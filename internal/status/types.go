package status

import "time"

// Status aggregates the current state of a venvup project
type Status struct {
	Project   string        `json:"project"`
	Venv      VenvStatus    `json:"venv"`
	Packages  PackageStatus `json:"packages"`
	Run       RunStatus     `json:"run"`
	App       AppStatus     `json:"app"`
	Timestamp time.Time     `json:"timestamp"`
}

// VenvStatus describes the virtual environment
type VenvStatus struct {
	Present       bool   `json:"present"`
	Healthy       bool   `json:"healthy"`
	Path          string `json:"path"`
	PythonVersion string `json:"python_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Package is one installed distribution
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RequiredPackage marks whether a configured requirement is installed
type RequiredPackage struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
}

// PackageStatus compares installed packages against the configured set
type PackageStatus struct {
	PipVersion string            `json:"pip_version,omitempty"`
	Installed  []Package         `json:"installed,omitempty"`
	Required   []RequiredPackage `json:"required"`
	Error      string            `json:"error,omitempty"`
}

// Missing returns how many required packages are not installed
func (p PackageStatus) Missing() int {
	missing := 0
	for _, r := range p.Required {
		if !r.Installed {
			missing++
		}
	}
	return missing
}

// Satisfied reports whether every required package is installed
func (p PackageStatus) Satisfied() bool {
	return len(p.Required) > 0 && p.Missing() == 0
}

// RunStatus summarizes the recorded bootstrap run
type RunStatus struct {
	Exists     bool      `json:"exists"`
	Active     bool      `json:"active"`
	ID         string    `json:"id,omitempty"`
	Status     string    `json:"status,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	ExitCode   int       `json:"exit_code"`
	FailedStep string    `json:"failed_step,omitempty"`
	History    int       `json:"history"` // archived run count
}

// AppStatus describes the launched application
type AppStatus struct {
	Addr      string  `json:"addr,omitempty"`
	Listening bool    `json:"listening"`
	Running   bool    `json:"running"`
	PID       int     `json:"pid,omitempty"`
	UptimeSec float64 `json:"uptime_sec,omitempty"`
	MemoryMB  float64 `json:"memory_mb,omitempty"`
}
