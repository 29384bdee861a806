package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"venvup/internal/config"
	"venvup/internal/python"
)

// minPythonMinor is the oldest 3.x release that ships both the venv
// and ensurepip modules
const minPythonMinor = 4

// CheckStatus classifies a single prerequisite check
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn" // usable, but worth attention
	CheckFail CheckStatus = "fail" // bootstrap cannot succeed
)

// Check is one prerequisite verdict
type Check struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// HostInfo carries the machine facts shown alongside the checks
type HostInfo struct {
	Hostname   string `json:"hostname"`
	OS         string `json:"os"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	CPUs       int    `json:"cpus"`
	TotalMemMB uint64 `json:"total_mem_mb"`
}

// Report is the outcome of a full doctor pass
type Report struct {
	Checks []Check  `json:"checks"`
	Host   HostInfo `json:"host"`
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
}

// Failed reports whether any check failed outright
func (r *Report) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == CheckFail {
			return true
		}
	}
	return false
}

// Warnings returns how many checks carry a warning
func (r *Report) Warnings() int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == CheckWarn {
			n++
		}
	}
	return n
}

// Doctor runs the prerequisite checks for a project
type Doctor struct {
	projectDir string
	cfg        *config.Config
	executor   python.Executor
}

// New creates a Doctor for the given project
func New(projectDir string, cfg *config.Config) *Doctor {
	return NewWithExecutor(projectDir, cfg, python.DefaultExecutor)
}

// NewWithExecutor creates a Doctor with a custom executor (for testing)
func NewWithExecutor(projectDir string, cfg *config.Config, executor python.Executor) *Doctor {
	return &Doctor{
		projectDir: projectDir,
		cfg:        cfg,
		executor:   executor,
	}
}

// Run executes every check in order and gathers host facts
func (d *Doctor) Run(ctx context.Context) *Report {
	report := &Report{Host: collectHost(ctx)}

	interp := d.checkInterpreter(report)
	d.checkVenvModule(report, interp)
	d.checkProjectWritable(report)
	d.checkEntrypoint(report)
	d.checkVenvState(report)
	d.checkConfig(report)

	return report
}

// checkInterpreter locates the base interpreter and verifies its version.
// Returns the interpreter so later checks can reuse it, nil when not found.
func (d *Doctor) checkInterpreter(report *Report) *python.Interpreter {
	interp, err := python.FindInterpreterWithExecutor(d.cfg.Python, d.executor)
	if err != nil {
		report.add(Check{
			Name:   "base interpreter",
			Status: CheckFail,
			Detail: err.Error(),
		})
		return nil
	}

	report.add(Check{
		Name:   "base interpreter",
		Status: CheckPass,
		Detail: fmt.Sprintf("Python %s at %s", interp.Version, interp.Path),
	})

	if interp.AtLeast(3, minPythonMinor) {
		report.add(Check{
			Name:   "interpreter version",
			Status: CheckPass,
			Detail: "Python " + interp.Version,
		})
	} else {
		report.add(Check{
			Name:   "interpreter version",
			Status: CheckFail,
			Detail: fmt.Sprintf("Python %s is too old, need 3.%d or newer", interp.Version, minPythonMinor),
		})
	}

	return interp
}

// checkVenvModule verifies the interpreter can actually build environments.
// Debian and Ubuntu ship python3 without ensurepip unless python3-venv
// is installed.
func (d *Doctor) checkVenvModule(report *Report, interp *python.Interpreter) {
	if interp == nil {
		report.add(Check{
			Name:   "venv module",
			Status: CheckFail,
			Detail: "skipped, no interpreter found",
		})
		return
	}

	if err := d.executor.RunSilent(d.projectDir, interp.Path, "-c", "import venv, ensurepip"); err != nil {
		report.add(Check{
			Name:   "venv module",
			Status: CheckFail,
			Detail: "venv or ensurepip not importable, install the python3-venv package",
		})
		return
	}

	report.add(Check{
		Name:   "venv module",
		Status: CheckPass,
		Detail: "venv and ensurepip importable",
	})
}

// checkProjectWritable verifies environments can be created in the project
func (d *Doctor) checkProjectWritable(report *Report) {
	f, err := os.CreateTemp(d.projectDir, ".venvup-write-*")
	if err != nil {
		report.add(Check{
			Name:   "project directory",
			Status: CheckFail,
			Detail: fmt.Sprintf("not writable: %v", err),
		})
		return
	}
	f.Close()
	os.Remove(f.Name())

	report.add(Check{
		Name:   "project directory",
		Status: CheckPass,
		Detail: d.projectDir,
	})
}

// checkEntrypoint verifies the configured entry point is a real file
func (d *Doctor) checkEntrypoint(report *Report) {
	path := filepath.Join(d.projectDir, d.cfg.Entrypoint)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		report.add(Check{
			Name:   "entry point",
			Status: CheckFail,
			Detail: fmt.Sprintf("%s not found in project", d.cfg.Entrypoint),
		})
		return
	}

	report.add(Check{
		Name:   "entry point",
		Status: CheckPass,
		Detail: d.cfg.Entrypoint,
	})
}

// checkVenvState inspects the existing environment without touching it.
// A missing environment is only a warning since the next run creates it.
func (d *Doctor) checkVenvState(report *Report) {
	m := python.NewManagerWithExecutor(d.projectDir, d.cfg.Venv, d.executor)

	err := m.Validate()
	switch {
	case err == nil:
		report.add(Check{
			Name:   "virtual environment",
			Status: CheckPass,
			Detail: m.Path(),
		})
	case errors.Is(err, python.ErrVenvMissing):
		report.add(Check{
			Name:   "virtual environment",
			Status: CheckWarn,
			Detail: "not created yet, the next run will create it",
		})
	default:
		report.add(Check{
			Name:   "virtual environment",
			Status: CheckFail,
			Detail: err.Error() + ", remove the directory and run again",
		})
	}
}

// checkConfig validates the loaded configuration
func (d *Doctor) checkConfig(report *Report) {
	if err := d.cfg.Validate(); err != nil {
		report.add(Check{
			Name:   "configuration",
			Status: CheckFail,
			Detail: err.Error(),
		})
		return
	}

	if warnings := d.cfg.Warnings(); len(warnings) > 0 {
		report.add(Check{
			Name:   "configuration",
			Status: CheckWarn,
			Detail: strings.Join(warnings, "; "),
		})
		return
	}

	report.add(Check{
		Name:   "configuration",
		Status: CheckPass,
		Detail: config.ConfigFileName + " valid",
	})
}

// collectHost gathers machine facts, leaving fields zero on probe errors
func collectHost(ctx context.Context) HostInfo {
	info := HostInfo{}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.OS = h.OS
		info.Platform = h.Platform
		info.Arch = h.KernelArch
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemMB = vm.Total / (1024 * 1024)
	}

	return info
}
