package status

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"venvup/internal/config"
	"venvup/internal/pip"
	"venvup/internal/python"
	"venvup/internal/state"
)

// DefaultDialTimeout bounds the app port probe
const DefaultDialTimeout = 2 * time.Second

// packageLister is the part of pip the collector needs
type packageLister interface {
	List() ([]pip.Package, error)
	Version() (string, error)
}

// Collector assembles a Status from the venv, the pip listing, the run
// record, and the app probe
type Collector struct {
	projectDir  string
	cfg         *config.Config
	venv        *python.Manager
	st          state.State
	lister      packageLister // nil means build one from the live venv
	dialTimeout time.Duration
}

// NewCollector wires a collector to the project's live environment
func NewCollector(projectDir string, cfg *config.Config) *Collector {
	return &Collector{
		projectDir:  projectDir,
		cfg:         cfg,
		venv:        python.NewManager(projectDir, cfg.Venv),
		st:          state.New(projectDir),
		dialTimeout: DefaultDialTimeout,
	}
}

// Collect fills every status section in parallel. Each section writes
// a distinct field, so the only synchronization needed is the final Wait.
func (c *Collector) Collect(ctx context.Context) (*Status, error) {
	s := &Status{
		Project:   c.cfg.Project,
		Timestamp: time.Now(),
	}

	sections := []func(){
		func() { s.Venv = c.collectVenv(ctx) },
		func() { s.Packages = c.collectPackages(ctx) },
		func() { s.Run = c.collectRun(ctx) },
		func() { s.App = c.collectApp(ctx) },
	}

	var wg sync.WaitGroup
	for _, fill := range sections {
		wg.Add(1)
		go func(fill func()) {
			defer wg.Done()
			fill()
		}(fill)
	}
	wg.Wait()

	return s, nil
}

// collectVenv inspects the virtual environment
func (c *Collector) collectVenv(ctx context.Context) VenvStatus {
	vs := VenvStatus{
		Path:    c.venv.Path(),
		Present: c.venv.Exists(),
	}

	if err := c.venv.Validate(); err != nil {
		vs.Error = err.Error()
		return vs
	}
	vs.Healthy = true

	if version, err := c.venv.PythonVersion(); err == nil {
		vs.PythonVersion = version
	}

	return vs
}

// collectPackages compares installed packages against the configured set
func (c *Collector) collectPackages(ctx context.Context) PackageStatus {
	ps := PackageStatus{}
	for _, req := range c.cfg.Packages {
		ps.Required = append(ps.Required, RequiredPackage{Name: req})
	}

	lister := c.lister
	if lister == nil {
		l, err := c.buildLister()
		if err != nil {
			ps.Error = err.Error()
			return ps
		}
		lister = l
	}

	installed, err := lister.List()
	if err != nil {
		ps.Error = err.Error()
		return ps
	}

	if v, err := lister.Version(); err == nil {
		ps.PipVersion = shortPipVersion(v)
	}

	byName := make(map[string]pip.Package, len(installed))
	for _, p := range installed {
		ps.Installed = append(ps.Installed, Package{Name: p.Name, Version: p.Version})
		byName[pip.NormalizeName(p.Name)] = p
	}

	for i, r := range ps.Required {
		if p, ok := byName[pip.NormalizeName(requirementName(r.Name))]; ok {
			ps.Required[i].Installed = true
			ps.Required[i].Version = p.Version
		}
	}

	return ps
}

// buildLister constructs a pip client for the live environment
func (c *Collector) buildLister() (packageLister, error) {
	env, err := c.venv.Activate()
	if err != nil {
		return nil, fmt.Errorf("virtual environment not usable: %w", err)
	}
	return pip.NewInstaller(c.venv.InterpreterPath(), c.projectDir, env.Apply(os.Environ())), nil
}

// collectRun summarizes the recorded bootstrap run
func (c *Collector) collectRun(ctx context.Context) RunStatus {
	rs := RunStatus{}

	if history, err := c.st.LoadHistory(); err == nil {
		rs.History = len(history.Runs)
	}

	run, err := c.st.LoadRun()
	if err != nil {
		return rs
	}

	rs.Exists = true
	rs.ID = run.ID
	rs.Status = string(run.Status)
	rs.StartedAt = run.StartedAt
	rs.FinishedAt = run.FinishedAt
	rs.ExitCode = run.ExitCode
	rs.FailedStep = run.FailedStep

	if active, err := c.st.HasActiveRun(); err == nil {
		rs.Active = active
	}

	return rs
}

// collectApp probes the configured app address and, when the entry point
// is known to be running, gathers its process stats
func (c *Collector) collectApp(ctx context.Context) AppStatus {
	app := AppStatus{}

	if c.cfg.App.Port > 0 {
		app.Addr = fmt.Sprintf("%s:%d", c.cfg.App.Host, c.cfg.App.Port)
		dialer := net.Dialer{Timeout: c.dialTimeout}
		if conn, err := dialer.DialContext(ctx, "tcp", app.Addr); err == nil {
			conn.Close()
			app.Listening = true
		}
	}

	run, err := c.st.LoadRun()
	if err != nil || run.Status != state.RunStatusLaunched || run.EntryPID <= 0 {
		return app
	}

	p, err := process.NewProcess(int32(run.EntryPID))
	if err != nil {
		return app
	}
	if running, err := p.IsRunning(); err != nil || !running {
		return app
	}

	app.Running = true
	app.PID = run.EntryPID
	if created, err := p.CreateTime(); err == nil {
		app.UptimeSec = time.Since(time.UnixMilli(created)).Seconds()
	}
	if memInfo, err := p.MemoryInfo(); err == nil && memInfo != nil {
		app.MemoryMB = float64(memInfo.RSS) / (1024 * 1024)
	}

	return app
}

// shortPipVersion trims pip's version line ("pip 24.0 from /path ...")
// down to the name and number
func shortPipVersion(line string) string {
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		return fields[0] + " " + fields[1]
	}
	return line
}

// requirementName strips any version specifier from a requirement string
func requirementName(req string) string {
	for i := 0; i < len(req); i++ {
		switch req[i] {
		case '=', '<', '>', '!', '~', ' ':
			return req[:i]
		}
	}
	return req
}
