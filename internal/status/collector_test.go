package status

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"venvup/internal/config"
	"venvup/internal/pip"
	"venvup/internal/python"
	"venvup/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeState implements state.State in memory
type fakeState struct {
	run     *state.Run
	loadErr error
	active  bool
	history []*state.Run
}

func (f *fakeState) CreateRun(r *state.Run) error { f.run = r; return nil }
func (f *fakeState) BeginRun(r *state.Run) error  { f.run = r; return nil }
func (f *fakeState) SaveRun(r *state.Run) error   { f.run = r; return nil }

func (f *fakeState) LoadRun() (*state.Run, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.run == nil {
		return nil, state.ErrNoRun
	}
	return f.run, nil
}

func (f *fakeState) ClearRun() error             { f.run = nil; return nil }
func (f *fakeState) HasActiveRun() (bool, error) { return f.active, nil }

func (f *fakeState) ArchiveRun(r *state.Run) error {
	f.history = append(f.history, r)
	return nil
}

func (f *fakeState) LoadHistory() (*state.HistoryResult, error) {
	return &state.HistoryResult{Runs: f.history}, nil
}

func (f *fakeState) PruneHistory(keep int) error { return nil }
func (f *fakeState) ClearHistory() error         { f.history = nil; return nil }

// fakeLister implements packageLister for testing
type fakeLister struct {
	packages []pip.Package
	version  string
	err      error
}

func (f *fakeLister) List() ([]pip.Package, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.packages, nil
}

func (f *fakeLister) Version() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.version, nil
}

// fakePythonExec implements python.Executor with a canned response
type fakePythonExec struct {
	output string
	err    error
}

func (f *fakePythonExec) Run(dir string, name string, args ...string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakePythonExec) RunSilent(dir string, name string, args ...string) error {
	_, err := f.Run(dir, name, args...)
	return err
}

// testCollector creates a Collector with fake dependencies for testing
func testCollector(t *testing.T) (*Collector, *fakeState, *fakeLister) {
	t.Helper()

	dir := t.TempDir()
	st := &fakeState{}
	lister := &fakeLister{}

	cfg := config.DefaultConfig("test-project")
	cfg.App.Port = 0 // no probe unless a test opens a listener

	c := &Collector{
		projectDir:  dir,
		cfg:         cfg,
		venv:        python.NewManagerWithExecutor(dir, cfg.Venv, &fakePythonExec{output: "Python 3.12.1"}),
		st:          st,
		lister:      lister,
		dialTimeout: 200 * time.Millisecond,
	}

	return c, st, lister
}

// newHealthyVenv lays out a directory that passes environment validation
func newHealthyVenv(t *testing.T, m *python.Manager) {
	t.Helper()

	if err := os.MkdirAll(m.BinDir(), 0755); err != nil {
		t.Fatalf("Failed to create bin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(m.Path(), "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0644); err != nil {
		t.Fatalf("Failed to write venv marker: %v", err)
	}
	if err := os.WriteFile(m.InterpreterPath(), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("Failed to write interpreter: %v", err)
	}
}

func TestNewCollector(t *testing.T) {
	cfg := config.DefaultConfig("webapp")
	c := NewCollector("/some/project", cfg)

	if c.projectDir != "/some/project" {
		t.Errorf("projectDir = %q, want %q", c.projectDir, "/some/project")
	}
	if c.cfg != cfg {
		t.Error("cfg should be the config passed in")
	}
	if c.venv == nil {
		t.Error("venv manager should not be nil")
	}
	if c.st == nil {
		t.Error("state should not be nil")
	}
	if c.dialTimeout != DefaultDialTimeout {
		t.Errorf("dialTimeout = %v, want %v", c.dialTimeout, DefaultDialTimeout)
	}
}

func TestCollectVenv(t *testing.T) {
	ctx := context.Background()

	t.Run("missing environment", func(t *testing.T) {
		c, _, _ := testCollector(t)

		vs := c.collectVenv(ctx)

		if vs.Present {
			t.Error("Present = true, want false")
		}
		if vs.Healthy {
			t.Error("Healthy = true, want false")
		}
		if vs.Error == "" {
			t.Error("Error should describe the missing environment")
		}
		if vs.Path != c.venv.Path() {
			t.Errorf("Path = %q, want %q", vs.Path, c.venv.Path())
		}
	})

	t.Run("foreign directory", func(t *testing.T) {
		c, _, _ := testCollector(t)
		if err := os.MkdirAll(c.venv.Path(), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}

		vs := c.collectVenv(ctx)

		if !vs.Present {
			t.Error("Present = false, want true")
		}
		if vs.Healthy {
			t.Error("Healthy = true, want false")
		}
		if !strings.Contains(vs.Error, "pyvenv.cfg") {
			t.Errorf("Error = %q, want mention of the missing marker", vs.Error)
		}
	})

	t.Run("healthy environment", func(t *testing.T) {
		c, _, _ := testCollector(t)
		newHealthyVenv(t, c.venv)

		vs := c.collectVenv(ctx)

		if !vs.Present {
			t.Error("Present = false, want true")
		}
		if !vs.Healthy {
			t.Errorf("Healthy = false, want true (error: %q)", vs.Error)
		}
		if vs.PythonVersion != "3.12.1" {
			t.Errorf("PythonVersion = %q, want %q", vs.PythonVersion, "3.12.1")
		}
		if vs.Error != "" {
			t.Errorf("Error = %q, want empty", vs.Error)
		}
	})

	t.Run("version probe failure is not fatal", func(t *testing.T) {
		c, _, _ := testCollector(t)
		newHealthyVenv(t, c.venv)
		c.venv = python.NewManagerWithExecutor(c.projectDir, c.cfg.Venv, &fakePythonExec{err: errors.New("exec failed")})

		vs := c.collectVenv(ctx)

		if !vs.Healthy {
			t.Errorf("Healthy = false, want true (error: %q)", vs.Error)
		}
		if vs.PythonVersion != "" {
			t.Errorf("PythonVersion = %q, want empty", vs.PythonVersion)
		}
	})
}

func TestCollectPackages(t *testing.T) {
	ctx := context.Background()

	t.Run("all requirements installed", func(t *testing.T) {
		c, _, lister := testCollector(t)
		lister.packages = []pip.Package{
			{Name: "Flask", Version: "3.0.2"},
			{Name: "Flask-SQLAlchemy", Version: "3.1.1"},
			{Name: "Flask-Login", Version: "0.6.3"},
			{Name: "pip", Version: "24.0"},
		}

		ps := c.collectPackages(ctx)

		if len(ps.Required) != 3 {
			t.Fatalf("len(Required) = %d, want 3", len(ps.Required))
		}
		for _, r := range ps.Required {
			if !r.Installed {
				t.Errorf("%s should be installed", r.Name)
			}
			if r.Version == "" {
				t.Errorf("%s should carry the installed version", r.Name)
			}
		}
		if ps.Missing() != 0 {
			t.Errorf("Missing() = %d, want 0", ps.Missing())
		}
		if !ps.Satisfied() {
			t.Error("Satisfied() = false, want true")
		}
		if len(ps.Installed) != 4 {
			t.Errorf("len(Installed) = %d, want 4", len(ps.Installed))
		}
	})

	t.Run("missing requirements", func(t *testing.T) {
		c, _, lister := testCollector(t)
		lister.packages = []pip.Package{
			{Name: "Flask", Version: "3.0.2"},
		}

		ps := c.collectPackages(ctx)

		if ps.Missing() != 2 {
			t.Errorf("Missing() = %d, want 2", ps.Missing())
		}
		if ps.Satisfied() {
			t.Error("Satisfied() = true, want false")
		}
	})

	t.Run("versioned requirement matches by name", func(t *testing.T) {
		c, _, lister := testCollector(t)
		c.cfg.Packages = []string{"flask>=3.0"}
		lister.packages = []pip.Package{
			{Name: "Flask", Version: "3.0.2"},
		}

		ps := c.collectPackages(ctx)

		if len(ps.Required) != 1 {
			t.Fatalf("len(Required) = %d, want 1", len(ps.Required))
		}
		if !ps.Required[0].Installed {
			t.Error("flask>=3.0 should match installed Flask")
		}
		if ps.Required[0].Version != "3.0.2" {
			t.Errorf("Version = %q, want %q", ps.Required[0].Version, "3.0.2")
		}
	})

	t.Run("pip version is surfaced", func(t *testing.T) {
		c, _, lister := testCollector(t)
		lister.packages = []pip.Package{{Name: "Flask", Version: "3.0.2"}}
		lister.version = "pip 24.0 from /proj/venv/lib/python3.12/site-packages/pip (python 3.12)"

		ps := c.collectPackages(ctx)

		if ps.PipVersion != "pip 24.0" {
			t.Errorf("PipVersion = %q, want %q", ps.PipVersion, "pip 24.0")
		}
	})

	t.Run("lister failure is reported", func(t *testing.T) {
		c, _, lister := testCollector(t)
		lister.err = errors.New("pip list failed")

		ps := c.collectPackages(ctx)

		if ps.Error != "pip list failed" {
			t.Errorf("Error = %q, want %q", ps.Error, "pip list failed")
		}
		// Requirements stay visible even when the probe fails
		if len(ps.Required) != 3 {
			t.Errorf("len(Required) = %d, want 3", len(ps.Required))
		}
		if ps.Missing() != 3 {
			t.Errorf("Missing() = %d, want 3", ps.Missing())
		}
	})
}

func TestCollectRun(t *testing.T) {
	ctx := context.Background()

	t.Run("no run recorded", func(t *testing.T) {
		c, _, _ := testCollector(t)

		rs := c.collectRun(ctx)

		if rs.Exists {
			t.Error("Exists = true, want false")
		}
		if rs.Active {
			t.Error("Active = true, want false")
		}
		if rs.History != 0 {
			t.Errorf("History = %d, want 0", rs.History)
		}
	})

	t.Run("completed run", func(t *testing.T) {
		c, st, _ := testCollector(t)
		run := state.NewRun(c.projectDir, c.venv.Path())
		run.Status = state.RunStatusCompleted
		run.ExitCode = 0
		run.FinishedAt = time.Now()
		st.run = run

		rs := c.collectRun(ctx)

		if !rs.Exists {
			t.Error("Exists = false, want true")
		}
		if rs.Active {
			t.Error("Active = true, want false")
		}
		if rs.ID != run.ID {
			t.Errorf("ID = %q, want %q", rs.ID, run.ID)
		}
		if rs.Status != string(state.RunStatusCompleted) {
			t.Errorf("Status = %q, want %q", rs.Status, state.RunStatusCompleted)
		}
		if rs.FinishedAt.IsZero() {
			t.Error("FinishedAt should be set")
		}
	})

	t.Run("failed run keeps step", func(t *testing.T) {
		c, st, _ := testCollector(t)
		run := state.NewRun(c.projectDir, c.venv.Path())
		run.Status = state.RunStatusFailed
		run.FailedStep = "install flask-login"
		st.run = run

		rs := c.collectRun(ctx)

		if rs.FailedStep != "install flask-login" {
			t.Errorf("FailedStep = %q, want %q", rs.FailedStep, "install flask-login")
		}
	})

	t.Run("live run is active", func(t *testing.T) {
		c, st, _ := testCollector(t)
		st.run = state.NewRun(c.projectDir, c.venv.Path())
		st.active = true

		rs := c.collectRun(ctx)

		if !rs.Active {
			t.Error("Active = false, want true")
		}
	})

	t.Run("counts archived runs", func(t *testing.T) {
		c, st, _ := testCollector(t)
		st.history = []*state.Run{
			state.NewRun(c.projectDir, c.venv.Path()),
			state.NewRun(c.projectDir, c.venv.Path()),
		}

		rs := c.collectRun(ctx)

		if rs.History != 2 {
			t.Errorf("History = %d, want 2", rs.History)
		}
	})
}

func TestCollectApp(t *testing.T) {
	ctx := context.Background()

	t.Run("no port configured", func(t *testing.T) {
		c, _, _ := testCollector(t)

		app := c.collectApp(ctx)

		if app.Addr != "" {
			t.Errorf("Addr = %q, want empty", app.Addr)
		}
		if app.Listening {
			t.Error("Listening = true, want false")
		}
	})

	t.Run("port closed", func(t *testing.T) {
		c, _, _ := testCollector(t)

		// Grab a port that is definitely free, then release it
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to open listener: %v", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		c.cfg.App.Host = "127.0.0.1"
		c.cfg.App.Port = port

		app := c.collectApp(ctx)

		if app.Listening {
			t.Error("Listening = true, want false")
		}
	})

	t.Run("port open", func(t *testing.T) {
		c, _, _ := testCollector(t)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to open listener: %v", err)
		}
		defer ln.Close()

		c.cfg.App.Host = "127.0.0.1"
		c.cfg.App.Port = ln.Addr().(*net.TCPAddr).Port

		app := c.collectApp(ctx)

		if !app.Listening {
			t.Error("Listening = false, want true")
		}
	})

	t.Run("canceled context skips the probe", func(t *testing.T) {
		c, _, _ := testCollector(t)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to open listener: %v", err)
		}
		defer ln.Close()

		c.cfg.App.Host = "127.0.0.1"
		c.cfg.App.Port = ln.Addr().(*net.TCPAddr).Port

		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		app := c.collectApp(canceled)

		if app.Listening {
			t.Error("Listening = true, want false once the context is gone")
		}
	})

	t.Run("no entry process recorded", func(t *testing.T) {
		c, _, _ := testCollector(t)

		app := c.collectApp(ctx)

		if app.Running {
			t.Error("Running = true, want false")
		}
		if app.PID != 0 {
			t.Errorf("PID = %d, want 0", app.PID)
		}
	})

	t.Run("entry process alive", func(t *testing.T) {
		c, st, _ := testCollector(t)
		run := state.NewRun(c.projectDir, c.venv.Path())
		run.Status = state.RunStatusLaunched
		run.EntryPID = os.Getpid() // this test process stands in for the app
		st.run = run

		app := c.collectApp(ctx)

		if !app.Running {
			t.Error("Running = false, want true")
		}
		if app.PID != os.Getpid() {
			t.Errorf("PID = %d, want %d", app.PID, os.Getpid())
		}
	})

	t.Run("entry process gone", func(t *testing.T) {
		c, st, _ := testCollector(t)
		run := state.NewRun(c.projectDir, c.venv.Path())
		run.Status = state.RunStatusLaunched
		run.EntryPID = 999999999
		st.run = run

		app := c.collectApp(ctx)

		if app.Running {
			t.Error("Running = true, want false for a dead PID")
		}
	})

	t.Run("finished run reports no process", func(t *testing.T) {
		c, st, _ := testCollector(t)
		run := state.NewRun(c.projectDir, c.venv.Path())
		run.Status = state.RunStatusCompleted
		run.EntryPID = os.Getpid()
		st.run = run

		app := c.collectApp(ctx)

		if app.Running {
			t.Error("Running = true, want false for a completed run")
		}
	})
}

func TestCollect_Integration(t *testing.T) {
	ctx := context.Background()

	c, st, lister := testCollector(t)
	newHealthyVenv(t, c.venv)
	lister.packages = []pip.Package{
		{Name: "Flask", Version: "3.0.2"},
		{Name: "Flask-SQLAlchemy", Version: "3.1.1"},
		{Name: "Flask-Login", Version: "0.6.3"},
	}
	run := state.NewRun(c.projectDir, c.venv.Path())
	run.Status = state.RunStatusCompleted
	run.FinishedAt = time.Now()
	st.run = run

	status, err := c.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if status.Project != "test-project" {
		t.Errorf("Project = %q, want %q", status.Project, "test-project")
	}
	if status.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if !status.Venv.Healthy {
		t.Errorf("Venv.Healthy = false, want true (error: %q)", status.Venv.Error)
	}
	if !status.Packages.Satisfied() {
		t.Errorf("Packages.Satisfied() = false, want true (missing %d)", status.Packages.Missing())
	}
	if !status.Run.Exists {
		t.Error("Run.Exists = false, want true")
	}
	if status.Run.ID != run.ID {
		t.Errorf("Run.ID = %q, want %q", status.Run.ID, run.ID)
	}
}

func TestRequirementName(t *testing.T) {
	tests := []struct {
		req  string
		want string
	}{
		{"flask", "flask"},
		{"flask==3.0.2", "flask"},
		{"flask>=3.0", "flask"},
		{"flask <4", "flask"},
		{"flask!=2.0", "flask"},
		{"flask~=3.0", "flask"},
		{"flask-sqlalchemy", "flask-sqlalchemy"},
	}

	for _, tc := range tests {
		t.Run(tc.req, func(t *testing.T) {
			got := requirementName(tc.req)
			if got != tc.want {
				t.Errorf("requirementName(%q) = %q, want %q", tc.req, got, tc.want)
			}
		})
	}
}
