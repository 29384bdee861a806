package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"venvup/internal/config"
	"venvup/internal/launch"
	"venvup/internal/pip"
	"venvup/internal/python"
	"venvup/internal/state"
)

// Step names recorded on aborted runs. Install steps are recorded as
// "install <package>".
const (
	stepInterpreter = "find-interpreter"
	stepVenv        = "create-venv"
	stepActivate    = "activate"
	stepUpgradePip  = "upgrade-pip"
	stepLaunch      = "launch"
)

// envManager is the part of python.Manager the bootstrap drives
type envManager interface {
	Path() string
	InterpreterPath() string
	Exists() bool
	Ensure(interp *python.Interpreter) (bool, error)
	Activate() (*python.Environment, error)
	PythonVersion() (string, error)
}

// pipInstaller is the part of pip.Installer the bootstrap drives
type pipInstaller interface {
	Upgrade() error
	Install(req string) error
}

// entryProcess is a started entry point
type entryProcess interface {
	PID() int
	Wait() (*launch.Result, error)
}

// entryLauncher starts the entry point process
type entryLauncher interface {
	Launch(cfg *launch.Config) (entryProcess, error)
}

// realLauncher adapts launch.Launcher to the entryLauncher interface
type realLauncher struct {
	launcher *launch.Launcher
}

func (r *realLauncher) Launch(cfg *launch.Config) (entryProcess, error) {
	proc, err := r.launcher.Launch(cfg)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// Options adjusts bootstrap behavior
type Options struct {
	// NoPause skips the final prompt regardless of config
	NoPause bool
	// Input is where the pause reads from, defaults to stdin
	Input io.Reader
	// Logger receives debug events, defaults to a nop logger
	Logger *zap.Logger
}

// Bootstrap runs the prepare-and-launch sequence for one project:
// environment, pip, packages, entry point, pause.
type Bootstrap struct {
	projectDir string
	cfg        *config.Config
	noPause    bool

	venv     envManager
	st       state.State
	launcher entryLauncher
	logger   *zap.Logger

	findInterpreter func(override string) (*python.Interpreter, error)
	newInstaller    func(env []string) pipInstaller

	input  io.Reader
	out    io.Writer
	errOut io.Writer
}

// New creates a Bootstrap for the given project
func New(projectDir string, cfg *config.Config, opts Options) *Bootstrap {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	input := opts.Input
	if input == nil {
		input = os.Stdin
	}

	venv := python.NewManager(projectDir, cfg.Venv)
	b := &Bootstrap{
		projectDir:      projectDir,
		cfg:             cfg,
		noPause:         opts.NoPause,
		venv:            venv,
		st:              state.New(projectDir),
		launcher:        &realLauncher{launcher: launch.New()},
		logger:          logger,
		findInterpreter: python.FindInterpreter,
		input:           input,
		out:             os.Stdout,
		errOut:          os.Stderr,
	}
	b.newInstaller = func(env []string) pipInstaller {
		return pip.NewInstaller(venv.InterpreterPath(), projectDir, env)
	}
	return b
}

// Execute runs the whole bootstrap sequence. Failures before the launch are
// returned as errors; the entry point's own exit code is recorded and
// reported, not returned. Every path ends at the pause so the output stays
// visible when the terminal closes with the process.
func (b *Bootstrap) Execute(ctx context.Context) error {
	err := b.execute(ctx)
	if err != nil {
		fmt.Fprintf(b.errOut, "\n%v\n", err)
	}
	b.pause()
	return err
}

func (b *Bootstrap) execute(ctx context.Context) error {
	run := state.NewRun(b.projectDir, b.venv.Path())
	if err := b.st.BeginRun(run); err != nil {
		if errors.Is(err, state.ErrRunActive) {
			return fmt.Errorf("another run is already active in this project: %w", err)
		}
		return fmt.Errorf("failed to record run: %w", err)
	}
	b.logger.Debug("run started",
		zap.String("id", run.ID),
		zap.String("project", b.projectDir))

	// 1. Find the base interpreter
	fmt.Fprint(b.out, "Checking base interpreter... ")
	interp, err := b.findInterpreter(b.cfg.Python)
	if err != nil {
		fmt.Fprintln(b.out, "failed")
		return b.fail(run, stepInterpreter, err)
	}
	fmt.Fprintf(b.out, "ok (Python %s)\n", interp.Version)

	// 2. Ensure the environment exists. An existing directory is reused
	// as-is, never recreated or repaired.
	if b.venv.Exists() {
		fmt.Fprintf(b.out, "Using existing environment at %s\n", b.venv.Path())
	} else {
		fmt.Fprint(b.out, "Creating virtual environment... ")
		created, err := b.venv.Ensure(interp)
		if err != nil {
			fmt.Fprintln(b.out, "failed")
			return b.fail(run, stepVenv, err)
		}
		fmt.Fprintln(b.out, "ok")
		run.VenvCreated = created
	}

	// 3. Activate it. A corrupt environment stops the run here, before
	// anything gets installed into it.
	fmt.Fprint(b.out, "Activating environment... ")
	env, err := b.venv.Activate()
	if err != nil {
		fmt.Fprintln(b.out, "failed")
		return b.fail(run, stepActivate, err)
	}
	fmt.Fprintln(b.out, "ok")

	procEnv := env.Apply(os.Environ())
	if version, err := b.venv.PythonVersion(); err == nil {
		run.PythonVersion = version
	}
	b.saveRun(run)

	// 4. Upgrade pip itself before any package goes in
	installer := b.newInstaller(procEnv)
	fmt.Fprint(b.out, "Upgrading pip... ")
	if err := installer.Upgrade(); err != nil {
		fmt.Fprintln(b.out, "failed")
		return b.fail(run, stepUpgradePip, err)
	}
	fmt.Fprintln(b.out, "ok")

	// 5. Install the configured packages in order, stopping at the first
	// failure. The sequence runs on every invocation, fresh venv or not.
	for _, pkg := range b.cfg.Packages {
		fmt.Fprintf(b.out, "Installing %s... ", pkg)
		if err := installer.Install(pkg); err != nil {
			fmt.Fprintln(b.out, "failed")
			return b.fail(run, "install "+pkg, err)
		}
		fmt.Fprintln(b.out, "ok")
		run.Packages = append(run.Packages, pkg)
	}
	b.saveRun(run)

	// 6. Launch the entry point and block until it exits. From here on the
	// run always reaches the pause: a crashing entry point is an outcome to
	// report, not a bootstrap error.
	fmt.Fprintf(b.out, "\nLaunching %s\n\n", b.cfg.Entrypoint)
	b.runEntry(run, procEnv)

	b.archive(run)
	return nil
}

// runEntry starts the entry point, records its PID, and waits for it
func (b *Bootstrap) runEntry(run *state.Run, procEnv []string) {
	proc, err := b.launcher.Launch(&launch.Config{
		Python:  b.venv.InterpreterPath(),
		Script:  b.cfg.Entrypoint,
		WorkDir: b.projectDir,
		Env:     procEnv,
	})
	if err != nil {
		fmt.Fprintf(b.errOut, "Failed to start %s: %v\n", b.cfg.Entrypoint, err)
		run.Status = state.RunStatusFailed
		run.FailedStep = stepLaunch
		run.FinishedAt = time.Now()
		b.saveRun(run)
		return
	}

	run.Status = state.RunStatusLaunched
	run.EntryPID = proc.PID()
	b.saveRun(run)
	b.logger.Debug("entry point started", zap.Int("pid", run.EntryPID))

	result, err := proc.Wait()
	run.FinishedAt = time.Now()
	if err != nil {
		fmt.Fprintf(b.errOut, "Failed waiting for %s: %v\n", b.cfg.Entrypoint, err)
		run.Status = state.RunStatusFailed
		run.FailedStep = stepLaunch
		b.saveRun(run)
		return
	}

	run.Status = state.RunStatusCompleted
	run.ExitCode = result.ExitCode
	b.saveRun(run)
	b.logger.Debug("entry point exited",
		zap.Int("code", result.ExitCode),
		zap.Duration("duration", result.Duration))

	if result.ExitCode != 0 {
		fmt.Fprintf(b.errOut, "\n%s exited with code %d\n", b.cfg.Entrypoint, result.ExitCode)
	} else {
		fmt.Fprintf(b.out, "\n%s exited normally\n", b.cfg.Entrypoint)
	}
}

// fail records an aborted run and hands the step error back
func (b *Bootstrap) fail(run *state.Run, step string, err error) error {
	run.Status = state.RunStatusFailed
	run.FailedStep = step
	run.FinishedAt = time.Now()
	b.saveRun(run)
	b.archive(run)
	b.logger.Debug("run aborted", zap.String("step", step), zap.Error(err))
	return err
}

// saveRun persists run progress; failures are warned about, not fatal
func (b *Bootstrap) saveRun(run *state.Run) {
	if err := b.st.SaveRun(run); err != nil {
		fmt.Fprintf(b.errOut, "Warning: could not save run state: %v\n", err)
	}
}

// archive copies the finished record into history and trims old entries
func (b *Bootstrap) archive(run *state.Run) {
	if err := b.st.ArchiveRun(run); err != nil {
		fmt.Fprintf(b.errOut, "Warning: could not archive run: %v\n", err)
		return
	}
	if err := b.st.PruneHistory(state.DefaultHistoryLimit); err != nil {
		fmt.Fprintf(b.errOut, "Warning: could not prune history: %v\n", err)
	}
}

// pause blocks until the user presses Enter. EOF (closed or piped stdin)
// falls through immediately, so scripted runs never hang here.
func (b *Bootstrap) pause() {
	if b.noPause || !b.cfg.PauseEnabled() {
		return
	}
	fmt.Fprint(b.out, "\nPress Enter to close... ")
	reader := bufio.NewReader(b.input)
	_, _ = reader.ReadString('\n')
}
