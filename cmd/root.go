package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"venvup/internal/bootstrap"
	"venvup/internal/config"
)

var (
	verbose bool
	noPause bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "venvup",
	Short: "Python project environment bootstrapper",
	Long: `venvup prepares and runs a Python project in one pass.

Run with no arguments inside a project, it:
1. Ensures a project-local virtual environment exists (reused if present)
2. Activates it for the rest of the run
3. Upgrades pip
4. Installs the configured packages, in order
5. Launches the entry point and waits for it to exit
6. Pauses for Enter so the output stays readable

A venvup.yaml at the project root overrides the defaults; without one the
current directory is treated as the project.`,
	RunE:              runRoot,
	PersistentPreRunE: setupLogger,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&noPause, "no-pause", false, "Skip the final pause prompt")
}

func runRoot(cmd *cobra.Command, args []string) error {
	projectDir, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b := bootstrap.New(projectDir, cfg, bootstrap.Options{
		NoPause: noPause,
		Logger:  logger,
	})
	return b.Execute(ctx)
}

// setupLogger builds the process logger. Step progress goes to stdout as
// plain text; the logger carries debug detail on stderr when --verbose is on.
func setupLogger(cmd *cobra.Command, args []string) error {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapCfg.OutputPaths = []string{"stderr"}

	l, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger = l
	return nil
}

// resolveProject locates the project root and loads its config. A directory
// with no venvup.yaml anywhere up the tree is still a valid project: the
// defaults apply, relative to the current directory.
func resolveProject() (string, *config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	projectDir, err := config.FindProjectRoot(dir)
	if err != nil {
		return dir, config.DefaultConfig(filepath.Base(dir)), nil
	}

	cfg, err := config.Load(projectDir)
	if err != nil {
		return "", nil, err
	}
	return projectDir, cfg, nil
}
