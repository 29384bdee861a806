package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"venvup/internal/config"
)

var (
	initName       string
	initPython     string
	initEntrypoint string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a venvup project",
	Long: `Write a starter venvup.yaml into the current directory, create the
.venvup state directory, and keep both the environment and the run
records out of version control.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initName, "name", "n", "", "Project name (defaults to the directory name)")
	initCmd.Flags().StringVarP(&initPython, "python", "p", "", "Base interpreter (default: python3 on PATH)")
	initCmd.Flags().StringVarP(&initEntrypoint, "entrypoint", "e", "", "Entry point script (default: main.py)")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot determine working directory: %w", err)
	}

	if config.Exists(dir) {
		return fmt.Errorf("venvup project already exists in this directory")
	}

	name := initName
	if name == "" {
		name = filepath.Base(dir)
	}

	cfg := config.DefaultConfig(name)
	if initPython != "" {
		cfg.Python = initPython
	}
	if initEntrypoint != "" {
		cfg.Entrypoint = initEntrypoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(dir, cfg); err != nil {
		return err
	}
	if err := config.CreateStateDir(dir); err != nil {
		return err
	}

	if err := ensureGitignore(dir, config.StateDir+"/", cfg.Venv+"/"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: .gitignore not updated: %v\n", err)
	}

	fmt.Printf("Initialized venvup project: %s\n", name)
	fmt.Printf("  Entry point: %s\n", cfg.Entrypoint)
	fmt.Printf("  Packages: %s\n", strings.Join(cfg.Packages, ", "))
	fmt.Printf("\nWrote %s and created %s/\n", config.ConfigFileName, config.StateDir)
	fmt.Printf("Run 'venvup' to create the environment and start %s\n", cfg.Entrypoint)

	return nil
}

// ensureGitignore appends the entries missing from .gitignore, creating
// the file when there is none
func ensureGitignore(dir string, entries ...string) error {
	path := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var add []string
	for _, e := range entries {
		if !present[e] {
			add = append(add, e)
		}
	}
	if len(add) == 0 {
		return nil
	}

	updated := string(existing)
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += strings.Join(add, "\n") + "\n"

	return os.WriteFile(path, []byte(updated), 0644)
}
