package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"venvup/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit venvup.yaml",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Print the configuration the next run will use, as YAML.

Works without a venvup.yaml: the built-in defaults are shown, resolved
against the current directory.`,
	RunE: runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit venvup.yaml in $EDITOR",
	Long:  "Open the project's venvup.yaml in your editor and re-validate it afterwards.",
	RunE:  runConfigEdit,
}

func init() {
	configCmd.AddCommand(configShowCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// reportIssues prints validation errors and warnings to stderr and
// returns the validation error, if any
func reportIssues(cfg *config.Config) error {
	err := cfg.Validate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Errors:\n%v\n\n", err)
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return err
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	projectDir, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	reportIssues(cfg)

	if config.Exists(projectDir) {
		fmt.Printf("# Configuration: %s\n", filepath.Join(projectDir, config.ConfigFileName))
		fmt.Printf("# (defaults applied for missing values)\n\n")
	} else {
		fmt.Printf("# No %s found, showing built-in defaults\n", config.ConfigFileName)
		fmt.Printf("# (run 'venvup init' to write one)\n\n")
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	root, path, err := projectConfigPath()
	if err != nil {
		return fmt.Errorf("nothing to edit: %w (run 'venvup init' first)", err)
	}

	editor := exec.Command(resolveEditor(), path)
	editor.Stdin, editor.Stdout, editor.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := editor.Run(); err != nil {
		return fmt.Errorf("editor exited with an error: %w", err)
	}

	// The file just changed under us, reload and check it
	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: the file no longer parses: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'venvup config edit' to fix.")
		return err
	}
	if err := reportIssues(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Run 'venvup config edit' to fix.")
		return err
	}

	fmt.Println("Configuration OK.")
	return nil
}

// projectConfigPath locates the project root and its venvup.yaml by
// walking up from the working directory. Unlike resolveProject it does
// not load the file, so it works on configs that do not parse.
func projectConfigPath() (root, path string, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	root, err = config.FindProjectRoot(cwd)
	if err != nil {
		return "", "", err
	}
	return root, filepath.Join(root, config.ConfigFileName), nil
}

// resolveEditor picks $EDITOR, then $VISUAL, then vi
func resolveEditor() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	if e := os.Getenv("VISUAL"); e != "" {
		return e
	}
	return "vi"
}
