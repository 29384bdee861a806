package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"venvup/internal/python"
)

var envFile string

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the activation environment",
	Long: `Print the shell-sourceable activation environment for the
project's virtual environment.

The environment must already exist. Typical usage:

  eval "$(venvup env)"
  venvup env --file .envrc`,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().StringVarP(&envFile, "file", "f", "", "Write the environment to a file instead of stdout")

	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	projectDir, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	venv := python.NewManager(projectDir, cfg.Venv)

	env, err := venv.Activate()
	if err != nil {
		return fmt.Errorf("cannot activate %s: %w", venv.Path(), err)
	}

	content := env.ToEnvFile()

	if envFile != "" {
		if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", envFile, err)
		}
		fmt.Printf("Wrote activation environment to %s\n", envFile)
		return nil
	}

	fmt.Print(content)
	return nil
}
