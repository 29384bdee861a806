package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"venvup/internal/python"
	"venvup/internal/state"
)

var (
	cleanYes       bool
	cleanStateOnly bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the virtual environment and run state",
	Long: `Remove the project's virtual environment directory and the
recorded run state under .venvup/.

This is destructive: the next bare 'venvup' run rebuilds the
environment from scratch. Use --state-only to keep the environment
and only clear the run records, --yes to skip the confirmation.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip confirmation")
	cleanCmd.Flags().BoolVar(&cleanStateOnly, "state-only", false, "Clear run records but keep the environment")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	projectDir, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	active, err := state.HasActiveRun(projectDir)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("a bootstrap run is still active in this project, stop it first")
	}

	venv := python.NewManager(projectDir, cfg.Venv)

	if !cleanStateOnly && venv.Exists() {
		if !cleanYes {
			ok, err := confirmCleanup(cfg.Venv)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		fmt.Printf("Removing %s... ", venv.Path())
		if err := venv.Remove(); err != nil {
			fmt.Println("failed")
			return err
		}
		fmt.Println("ok")
	}

	fmt.Print("Clearing run state... ")
	if err := state.ClearRunState(projectDir); err != nil {
		fmt.Println("failed")
		return err
	}
	fmt.Println("ok")

	return nil
}

// confirmCleanup asks the user to type the venv directory name before
// anything is deleted
func confirmCleanup(venvDir string) (bool, error) {
	fmt.Println("This removes the environment and everything installed in it.")
	fmt.Printf("Type the environment directory name (%s) to confirm: ", venvDir)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}

	return strings.TrimSpace(line) == venvDir, nil
}
