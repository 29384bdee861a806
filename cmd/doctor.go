package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"venvup/internal/doctor"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check prerequisites for running the project",
	Long: `Run diagnostic checks against the host, the base Python
interpreter, the project configuration, and the virtual environment.

The command exits non-zero when any check fails, so it can be used
as a preflight gate in scripts.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	projectDir, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := doctor.New(projectDir, cfg).Run(ctx)

	if doctorJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		printDoctorReport(report)
	}

	if report.Failed() {
		return fmt.Errorf("%d check(s) failed", failCount(report))
	}

	return nil
}

func printDoctorReport(report *doctor.Report) {
	fmt.Println("Host:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  hostname\t%s\n", report.Host.Hostname)
	fmt.Fprintf(w, "  os\t%s (%s)\n", report.Host.OS, report.Host.Platform)
	fmt.Fprintf(w, "  arch\t%s\n", report.Host.Arch)
	fmt.Fprintf(w, "  cpus\t%d\n", report.Host.CPUs)
	fmt.Fprintf(w, "  memory\t%d MB\n", report.Host.TotalMemMB)
	w.Flush()
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Check", "Status", "Detail")

	for _, c := range report.Checks {
		table.Append(c.Name, string(c.Status), c.Detail)
	}
	table.Render()

	fmt.Println()
	if report.Failed() {
		fmt.Printf("%d of %d checks failed.\n", failCount(report), len(report.Checks))
	} else if w := report.Warnings(); w > 0 {
		fmt.Printf("All checks passed, %d warning(s).\n", w)
	} else {
		fmt.Println("All checks passed.")
	}
}

func failCount(report *doctor.Report) int {
	n := 0
	for _, c := range report.Checks {
		if c.Status == doctor.CheckFail {
			n++
		}
	}
	return n
}
