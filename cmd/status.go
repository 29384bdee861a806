package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"venvup/internal/status"
)

var (
	statusBrief bool
	statusJSON  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project status",
	Long: `Show the state of the virtual environment, installed packages,
the last bootstrap run, and the application.

The default view prints every section with a package table. Use --brief
for a single line suitable for shell prompts, or --json for scripting.`,
	RunE: runStatus,
}

// statusTimeout caps the collection pass. The app port probe honors it
// directly; the pip listing is bounded by pip's own network timeouts.
const statusTimeout = 30 * time.Second

func init() {
	statusCmd.Flags().BoolVarP(&statusBrief, "brief", "b", false, "one-line summary")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "machine-readable JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	projectDir, cfg, err := resolveProject()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	s, err := status.NewCollector(projectDir, cfg).Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect project status: %w", err)
	}

	switch {
	case statusJSON:
		return printStatusJSON(s)
	case statusBrief:
		return printStatusBrief(s)
	default:
		return printStatusFull(s)
	}
}

func printStatusFull(s *status.Status) error {
	fmt.Printf("Project: %s\n", s.Project)
	fmt.Println(strings.Repeat("─", 48))
	fmt.Println()

	// Venv section
	fmt.Printf("Venv: %s %s", healthSymbol(s.Venv.Healthy), s.Venv.Path)
	if s.Venv.PythonVersion != "" {
		fmt.Printf(" (Python %s)", s.Venv.PythonVersion)
	}
	fmt.Println()
	if s.Venv.Error != "" {
		fmt.Printf("      └─ %s\n", s.Venv.Error)
	}
	fmt.Println()

	// Run section
	if s.Run.Exists {
		fmt.Printf("Last run: %s", s.Run.Status)
		if s.Run.FailedStep != "" {
			fmt.Printf(" at %s", s.Run.FailedStep)
		}
		if !s.Run.StartedAt.IsZero() {
			fmt.Printf(" (started %s)", s.Run.StartedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
		if s.Run.History > 0 {
			fmt.Printf("      └─ %d archived run(s)\n", s.Run.History)
		}
	} else {
		fmt.Println("Last run: none")
	}
	fmt.Println()

	// App section
	fmt.Print("App: ")
	if s.App.Running {
		fmt.Printf("%s running (pid %d", healthSymbol(true), s.App.PID)
		if s.App.UptimeSec > 0 {
			fmt.Printf(", up %s", formatDuration(time.Duration(s.App.UptimeSec)*time.Second))
		}
		if s.App.MemoryMB > 0 {
			fmt.Printf(", %.1f MB", s.App.MemoryMB)
		}
		fmt.Print(")")
	} else {
		fmt.Printf("%s not running", healthSymbol(false))
	}
	if s.App.Addr != "" {
		if s.App.Listening {
			fmt.Printf(" | %s listening", s.App.Addr)
		} else {
			fmt.Printf(" | %s not listening", s.App.Addr)
		}
	}
	fmt.Println()
	fmt.Println()

	// Packages table
	if s.Packages.PipVersion != "" {
		fmt.Printf("Packages (%s):\n", s.Packages.PipVersion)
	} else {
		fmt.Println("Packages:")
	}
	if s.Packages.Error != "" {
		fmt.Printf("  unavailable: %s\n", s.Packages.Error)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Package", "Status", "Version")

	for _, r := range s.Packages.Required {
		state := "missing"
		version := "-"
		if r.Installed {
			state = "installed"
			version = r.Version
		}
		table.Append(r.Name, state, version)
	}
	table.Render()

	if extra := len(s.Packages.Installed) - len(s.Packages.Required); extra > 0 {
		fmt.Printf("  plus %d other package(s) in the environment (see 'pip list')\n", extra)
	}

	return nil
}

func printStatusBrief(s *status.Status) error {
	pkgState := fmt.Sprintf("%d/%d", len(s.Packages.Required)-s.Packages.Missing(), len(s.Packages.Required))

	fmt.Printf("venv: %s | packages: %s | run: %s | app: %s\n",
		healthWord(s.Venv.Healthy, s.Venv.Present),
		pkgState,
		runWord(&s.Run),
		appWord(&s.App),
	)

	return nil
}

func printStatusJSON(s *status.Status) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// healthSymbol returns the Unicode symbol for a healthy/unhealthy state
func healthSymbol(ok bool) string {
	if ok {
		return "●" // filled circle for healthy
	}
	return "○" // empty circle for absent or broken
}

// healthWord summarizes the venv state in one word
func healthWord(healthy, present bool) string {
	switch {
	case healthy:
		return "ok"
	case present:
		return "broken"
	default:
		return "missing"
	}
}

// runWord summarizes the last run in one word
func runWord(r *status.RunStatus) string {
	if !r.Exists {
		return "none"
	}
	if r.Active {
		return "active"
	}
	return r.Status
}

// appWord summarizes the app state in one word
func appWord(a *status.AppStatus) string {
	switch {
	case a.Running && a.Listening:
		return "up"
	case a.Running:
		return "running"
	case a.Listening:
		return "listening"
	default:
		return "down"
	}
}

// formatDuration renders an uptime in its largest useful unit
// (45s, 12m, 3h20m)
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	h := int(d.Hours())
	if m := int(d.Minutes()) % 60; m > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}
