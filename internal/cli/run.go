package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wafdrill/wafdrill/internal/drill/config"
	"github.com/wafdrill/wafdrill/internal/drill/engine"
	"github.com/wafdrill/wafdrill/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a drill against a target",
	Long: `Execute a WAF and rate-limit drill. The drill runs two kinds of traffic
concurrently: authenticated browsing that mixes benign requests with
XSS and SQL injection probes, and an unthrottled flood.

Config file mode:
  wafdrill run --config drill.yaml

Quick CLI mode (built-in drill):
  wafdrill run --target https://staging.example.com \
    --users 5 --flood-users 20 --duration 2m

The drill exits non-zero when a threshold fails, e.g. when a probe
got past the WAF or the rate limiter never engaged.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDrill(cmd, args)
	},
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Drill configuration file (YAML or JSON)")
	runCmd.Flags().StringP("target", "t", "", "Target base URL for the built-in drill")
	runCmd.Flags().Int("users", config.DefaultBrowseVUs, "Browsing virtual users for the built-in drill")
	runCmd.Flags().Int("flood-users", config.DefaultFloodVUs, "Flooding virtual users for the built-in drill")
	runCmd.Flags().StringP("duration", "d", "", "Drill duration for the built-in drill (e.g. 2m)")
	runCmd.Flags().Bool("verify-tls", false, "Verify the target's TLS certificate")
	runCmd.Flags().StringP("output", "o", "", "Write the JSON report to this file")
	runCmd.Flags().BoolP("quiet", "q", false, "Only print PASSED or FAILED")
	runCmd.Flags().BoolP("verbose", "v", false, "Print profile details before the run")
}

// runDrill loads or assembles the drill configuration and executes it.
func runDrill(cmd *cobra.Command, args []string) {
	configFile, _ := cmd.Flags().GetString("config")
	target, _ := cmd.Flags().GetString("target")
	users, _ := cmd.Flags().GetInt("users")
	floodUsers, _ := cmd.Flags().GetInt("flood-users")
	durationStr, _ := cmd.Flags().GetString("duration")
	verifyTLS, _ := cmd.Flags().GetBool("verify-tls")
	outputPath, _ := cmd.Flags().GetString("output")
	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var drillConfig *config.DrillConfig
	var err error

	if configFile != "" {
		drillConfig, err = config.LoadConfig(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	} else if target != "" {
		var duration time.Duration
		if durationStr != "" {
			duration, err = config.ParseDurationString(durationStr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing duration: %v\n", err)
				os.Exit(1)
			}
		}
		drillConfig = config.DefaultDrill(target, users, floodUsers, duration)
	} else {
		fmt.Println("Error: either --config or --target is required")
		cmd.Help()
		return
	}

	if verifyTLS {
		drillConfig.Target.VerifyTLS = true
	}

	totalDuration := drillConfig.TotalDuration()

	consoleOutput := output.NewConsoleOutput(output.ConsoleOutputConfig{
		DrillName:      drillConfig.Name,
		TotalDuration:  totalDuration,
		UpdateInterval: time.Second,
		Quiet:          quiet,
	})

	eng, err := engine.NewEngine(drillConfig, consoleOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}

	if verbose && !quiet {
		scheme := output.DefaultColorScheme()
		if !consoleOutput.IsTTY() {
			scheme = output.NoColorScheme()
		}
		fmt.Printf("Drill: %s\n", scheme.Highlight.Sprint(drillConfig.Name))
		for name, profile := range drillConfig.Profiles {
			fmt.Printf("  Profile: %s (executor: %s, tasks: %d)\n",
				scheme.Profile.Sprint(name), profile.Executor, len(profile.Tasks))
		}
		fmt.Println()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var result *engine.Result
	var runErr error

	// Closed when the run goroutine has finished writing result and runErr.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		result, runErr = eng.Run(ctx)
	}()

	updateTicker := time.NewTicker(time.Second)
	defer updateTicker.Stop()

	targetVUs := drillConfig.MaxVUs()

progressLoop:
	for {
		select {
		case <-updateTicker.C:
			if !eng.IsRunning() {
				continue
			}
			stats := output.StatsFromSnapshot(
				eng.GetMetrics(),
				eng.GetProgress(),
				totalDuration,
				targetVUs,
			)

			if consoleOutput.IsTTY() {
				consoleOutput.Update(stats)
			} else if !quiet {
				consoleOutput.PrintNonInteractiveUpdate(stats)
			}
		case <-runDone:
			break progressLoop
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s Error running drill: %v\n", output.WarnIcon(quiet), runErr)
		// Continue to output results even on error
	}

	if result != nil {
		consoleOutput.PrintSummary(result)

		if outputPath != "" {
			if err := writeJSONReport(result, outputPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			} else if !quiet {
				fmt.Printf("Report written to %s\n", outputPath)
			}
		}
	}

	if result != nil && !result.Passed {
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// writeJSONReport writes the drill result to a JSON file.
func writeJSONReport(result *engine.Result, path string) error {
	data, err := result.WriteJSON()
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
