package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wafdrill/wafdrill/internal/drill/config"
	"github.com/wafdrill/wafdrill/internal/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a drill configuration file",
	Long: `Validate a drill configuration against the schema and semantic rules
without running it.

  wafdrill validate drill.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Invalid: %v\n", output.FailIcon(false), err)
			os.Exit(1)
		}
		fmt.Printf("%s Valid: %s (%d profiles, %s)\n", output.PassIcon(false), cfg.Name, len(cfg.Profiles), cfg.TotalDuration())
	},
}
