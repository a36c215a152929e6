package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "wafdrill",
	Short:   "Drive security drills against a WAF-protected endpoint",
	Version: version,
	Long: `Wafdrill exercises a web application firewall and rate limiter with
realistic traffic: authenticated browsing mixed with XSS and SQL
injection probes, plus an unthrottled flood. It verifies the WAF
blocks every probe and the rate limiter actually engages.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(targetCmd)
	RootCmd.AddCommand(validateCmd)
}
