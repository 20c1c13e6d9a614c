package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratus-cloud/stratus/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stratus",
	Short: "Stratus - Declarative deployment topology compiler",
	Long: `Stratus compiles a declarative application manifest into a complete
deployment topology: carved network segments, derived access policies,
content-addressed artifacts, compute placements, traffic routes, and an
ordered provisioning plan.

The compiler never touches a cloud API. Publishing pushes artifacts to
an image registry and object store; everything else is emitted as a
plan for an execution engine to apply.`,
	Version:          Version,
	PersistentPreRun: initLogging,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Stratus version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON instead of console output")
}

// initLogging configures the global logger before any command runs. Logs
// go to stderr so command output stays pipeable.
func initLogging(cmd *cobra.Command, args []string) {
	level, _ := cmd.Flags().GetString("log-level")
	jsonOutput, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOutput,
		Output:     os.Stderr,
	})
}
