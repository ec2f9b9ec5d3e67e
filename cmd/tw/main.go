// Command tw applies batches of create/update/complete/delete operations to a
// hierarchical task backend through an automation runner, emulating atomicity
// on a backend that has none.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskwright/taskwright/internal/config"
	"github.com/taskwright/taskwright/internal/debug"
	"github.com/taskwright/taskwright/internal/telemetry"
)

// Version and Build are set at link time.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	cfgPath     string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	cfg *config.Config

	// exitCode is the status main exits with. Commands set it instead of
	// calling os.Exit so PersistentPostRun can flush telemetry first.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "tw",
	Short: "tw - batch mutations for hierarchical task backends",
	Long: `Executes batches of create/update/complete/delete operations as a single
logical unit. Creates are ordered so parents precede children, temporary
handles are rewritten to backend identifiers, and atomic batches roll back
every creation when any creation fails.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("tw version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			FatalError("%v", err)
		}

		if err := telemetry.Init(cmd.Context(), "tw", Version); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry init failed: %v\n", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/taskwright/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
