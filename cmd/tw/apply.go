package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskwright/taskwright/internal/backend"
	"github.com/taskwright/taskwright/internal/batchfile"
	"github.com/taskwright/taskwright/internal/debug"
	"github.com/taskwright/taskwright/internal/engine"
	"github.com/taskwright/taskwright/internal/eventbus"
	"github.com/taskwright/taskwright/internal/fields"
	"github.com/taskwright/taskwright/internal/telemetry"
	"github.com/taskwright/taskwright/internal/types"
	"github.com/taskwright/taskwright/internal/ui"
)

var applyCmd = &cobra.Command{
	Use:   "apply <batch-file>",
	Short: "Execute a batch file against the backend",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, explicit, err := batchfile.Load(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		applyConfigDefaults(&req.Options, explicit)
		applyFlagOverrides(cmd, &req.Options)

		if hasDeletes(req) && !skipConfirm(cmd) {
			confirmDeletes(req)
		}

		result, err := runBatch(cmd.Context(), req)
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(result)
		} else {
			printResult(result)
		}
		// Set the exit code instead of exiting so PersistentPostRun still
		// flushes telemetry.
		exitCode = resultExitCode(result)
	},
}

func init() {
	applyCmd.Flags().Bool("atomic", false, "Roll back all creations if any creation fails")
	applyCmd.Flags().Bool("stop-on-error", false, "Halt at the first failure in any phase")
	applyCmd.Flags().Bool("unordered", false, "Skip dependency ordering (flat batches only)")
	applyCmd.Flags().Bool("no-mapping", false, "Omit the tempId -> realId mapping from the result")
	applyCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt for destructive batches")
	rootCmd.AddCommand(applyCmd)
}

// applyConfigDefaults layers config defaults under options the batch file did
// not set. An explicit `atomic: false` in the file wins over a config default
// of true; only genuinely unset keys take the default.
func applyConfigDefaults(opts *types.ExecuteOptions, explicit batchfile.Explicit) {
	if !explicit.Atomic {
		opts.AtomicOperation = cfg.Defaults.Atomic
	}
	if !explicit.StopOnError {
		opts.StopOnError = cfg.Defaults.StopOnError
	}
}

// applyFlagOverrides applies explicitly changed flags on top of the batch
// file's options. Precedence: flag > batch file > config default.
func applyFlagOverrides(cmd *cobra.Command, opts *types.ExecuteOptions) {
	if cmd.Flags().Changed("atomic") {
		opts.AtomicOperation, _ = cmd.Flags().GetBool("atomic")
	}
	if cmd.Flags().Changed("stop-on-error") {
		opts.StopOnError, _ = cmd.Flags().GetBool("stop-on-error")
	}
	if cmd.Flags().Changed("unordered") {
		unordered, _ := cmd.Flags().GetBool("unordered")
		opts.CreateSequentially = !unordered
	}
	if cmd.Flags().Changed("no-mapping") {
		noMapping, _ := cmd.Flags().GetBool("no-mapping")
		opts.ReturnMapping = !noMapping
	}
}

// resultExitCode maps a batch outcome to the process exit code.
func resultExitCode(result *types.BatchExecutionResult) int {
	if result.RolledBack || result.FailedCount > 0 {
		return 1
	}
	return 0
}

func hasDeletes(req *types.BatchRequest) bool {
	for _, op := range req.Operations {
		if op.Kind == types.OpDelete {
			return true
		}
	}
	return false
}

func skipConfirm(cmd *cobra.Command) bool {
	yes, _ := cmd.Flags().GetBool("yes")
	return yes || jsonOutput || !ui.IsTerminal()
}

func confirmDeletes(req *types.BatchRequest) {
	var targets []string
	for _, op := range req.Operations {
		if op.Kind == types.OpDelete {
			targets = append(targets, op.ID)
		}
	}
	confirmed := false
	prompt := huh.NewConfirm().
		Title("This batch deletes items").
		Description("Targets: " + strings.Join(targets, ", ")).
		Affirmative("Apply").
		Negative("Cancel").
		Value(&confirmed)
	if err := prompt.Run(); err != nil {
		FatalError("confirmation failed: %v", err)
	}
	if !confirmed {
		FatalError("aborted")
	}
}

// runBatch wires the backend, event bus, and orchestrator for one execution.
func runBatch(ctx context.Context, req *types.BatchRequest) (*types.BatchExecutionResult, error) {
	b, err := backend.NewScript(backend.ScriptOptions{
		Command:         cfg.Backend.Command,
		Timeout:         cfg.Backend.Timeout,
		RetryMaxElapsed: cfg.Backend.RetryMaxElapsed,
	})
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	bus.Register(&eventbus.HandlerFunc{
		Name:   "debug-log",
		Events: []eventbus.EventType{eventbus.EventBatchCommitted},
		Fn: func(_ context.Context, event *eventbus.Event) error {
			for _, t := range event.Touched {
				debug.Logf("committed: %s %s %s\n", t.Action, t.Type, t.RealID)
			}
			return nil
		},
	})

	orch := engine.New(
		telemetry.WrapBackend(b),
		engine.WithBus(bus),
		engine.WithNormalizer(fields.NewNormalizer(time.Now())),
	)
	result, err := orch.ExecuteBatch(ctx, req)
	if err != nil {
		return nil, err
	}
	telemetry.RecordBatch(ctx, result)
	return result, nil
}
