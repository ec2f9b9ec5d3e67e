package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskwright/taskwright/internal/telemetry"
	"github.com/taskwright/taskwright/internal/types"
	"github.com/taskwright/taskwright/internal/ui"
)

// FatalError prints an error to stderr and exits with status 1. Telemetry is
// flushed first; exiting here bypasses PersistentPostRun.
func FatalError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if ui.ShouldUseColor() {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.FailStyle.Render(ui.IconFail), msg)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Shutdown(ctx)
	cancel()
	os.Exit(1)
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		FatalError("encoding JSON output: %v", err)
	}
}

// printResult renders a batch result as styled text.
func printResult(result *types.BatchExecutionResult) {
	useColor := ui.ShouldUseColor()
	style := func(s string, st lipgloss.Style) string {
		if useColor {
			return st.Render(s)
		}
		return s
	}
	pass := func(s string) string { return style(s, ui.PassStyle) }
	fail := func(s string) string { return style(s, ui.FailStyle) }
	warn := func(s string) string { return style(s, ui.WarnStyle) }
	muted := func(s string) string { return style(s, ui.MutedStyle) }

	for _, ir := range result.Items {
		label := ir.TempID
		if label == "" {
			label = ir.ID
		}
		switch {
		case !ir.Attempted:
			fmt.Printf("%s %s %s %s\n", muted(ui.IconSkip), ir.Phase, label, muted(ir.Error))
		case ir.Success:
			line := fmt.Sprintf("%s %s %s", pass(ui.IconPass), ir.Phase, label)
			if ir.Phase == types.OpCreate {
				line += muted(" -> " + ir.RealID)
			}
			fmt.Println(line)
		default:
			fmt.Printf("%s %s %s: %s\n", fail(ui.IconFail), ir.Phase, label, ir.Error)
		}
	}

	fmt.Println()
	switch {
	case result.RolledBack:
		undone := 0
		for _, ir := range result.Items {
			if ir.Phase == types.OpCreate && ir.Success {
				undone++
			}
		}
		fmt.Printf("%s batch failed, rolled back %d creation(s)\n", warn(ui.IconWarn), undone)
		for _, e := range result.RollbackErrors {
			fmt.Printf("%s %s\n", fail(ui.IconFail), e)
		}
	case result.FailedCount > 0:
		fmt.Printf("%d succeeded, %d failed (of %d operations)\n",
			result.TotalItems-result.FailedCount, result.FailedCount, result.TotalItems)
	default:
		fmt.Printf("%s %d operation(s) applied\n", pass(ui.IconPass), result.TotalItems)
	}
}
