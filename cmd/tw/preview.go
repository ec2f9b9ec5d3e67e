package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskwright/taskwright/internal/batchfile"
	"github.com/taskwright/taskwright/internal/engine"
	"github.com/taskwright/taskwright/internal/types"
	"github.com/taskwright/taskwright/internal/ui"
)

var previewCmd = &cobra.Command{
	Use:   "preview <batch-file>",
	Short: "Validate a batch and show what it would do, without touching the backend",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, explicit, err := batchfile.Load(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		applyConfigDefaults(&req.Options, explicit)
		applyFlagOverrides(cmd, &req.Options)

		pv, err := engine.Preview(req)
		if err != nil {
			FatalError("%v", err)
		}

		switch {
		case jsonOutput:
			outputJSON(pv)
		default:
			md, _ := cmd.Flags().GetBool("markdown")
			if md {
				fmt.Print(ui.RenderMarkdown(previewMarkdown(pv)))
			} else {
				printPreview(pv)
			}
		}
	},
}

func init() {
	previewCmd.Flags().Bool("markdown", false, "Render the preview as markdown")
	previewCmd.Flags().Bool("unordered", false, "Skip dependency ordering (flat batches only)")
	rootCmd.AddCommand(previewCmd)
}

func printPreview(pv *types.BatchPreview) {
	useColor := ui.ShouldUseColor()
	accent := func(s string) string {
		if useColor {
			return ui.AccentStyle.Render(s)
		}
		return s
	}

	fmt.Printf("%s %d create, %d update, %d complete, %d delete\n",
		accent("Batch:"), pv.Creates, pv.Updates, pv.Completes, pv.Deletes)
	if len(pv.CreationOrder) > 0 {
		fmt.Printf("%s %s (max depth %d)\n",
			accent("Creation order:"), strings.Join(pv.CreationOrder, " -> "), pv.MaxDepth)
	}
	fmt.Println()
	for _, e := range pv.Effects {
		fmt.Printf("  %s\n", e)
	}
}

func previewMarkdown(pv *types.BatchPreview) string {
	var b strings.Builder
	b.WriteString("# Batch preview\n\n")
	fmt.Fprintf(&b, "%d create, %d update, %d complete, %d delete\n\n",
		pv.Creates, pv.Updates, pv.Completes, pv.Deletes)
	if len(pv.CreationOrder) > 0 {
		fmt.Fprintf(&b, "**Creation order** (max depth %d): `%s`\n\n",
			pv.MaxDepth, strings.Join(pv.CreationOrder, " -> "))
	}
	b.WriteString("## Effects\n\n")
	for _, e := range pv.Effects {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	return b.String()
}
