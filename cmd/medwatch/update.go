package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medkitt/medwatch/internal/pipeline"
	"github.com/medkitt/medwatch/internal/types"
)

var (
	updateDryRun bool
	updateApply  bool
	updateSource string
	updateCommit bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Analyze archived payloads and dispose of update candidates",
	Long: `Compare the most recent archived payloads against the consults they
affect, without fetching. By default this is a dry run; --apply rewrites the
artifacts for auto-approvable changes and queues the rest for review.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		o := buildOrchestrator(cfg, logger)

		dryRun := !updateApply
		if updateDryRun {
			dryRun = true
		}

		var only []string
		if updateSource != "" {
			only = []string{updateSource}
		}

		result, err := o.AnalyzeStored(context.Background(), pipeline.RunOptions{
			DryRun:  dryRun,
			Sources: only,
			Commit:  updateCommit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printRunResult(result)
		if len(result.Errors) > 0 {
			os.Exit(1)
		}
	},
}

var updateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending review entries",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		o := buildOrchestrator(cfg, logger)

		queue, err := o.ReviewQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		entries := queue.List()
		fmt.Printf("\n%s\n\n", cyan("=== Review Queue ==="))
		if len(entries) == 0 {
			fmt.Printf("  %s\n", gray("empty"))
			return
		}
		for _, e := range entries {
			fmt.Printf("  %s %s <- %s (%s)\n", yellow(string(e.Tier)), e.ConsultID, e.SourceID,
				e.Timestamp.Format("2006-01-02 15:04"))
			fmt.Printf("    %s\n", e.Reason)
		}
		fmt.Printf("\n  %d pending\n", queue.Pending())
	},
}

// printRunResult renders the shared run summary block.
func printRunResult(result *types.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	state := green("SUCCESS")
	if !result.Success {
		state = red("FAILED")
	}
	mode := ""
	if result.DryRun {
		mode = gray(" (dry run)")
	}
	fmt.Printf("\n%s%s\n", state, mode)
	fmt.Printf("  Sources processed: %d\n", result.SourcesProcessed)
	fmt.Printf("  Changes detected:  %d\n", result.ChangesDetected)
	fmt.Printf("  Updates applied:   %d\n", result.UpdatesApplied)
	fmt.Printf("  Queued for review: %d\n", result.QueuedForReview)

	if len(result.Dispositions) > 0 {
		fmt.Println("\nDetails:")
		for _, d := range result.Dispositions {
			fmt.Printf("  %s: %s\n", d.ConsultID, d.Action)
		}
	}
	for _, w := range result.Warnings {
		fmt.Printf("  %s %s\n", color.YellowString("warning:"), w)
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s %s\n", red("error:"), e)
	}
}

func init() {
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "simulate without applying changes")
	updateCmd.Flags().BoolVar(&updateApply, "apply", false, "apply detected updates")
	updateCmd.Flags().StringVar(&updateSource, "source", "", "process a single source")
	updateCmd.Flags().BoolVar(&updateCommit, "commit", false, "commit applied changes to git")
	updateCmd.AddCommand(updateStatusCmd)
	rootCmd.AddCommand(updateCmd)
}
