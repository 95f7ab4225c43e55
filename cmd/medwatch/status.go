package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline run history and review backlog",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		o := buildOrchestrator(cfg, logger)

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== MedWatch Status ==="))

		st, err := o.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if st.RunCount == 0 {
			fmt.Printf("  %s\n", gray("No runs recorded yet"))
		} else {
			fmt.Printf("  Runs:        %d (%d failed)\n", st.RunCount, st.ErrorCount)
			fmt.Printf("  First run:   %s\n", st.FirstRun.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Last run:    %s\n", st.LastRun.Format("2006-01-02 15:04:05"))
			if !st.LastSuccess.IsZero() {
				fmt.Printf("  Last success: %s (%v ago)\n",
					st.LastSuccess.Format("2006-01-02 15:04:05"),
					time.Since(st.LastSuccess).Round(time.Second))
			}
			if st.LastError != "" {
				fmt.Printf("  Last error:  %s\n", red(st.LastError))
			}

			fmt.Printf("\n  Recent runs:\n")
			for _, rec := range st.RecentRuns {
				marker := green("●")
				if !rec.Success {
					marker = red("●")
				}
				fmt.Printf("    %s %s  sources=%d changes=%d\n",
					marker, rec.Timestamp.Format("2006-01-02 15:04"),
					rec.SourcesProcessed, rec.ChangesDetected)
			}
		}

		queue, err := o.ReviewQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n  Pending review: %d\n", queue.Pending())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
