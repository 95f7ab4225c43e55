package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medkitt/medwatch/internal/pipeline"
)

var (
	runDryRun bool
	runSource string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long: `Fetch every configured source, measure and classify changes, apply
or queue updates, and record the run. Exits non-zero when any fetch or
update error occurred.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		o := buildOrchestrator(cfg, logger)

		var only []string
		if runSource != "" {
			only = []string{runSource}
		}

		result, err := o.Run(context.Background(), pipeline.RunOptions{
			DryRun:  runDryRun,
			Sources: only,
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

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "simulate without applying changes")
	runCmd.Flags().StringVar(&runSource, "source", "", "run a single source")
	rootCmd.AddCommand(runCmd)
}
