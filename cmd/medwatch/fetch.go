package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medkitt/medwatch/internal/fetch"
)

var (
	fetchSource string
	fetchAll    bool
	fetchTest   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch sources and measure changes",
	Long: `Fetch one or all configured sources, archive the payloads, and
report fingerprint changes. With --test, only check that each source is
reachable without touching stored state.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		ctx := context.Background()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		if fetchTest {
			client := fetch.New(cfg.Scraper)
			failures := 0
			for id, src := range cfg.Sources {
				if _, err := client.Fetch(ctx, id, src); err != nil {
					fmt.Printf("  %s %s: %v\n", red("✗"), id, err)
					failures++
					continue
				}
				fmt.Printf("  %s %s (%s)\n", green("✓"), id, src.Name)
			}
			if failures > 0 {
				os.Exit(1)
			}
			return
		}

		if fetchSource == "" && !fetchAll {
			fmt.Fprintln(os.Stderr, "Error: specify --source <id> or --all")
			os.Exit(1)
		}

		o := buildOrchestrator(cfg, logger)
		var only []string
		if fetchSource != "" {
			only = []string{fetchSource}
		}

		res := o.FetchStage(ctx, only)
		for _, out := range res.Outcomes {
			if out.Err != "" {
				fmt.Printf("  %s %s: %s\n", red("✗"), out.SourceID, out.Err)
				continue
			}
			marker := green("unchanged")
			if out.Measurement.Changed {
				marker = yellow(fmt.Sprintf("changed (%.1f%%)", out.Measurement.Magnitude*100))
			}
			fmt.Printf("  %s %s: %s\n", green("✓"), out.SourceID, marker)
		}
		if len(res.Errors) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", "", "fetch a single source by id")
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "fetch all configured sources")
	fetchCmd.Flags().BoolVar(&fetchTest, "test", false, "check source reachability without saving state")
	rootCmd.AddCommand(fetchCmd)
}
