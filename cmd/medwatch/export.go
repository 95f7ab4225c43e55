package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [consult-id...]",
	Short: "Export consults to their canonical JSON form",
	Long: `Write the canonical JSON export (with node counts) for the named
consults, or for every configured consult when none are given.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		o := buildOrchestrator(cfg, logger)

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		ids := args
		if len(ids) == 0 {
			for id := range cfg.Consults {
				ids = append(ids, id)
			}
			sort.Strings(ids)
		}

		failures := 0
		for _, id := range ids {
			if err := o.ExportConsult(id, true); err != nil {
				fmt.Printf("  %s %s: %v\n", red("✗"), id, err)
				failures++
				continue
			}
			fmt.Printf("  %s %s -> %s\n", green("✓"), id, cfg.ExportPath(id))
		}
		if failures > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
