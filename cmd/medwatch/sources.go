package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Configured Sources ==="))

		ids := make([]string, 0, len(cfg.Sources))
		for id := range cfg.Sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			src := cfg.Sources[id]
			fmt.Printf("  %s (%s)\n", id, src.Name)
			fmt.Printf("    Type: %s\n", src.Type)
			fmt.Printf("    URL:  %s\n", src.URL)
			if len(src.Consults) > 0 {
				fmt.Printf("    Consults: %s\n", strings.Join(src.Consults, ", "))
			} else {
				fmt.Printf("    Consults: %s\n", gray("none"))
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
