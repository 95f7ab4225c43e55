package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medkitt/medwatch/internal/daemon"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Print a crontab entry for the daily run",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		workDir, err := os.Getwd()
		if err != nil {
			workDir = cfg.BaseDir
		}
		entry, err := daemon.CronEntry(cfg.Scheduler, workDir, os.Args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(entry)
		fmt.Println("\nTo install, run: crontab -e")
		fmt.Println("And paste the above line")
	},
}

func init() {
	rootCmd.AddCommand(cronCmd)
}
