package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medkitt/medwatch/internal/daemon"
	"github.com/medkitt/medwatch/internal/pipeline"
	"github.com/medkitt/medwatch/internal/types"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run as a scheduled daemon",
	Long: `Run the pipeline immediately, then daily at the configured time.
A liveness lock in the data directory guards against a second daemon.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		o := buildOrchestrator(cfg, logger)

		run := func(ctx context.Context) (*types.RunResult, error) {
			return o.Run(ctx, pipeline.RunOptions{})
		}
		d := daemon.New(cfg.Scheduler, cfg.LockPath(), run, logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
