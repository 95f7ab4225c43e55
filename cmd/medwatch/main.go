package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/fetch"
	"github.com/medkitt/medwatch/internal/notify"
	"github.com/medkitt/medwatch/internal/pipeline"
	"github.com/medkitt/medwatch/internal/publish"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "medwatch",
	Short: "Medical guideline monitoring pipeline",
	Long: `medwatch monitors configured medical-guideline sources for content
changes, classifies their severity, and applies or queues updates to the
local consult artifacts.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
}

// loadConfig loads the configuration or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger logs to stderr and, when possible, a timestamped file under the
// configured logs directory.
func newLogger(cfg *config.Config) *log.Logger {
	if err := os.MkdirAll(cfg.LogsDir(), 0755); err == nil {
		name := filepath.Join(cfg.LogsDir(),
			fmt.Sprintf("medwatch_%s.log", time.Now().Format("20060102_150405")))
		if f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			return log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags)
		}
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}

// buildOrchestrator assembles the full pipeline. Publishing degrades to
// disabled when git is unavailable.
func buildOrchestrator(cfg *config.Config, logger *log.Logger) *pipeline.Orchestrator {
	o, err := pipeline.New(cfg, fetch.New(cfg.Scraper), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	o.SetNotifier(notify.New(cfg.Notifications, logger))

	if pub, err := publish.New(context.Background(), cfg.BaseDir); err != nil {
		logger.Printf("publishing disabled: %v", err)
	} else {
		o.SetPublisher(pub)
	}
	return o
}
