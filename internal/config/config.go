// Package config loads the declarative medwatch configuration: monitored
// sources, tracked consults, scraper tuning, scheduler, and notification
// settings. The configuration is loaded once at startup into an explicit
// Config value that is passed to every component; there is no ambient global
// configuration state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Source configures one externally monitored origin of guideline content.
// Sources are immutable at run time.
type Source struct {
	// Name is the human-readable source name used in summaries.
	Name string `yaml:"name"`

	// Type routes the source to a fetcher. Recognized prefixes:
	// "cdc" (guideline page), "fda" (safety alerts), "pubmed" (literature).
	Type string `yaml:"type"`

	// URL is the origin to fetch.
	URL string `yaml:"url"`

	// Selectors holds extraction hints keyed by role (content, tables,
	// updates, alerts). Comma-separated CSS-class hints.
	Selectors map[string]string `yaml:"selectors,omitempty"`

	// Consults lists the ids of consults this source can affect.
	Consults []string `yaml:"consults,omitempty"`

	// DrugKeywords filters alert-feed entries to relevant drugs.
	DrugKeywords []string `yaml:"drug_keywords,omitempty"`

	// SearchQuery is the literature search expression.
	SearchQuery string `yaml:"search_query,omitempty"`

	// MaxResults caps literature search results. Default 10.
	MaxResults int `yaml:"max_results,omitempty"`
}

// UpdateRule overrides the computed change tier for a consult when a matching
// structural signal is present, and may authorize automatic application.
type UpdateRule struct {
	// Type is the diff-signal type the rule matches, e.g. "treatment_table"
	// or "guideline_update".
	Type string `yaml:"type"`

	// Threshold is the tier to assign when the rule matches
	// ("minor", "major", or "critical").
	Threshold string `yaml:"threshold"`

	// AutoUpdate authorizes applying the change without human review.
	AutoUpdate bool `yaml:"auto_update"`
}

// Consult configures one tracked knowledge artifact.
type Consult struct {
	Name string `yaml:"name"`

	// File is the artifact path, relative to the config file's directory.
	File string `yaml:"file"`

	// Keywords matched against fetched content to signal relevance.
	Keywords []string `yaml:"keywords,omitempty"`

	// UpdateRules override tier/approval per diff-signal type.
	UpdateRules []UpdateRule `yaml:"update_rules,omitempty"`

	// JSONOutput is the canonical export path, relative to the config
	// file's directory. Defaults to data/consults/<id>.json.
	JSONOutput string `yaml:"json_output,omitempty"`
}

// Thresholds are the global magnitude floors for tier selection, configured
// per deployment. Each value is a fraction in [0,1].
type Thresholds struct {
	Minor    float64 `yaml:"minor"`
	Major    float64 `yaml:"major"`
	Critical float64 `yaml:"critical"`
}

// Scraper tunes outbound fetching.
type Scraper struct {
	// UserAgent identifies the client to upstream services.
	UserAgent string `yaml:"user_agent"`

	// Timeout is the per-request network timeout, e.g. "30s".
	Timeout string `yaml:"timeout,omitempty"`

	// RequestDelay is the enforced minimum delay between fetches,
	// e.g. "2s".
	RequestDelay string `yaml:"request_delay,omitempty"`

	Thresholds Thresholds `yaml:"thresholds"`
}

// RequestTimeout returns the parsed per-request timeout, defaulting to 30s.
func (s Scraper) RequestTimeout() time.Duration {
	return parseDurationOr(s.Timeout, 30*time.Second)
}

// Delay returns the parsed inter-request delay, defaulting to 2s.
func (s Scraper) Delay() time.Duration {
	return parseDurationOr(s.RequestDelay, 2*time.Second)
}

// Scheduler configures the daily run of the daemon.
type Scheduler struct {
	// DailyRunTime is "HH:MM" in the configured timezone. Default "02:00".
	DailyRunTime string `yaml:"daily_run_time"`

	// Timezone is an IANA zone name. Default "America/Chicago".
	Timezone string `yaml:"timezone"`
}

// Publish controls the git-commit publishing step.
type Publish struct {
	AutoCommit bool `yaml:"auto_commit"`
}

// Email configures outbound email notification.
type Email struct {
	Enabled bool     `yaml:"enabled"`
	From    string   `yaml:"from,omitempty"`
	To      []string `yaml:"to,omitempty"`
}

// Chat configures webhook chat notification.
type Chat struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// Notifications groups the outbound side effects of a run.
type Notifications struct {
	Publish Publish `yaml:"publish"`
	Email   Email   `yaml:"email"`
	Chat    Chat    `yaml:"chat"`
}

// Config is the full medwatch configuration.
type Config struct {
	Sources       map[string]*Source  `yaml:"sources"`
	Consults      map[string]*Consult `yaml:"consults"`
	Scraper       Scraper             `yaml:"scraper"`
	Scheduler     Scheduler           `yaml:"scheduler"`
	Notifications Notifications       `yaml:"notifications"`

	// DataDir holds all durable pipeline state (fingerprints, raw
	// snapshots, review queue, run status, lock file, logs). Relative
	// paths are resolved against the config file's directory.
	// Default "data".
	DataDir string `yaml:"data_dir,omitempty"`

	// BaseDir is the directory of the loaded config file. Not serialized.
	BaseDir string `yaml:"-"`
}

// Load reads and validates the configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.BaseDir = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-references and threshold ordering.
func (c *Config) Validate() error {
	t := c.Scraper.Thresholds
	if t.Minor < 0 || t.Critical > 1 {
		return fmt.Errorf("thresholds must be fractions in [0,1]: %+v", t)
	}
	if !(t.Minor < t.Major && t.Major < t.Critical) {
		return fmt.Errorf("thresholds must satisfy minor < major < critical: %+v", t)
	}

	for id, src := range c.Sources {
		for _, consultID := range src.Consults {
			if _, ok := c.Consults[consultID]; !ok {
				return fmt.Errorf("source %q references unknown consult %q", id, consultID)
			}
		}
	}

	for id, consult := range c.Consults {
		if consult.File == "" {
			return fmt.Errorf("consult %q has no file path", id)
		}
	}

	return nil
}

// resolve joins a possibly-relative path against the config base directory.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

func (c *Config) dataDir() string {
	dir := c.DataDir
	if dir == "" {
		dir = "data"
	}
	return c.resolve(dir)
}

// HashesDir is where per-source fingerprint files live.
func (c *Config) HashesDir() string { return filepath.Join(c.dataDir(), "hashes") }

// RawDir is where timestamped raw snapshots are archived.
func (c *Config) RawDir() string { return filepath.Join(c.dataDir(), "raw") }

// ReviewQueuePath is the durable review-queue file.
func (c *Config) ReviewQueuePath() string { return filepath.Join(c.dataDir(), "review_queue.json") }

// RunStatusPath is the durable run-history file.
func (c *Config) RunStatusPath() string { return filepath.Join(c.dataDir(), "run_status.json") }

// LockPath is the daemon liveness marker file.
func (c *Config) LockPath() string { return filepath.Join(c.dataDir(), "daemon.lock") }

// LogsDir holds pipeline log files.
func (c *Config) LogsDir() string { return filepath.Join(c.dataDir(), "logs") }

// ConsultPath returns the resolved artifact path for a consult.
func (c *Config) ConsultPath(id string) (string, error) {
	consult, ok := c.Consults[id]
	if !ok {
		return "", fmt.Errorf("consult %q not found in configuration", id)
	}
	return c.resolve(consult.File), nil
}

// ExportPath returns the resolved canonical-JSON export path for a consult.
func (c *Config) ExportPath(id string) string {
	if consult, ok := c.Consults[id]; ok && consult.JSONOutput != "" {
		return c.resolve(consult.JSONOutput)
	}
	return filepath.Join(c.dataDir(), "consults", id+".json")
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Default returns a config with sensible defaults and no sources or consults.
func Default() *Config {
	return &Config{
		Sources:  map[string]*Source{},
		Consults: map[string]*Consult{},
		Scraper: Scraper{
			UserAgent:    "medwatch/1.0 (guideline monitor)",
			Timeout:      "30s",
			RequestDelay: "2s",
			Thresholds: Thresholds{
				Minor:    0.05,
				Major:    0.15,
				Critical: 0.30,
			},
		},
		Scheduler: Scheduler{
			DailyRunTime: "02:00",
			Timezone:     "America/Chicago",
		},
	}
}

// SaveDefault writes the default configuration to a file.
func SaveDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
