package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
sources:
  cdc_sti:
    name: CDC STI Guidelines
    type: cdc_guidelines
    url: https://example.org/sti
    selectors:
      content: ".syndicate, .content"
    consults:
      - neuro_syphilis
  fda_safety:
    name: FDA Safety Alerts
    type: fda_alerts
    url: https://example.org/alerts
    drug_keywords:
      - penicillin

consults:
  neuro_syphilis:
    name: Neurosyphilis
    file: src/data/trees/neuro.ts
    keywords:
      - penicillin
    update_rules:
      - type: treatment_table
        threshold: major
        auto_update: true

scraper:
  user_agent: medwatch/1.0
  timeout: 45s
  request_delay: 3s
  thresholds:
    minor: 0.05
    major: 0.15
    critical: 0.30

scheduler:
  daily_run_time: "03:30"
  timezone: UTC

notifications:
  publish:
    auto_commit: true
  email:
    enabled: true
    from: medwatch@example.com
    to:
      - oncall@example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Dir(path), cfg.BaseDir)

	src := cfg.Sources["cdc_sti"]
	require.NotNil(t, src)
	assert.Equal(t, "cdc_guidelines", src.Type)
	assert.Equal(t, ".syndicate, .content", src.Selectors["content"])
	assert.Equal(t, []string{"neuro_syphilis"}, src.Consults)

	c := cfg.Consults["neuro_syphilis"]
	require.NotNil(t, c)
	require.Len(t, c.UpdateRules, 1)
	assert.Equal(t, "treatment_table", c.UpdateRules[0].Type)
	assert.Equal(t, "major", c.UpdateRules[0].Threshold)
	assert.True(t, c.UpdateRules[0].AutoUpdate)

	assert.Equal(t, 45*time.Second, cfg.Scraper.RequestTimeout())
	assert.Equal(t, 3*time.Second, cfg.Scraper.Delay())
	assert.Equal(t, "03:30", cfg.Scheduler.DailyRunTime)
	assert.True(t, cfg.Notifications.Publish.AutoCommit)
	assert.Equal(t, []string{"oncall@example.com"}, cfg.Notifications.Email.To)
}

func TestPathHelpers(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	base := cfg.BaseDir
	assert.Equal(t, filepath.Join(base, "data", "hashes"), cfg.HashesDir())
	assert.Equal(t, filepath.Join(base, "data", "raw"), cfg.RawDir())
	assert.Equal(t, filepath.Join(base, "data", "review_queue.json"), cfg.ReviewQueuePath())
	assert.Equal(t, filepath.Join(base, "data", "run_status.json"), cfg.RunStatusPath())
	assert.Equal(t, filepath.Join(base, "data", "daemon.lock"), cfg.LockPath())

	consultPath, err := cfg.ConsultPath("neuro_syphilis")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "src", "data", "trees", "neuro.ts"), consultPath)

	_, err = cfg.ConsultPath("missing")
	assert.Error(t, err)

	// No json_output configured falls back to the data dir.
	assert.Equal(t, filepath.Join(base, "data", "consults", "neuro_syphilis.json"),
		cfg.ExportPath("neuro_syphilis"))
}

func TestValidateRejectsUnknownConsultRef(t *testing.T) {
	path := writeConfig(t, `
sources:
  cdc_sti:
    name: CDC
    type: cdc
    url: https://example.org
    consults:
      - ghost
scraper:
  thresholds:
    minor: 0.05
    major: 0.15
    critical: 0.30
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown consult "ghost"`)
}

func TestValidateRejectsUnorderedThresholds(t *testing.T) {
	path := writeConfig(t, `
scraper:
  thresholds:
    minor: 0.5
    major: 0.3
    critical: 0.9
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minor < major < critical")
}

func TestScraperDefaultsOnEmptyDurations(t *testing.T) {
	var s Scraper
	assert.Equal(t, 30*time.Second, s.RequestTimeout())
	assert.Equal(t, 2*time.Second, s.Delay())

	s.Timeout = "bogus"
	assert.Equal(t, 30*time.Second, s.RequestTimeout())
}

func TestSaveDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Scraper.Thresholds.Minor)
	assert.Equal(t, "02:00", cfg.Scheduler.DailyRunTime)
	assert.NotEmpty(t, cfg.Scraper.UserAgent)
}
