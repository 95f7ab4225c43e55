package consult

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

const sampleArtifact = `import { DecisionNode } from '../types';

export const NEURO_NODES: DecisionNode[] = [
  {
    id: 'start',
    type: 'question',
    title: 'Suspected neurosyphilis?',
    body: 'Evaluate CSF findings before initiating treatment',
    citation: [1, 2],
  },
  {
    id: 'treat',
    type: 'action',
    title: 'Treatment',
    body: 'Aqueous crystalline penicillin G 18-24 million units per day',
    citation: [3],
  },
];

export const NEURO_META = {
  version: '1.2',
};
`

func newTestStore(t *testing.T) (*Store, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "neuro.ts"), []byte(sampleArtifact), 0644))

	cfg := config.Default()
	cfg.BaseDir = dir
	cfg.Consults["neurosyphilis"] = &config.Consult{
		Name:     "Neurosyphilis Workup",
		File:     "neuro.ts",
		Keywords: []string{"penicillin", "CSF"},
	}

	return NewStore(cfg, log.New(io.Discard, "", 0)), cfg
}

func TestLoadParsesArtifact(t *testing.T) {
	store, _ := newTestStore(t)

	consult, err := store.Load("neurosyphilis")
	require.NoError(t, err)

	assert.Equal(t, "neurosyphilis", consult.ID)
	assert.Equal(t, "Neurosyphilis Workup", consult.Name)
	assert.Equal(t, "1.2", consult.Version)
	require.Len(t, consult.Nodes, 2)
	assert.Equal(t, "start", consult.Nodes[0].ID)
	assert.Equal(t, "question", consult.Nodes[0].Type)
	assert.Equal(t, []int{1, 2}, consult.Nodes[0].Citations)
	assert.Equal(t, "treat", consult.Nodes[1].ID)
	assert.Contains(t, consult.Nodes[1].Body, "penicillin G")
}

func TestLoadUnknownConsult(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load("nonexistent")
	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "consult", cfgErr.Kind)
}

func TestParseNodesToleratesMalformedInput(t *testing.T) {
	// An anchor with no closing brace is silently dropped, not an error.
	content := "{ id: 'orphan', type: 'question'"
	assert.Empty(t, ParseNodes(content))

	// A node missing optional fields still parses.
	nodes := ParseNodes("{ id: 'bare' },\n")
	require.Len(t, nodes, 1)
	assert.Equal(t, "bare", nodes[0].ID)
	assert.Empty(t, nodes[0].Type)
}

func TestParseVersionDefault(t *testing.T) {
	assert.Equal(t, "1.0", ParseVersion("no version field here"))
	assert.Equal(t, "2.3", ParseVersion("version: '2.3'"))
}

func TestIsNovelBlock(t *testing.T) {
	nodes := []types.ConsultNode{
		{ID: "treat", Body: "Aqueous crystalline penicillin G 18-24 million units per day"},
	}

	assert.False(t, IsNovelBlock(nodes, "penicillin G 18-24 million units"))
	assert.True(t, IsNovelBlock(nodes, "Ceftriaxone 2 g IV daily for 10-14 days"))

	// An empty block matches every body and is never novel.
	assert.False(t, IsNovelBlock(nodes, ""))
}

func testCandidate() *types.UpdateCandidate {
	return &types.UpdateCandidate{
		ConsultID: "neurosyphilis",
		SourceID:  "cdc_syphilis_detail",
		Tier:      types.TierMinor,
		Reason:    "detected 1 new treatment tables, 2 keyword matches",
		Timestamp: time.Now(),
	}
}

func TestApplyDryRunDoesNotMutate(t *testing.T) {
	store, cfg := newTestStore(t)
	artifactPath := filepath.Join(cfg.BaseDir, "neuro.ts")

	require.NoError(t, store.Apply(testCandidate(), true))

	data, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact, string(data), "dry run must leave the artifact untouched")

	_, err = os.Stat(cfg.ExportPath("neurosyphilis"))
	assert.True(t, os.IsNotExist(err), "dry run must not export")
}

func TestApplyAnnotatesAndExports(t *testing.T) {
	store, cfg := newTestStore(t)
	artifactPath := filepath.Join(cfg.BaseDir, "neuro.ts")

	require.NoError(t, store.Apply(testCandidate(), false))

	data, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "// AUTO-UPDATE:")
	assert.Contains(t, content, "// Source: cdc_syphilis_detail")
	// The annotation sits before the first exported declaration.
	assert.Less(t, strings.Index(content, "// AUTO-UPDATE:"), strings.Index(content, "export const"))

	exportData, err := os.ReadFile(cfg.ExportPath("neurosyphilis"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(exportData, &doc))
	assert.Equal(t, "neurosyphilis", doc["id"])
	assert.Equal(t, "Neurosyphilis Workup", doc["name"])
	assert.Equal(t, "1.2", doc["version"], "apply must not advance the version")
	assert.NotContains(t, doc, "node_count")
	assert.Len(t, doc["nodes"], 2)
}

func TestApplyMissingConsultPropagates(t *testing.T) {
	store, _ := newTestStore(t)

	candidate := testCandidate()
	candidate.ConsultID = "missing"

	err := store.Apply(candidate, false)
	var cfgErr *types.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestExportWithNodeCount(t *testing.T) {
	store, cfg := newTestStore(t)

	consult, err := store.Load("neurosyphilis")
	require.NoError(t, err)
	require.NoError(t, store.ExportWithNodeCount(consult))

	exportData, err := os.ReadFile(cfg.ExportPath("neurosyphilis"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(exportData, &doc))
	assert.Equal(t, float64(2), doc["node_count"])
}
