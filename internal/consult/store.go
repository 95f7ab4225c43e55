// Package consult is the artifact store: it loads the structured
// representation of a consult from its legacy text artifact, applies update
// candidates to it, and exports the canonical JSON form.
package consult

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// Store exclusively owns consult mutation. Consults are never deleted by the
// pipeline, and the version field is never advanced by automatic patches;
// version bumps are an operator action.
type Store struct {
	cfg *config.Config
	log *log.Logger
	now func() time.Time
}

// NewStore creates an artifact store over the configured consults.
func NewStore(cfg *config.Config, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Store{cfg: cfg, log: logger, now: time.Now}
}

// Load reads a consult artifact and recovers its structured form. An unknown
// consult id yields a ConfigError; a missing artifact file is an error for
// this consult only.
func (s *Store) Load(id string) (*types.Consult, error) {
	consultCfg, ok := s.cfg.Consults[id]
	if !ok {
		return nil, &types.ConfigError{Kind: "consult", ID: id}
	}

	path, err := s.cfg.ConsultPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading consult file %s: %w", path, err)
	}
	content := string(data)

	return &types.Consult{
		ID:       id,
		Name:     consultCfg.Name,
		Version:  ParseVersion(content),
		FilePath: path,
		Content:  content,
		Nodes:    ParseNodes(content),
		Keywords: consultCfg.Keywords,
	}, nil
}

// Apply disposes one update candidate against its consult. With dryRun all
// read-side work happens (load, validate) and success is reported without
// touching the artifact. A real apply inserts a provenance annotation,
// rewrites the artifact, and refreshes the canonical JSON export.
//
// A filesystem failure is fatal to this candidate only; callers continue
// with the remaining consults.
func (s *Store) Apply(candidate *types.UpdateCandidate, dryRun bool) error {
	consult, err := s.Load(candidate.ConsultID)
	if err != nil {
		return err
	}

	prefix := ""
	if dryRun {
		prefix = "[DRY RUN] "
	}
	s.log.Printf("%sApplying update to %s", prefix, candidate.ConsultID)
	s.log.Printf("  Reason: %s", candidate.Reason)

	if dryRun {
		return nil
	}

	annotated := annotate(consult.Content, candidate, s.now())
	if err := os.WriteFile(consult.FilePath, []byte(annotated), 0644); err != nil {
		return &types.ArtifactWriteError{ConsultID: candidate.ConsultID, Err: err}
	}

	if err := s.Export(consult); err != nil {
		return err
	}

	s.log.Printf("Applied update to %s", candidate.ConsultID)
	return nil
}

// Export writes the canonical JSON form of a consult to its configured
// export path, validating the document against the export schema first.
func (s *Store) Export(consult *types.Consult) error {
	return s.export(consult, false)
}

// ExportWithNodeCount is the standalone exporter variant: identical to
// Export but includes the node_count field.
func (s *Store) ExportWithNodeCount(consult *types.Consult) error {
	return s.export(consult, true)
}

func (s *Store) export(consult *types.Consult, withNodeCount bool) error {
	doc := buildExportDoc(consult, s.now(), withNodeCount)

	if errs, err := validateExport(doc); err != nil {
		return fmt.Errorf("validating export for %s: %w", consult.ID, err)
	} else if len(errs) > 0 {
		return fmt.Errorf("export for %s violates schema: %s", consult.ID, strings.Join(errs, "; "))
	}

	path := s.cfg.ExportPath(consult.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &types.ArtifactWriteError{ConsultID: consult.ID, Err: err}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export for %s: %w", consult.ID, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &types.ArtifactWriteError{ConsultID: consult.ID, Err: err}
	}

	s.log.Printf("Exported %s to %s", consult.ID, path)
	return nil
}

// annotate inserts the provenance block before the first exported
// declaration, or appends it when the artifact has none. The version field is
// deliberately left untouched.
func annotate(content string, candidate *types.UpdateCandidate, now time.Time) string {
	block := fmt.Sprintf("\n// AUTO-UPDATE: %s\n// Source: %s\n// Changes: %s\n",
		now.Format(time.RFC3339), candidate.SourceID, candidate.Reason)

	if idx := strings.Index(content, "export const"); idx >= 0 {
		return content[:idx] + block + "\n" + content[idx:]
	}
	return content + block
}
