// Package snapshot persists the durable per-source fetch state: the current
// content fingerprint and the timestamped archive of raw payloads. Superseded
// snapshots are retained as history and never deleted in-run.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/medkitt/medwatch/internal/types"
)

// Store owns Snapshot and fingerprint persistence for all sources.
//
// There is no file-level locking: two independently launched runs can race on
// the same fingerprint and archive files. Single-flight execution is the
// caller's responsibility (see the daemon's liveness marker).
type Store struct {
	hashesDir string
	rawDir    string
	now       func() time.Time
}

// New creates a store rooted at the given directories, creating them if
// needed.
func New(hashesDir, rawDir string) (*Store, error) {
	for _, dir := range []string{hashesDir, rawDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating snapshot dir %s: %w", dir, err)
		}
	}
	return &Store{hashesDir: hashesDir, rawDir: rawDir, now: time.Now}, nil
}

// Fingerprint returns the stored fingerprint for a source, or ok=false when
// the source has never been fetched.
func (s *Store) Fingerprint(sourceID string) (fp string, ok bool) {
	data, err := os.ReadFile(s.hashPath(sourceID))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// SaveFingerprint records the fingerprint for the next run's comparison.
func (s *Store) SaveFingerprint(sourceID, fp string) error {
	if err := os.WriteFile(s.hashPath(sourceID), []byte(fp), 0644); err != nil {
		return fmt.Errorf("saving fingerprint for %s: %w", sourceID, err)
	}
	return nil
}

// Archive writes the payload under a timestamped key. Existing archives are
// never overwritten; a collision within the same second gets a numeric
// suffix.
func (s *Store) Archive(sourceID string, payload *types.Payload) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding payload for %s: %w", sourceID, err)
	}

	stamp := s.now().Format("20060102_150405")
	path := filepath.Join(s.rawDir, fmt.Sprintf("%s_%s.json", sourceID, stamp))
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(s.rawDir, fmt.Sprintf("%s_%s_%d.json", sourceID, stamp, n))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("archiving payload for %s: %w", sourceID, err)
	}
	return path, nil
}

// Latest returns the most recently archived payload for a source, or ok=false
// when no archive exists.
func (s *Store) Latest(sourceID string) (payload *types.Payload, ok bool) {
	paths, err := filepath.Glob(filepath.Join(s.rawDir, sourceID+"_*.json"))
	if err != nil || len(paths) == 0 {
		return nil, false
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	data, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, false
	}
	var p types.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// LatestText returns the textual content of the newest archived payload, or
// "" when none exists. Used as the previous side of magnitude comparison.
func (s *Store) LatestText(sourceID string) string {
	p, ok := s.Latest(sourceID)
	if !ok {
		return ""
	}
	return p.Text()
}

func (s *Store) hashPath(sourceID string) string {
	return filepath.Join(s.hashesDir, sourceID+".hash")
}
