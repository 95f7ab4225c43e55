// Package runstatus persists aggregate pipeline run statistics.
package runstatus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/medkitt/medwatch/internal/types"
)

// historyLimit bounds the per-run history kept in the status file.
const historyLimit = 10

// Status is the durable run ledger. Counters are monotonic; RecentRuns keeps
// the newest runs in chronological order.
type Status struct {
	FirstRun    time.Time         `json:"first_run"`
	LastRun     time.Time         `json:"last_run"`
	LastSuccess time.Time         `json:"last_success,omitempty"`
	RunCount    int               `json:"run_count"`
	ErrorCount  int               `json:"error_count"`
	LastError   string            `json:"last_error,omitempty"`
	RecentRuns  []types.RunRecord `json:"recent_runs"`
}

// Store reads and writes the status file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the current status, zero-valued when the file does not exist.
func (s *Store) Load() (Status, error) {
	var st Status
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading run status: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing run status: %w", err)
	}
	return st, nil
}

// RecordRun folds one run result into the status file and persists it.
func (s *Store) RecordRun(result *types.RunResult) error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	if st.FirstRun.IsZero() {
		st.FirstRun = result.Timestamp
	}
	st.LastRun = result.Timestamp
	st.RunCount++
	if result.Success {
		st.LastSuccess = result.Timestamp
	} else {
		st.ErrorCount++
		if len(result.Errors) > 0 {
			st.LastError = result.Errors[0]
		}
	}

	st.RecentRuns = append(st.RecentRuns, result.Record())
	if len(st.RecentRuns) > historyLimit {
		st.RecentRuns = st.RecentRuns[len(st.RecentRuns)-historyLimit:]
	}

	return s.save(st)
}

func (s *Store) save(st Status) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating run status dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run status: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing run status: %w", err)
	}
	return nil
}
