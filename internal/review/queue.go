// Package review maintains the durable queue of update candidates awaiting
// human sign-off.
package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/medkitt/medwatch/internal/types"
)

// Queue is an append-only review log backed by a single JSON file.
//
// Entries are never deduplicated: the same (consult, source) pair enqueued on
// successive runs produces successive independent entries. That is deliberate
// audit-log behavior.
//
// Persistence rewrites the whole file on every mutation; callers must not
// assume partial-write atomicity across process crashes.
type Queue struct {
	path    string
	entries []types.ReviewEntry
}

// Open loads the queue from its backing file, starting empty when the file
// does not exist yet.
func Open(path string) (*Queue, error) {
	q := &Queue{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading review queue: %w", err)
	}
	if err := json.Unmarshal(data, &q.entries); err != nil {
		return nil, fmt.Errorf("parsing review queue: %w", err)
	}
	return q, nil
}

// Enqueue converts an update candidate into a pending review entry and
// persists the queue.
func (q *Queue) Enqueue(candidate *types.UpdateCandidate) (types.ReviewEntry, error) {
	entry := types.ReviewEntry{
		ID:        uuid.NewString(),
		ConsultID: candidate.ConsultID,
		SourceID:  candidate.SourceID,
		Tier:      candidate.Tier,
		Reason:    candidate.Reason,
		Proposed:  candidate.Proposed,
		Timestamp: candidate.Timestamp,
		Status:    types.StatusPendingReview,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	q.entries = append(q.entries, entry)
	if err := q.persist(); err != nil {
		return types.ReviewEntry{}, err
	}
	return entry, nil
}

// List returns the entries in insertion order.
func (q *Queue) List() []types.ReviewEntry {
	out := make([]types.ReviewEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Pending returns the number of entries awaiting review.
func (q *Queue) Pending() int {
	n := 0
	for _, e := range q.entries {
		if e.Status == types.StatusPendingReview {
			n++
		}
	}
	return n
}

func (q *Queue) persist() error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("creating review queue dir: %w", err)
	}
	data, err := json.MarshalIndent(q.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding review queue: %w", err)
	}
	if err := os.WriteFile(q.path, data, 0644); err != nil {
		return fmt.Errorf("writing review queue: %w", err)
	}
	return nil
}
