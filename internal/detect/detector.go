// Package detect computes content fingerprints and change magnitudes between
// consecutive snapshots of a source.
package detect

import (
	"fmt"
	"time"

	"github.com/medkitt/medwatch/internal/hash"
	"github.com/medkitt/medwatch/internal/snapshot"
	"github.com/medkitt/medwatch/internal/types"
)

// Detector measures how a freshly fetched payload differs from the previous
// run's snapshot, then persists the new fingerprint and archives the payload.
type Detector struct {
	snaps *snapshot.Store
}

// New creates a detector backed by the given snapshot store.
func New(snaps *snapshot.Store) *Detector {
	return &Detector{snaps: snaps}
}

// Detect fingerprints the payload, compares it against the stored previous
// state, archives the payload, and records the new fingerprint.
//
// Changed is fingerprint-driven; Magnitude is text-driven against the newest
// archived payload. The two can disagree when archived text is missing while
// the fingerprint matches (first run after a state migration); that
// combination is preserved, not reconciled.
//
// On any error the previous fingerprint is left untouched so the next run
// compares against valid state.
func (d *Detector) Detect(sourceID string, payload *types.Payload) (types.ChangeMeasurement, error) {
	// The fetch timestamp is excluded so an identical refetch produces an
	// identical fingerprint.
	fpPayload := *payload
	fpPayload.FetchedAt = time.Time{}
	fp, err := hash.Fingerprint(&fpPayload)
	if err != nil {
		return types.ChangeMeasurement{}, fmt.Errorf("fingerprinting %s: %w", sourceID, err)
	}

	prevFP, hasPrev := d.snaps.Fingerprint(sourceID)
	prevText := d.snaps.LatestText(sourceID)

	changed := false
	if hasPrev {
		changed = fp != prevFP
	} else {
		// First run counts as changed whenever there is content.
		changed = !payload.Empty()
	}

	m := types.ChangeMeasurement{
		SourceID:            sourceID,
		Changed:             changed,
		Magnitude:           Magnitude(prevText, payload.Text()),
		Fingerprint:         fp,
		PreviousFingerprint: prevFP,
	}

	// Archive before updating the fingerprint: a failed archive must leave
	// the previous fingerprint in place.
	if _, err := d.snaps.Archive(sourceID, payload); err != nil {
		return types.ChangeMeasurement{}, err
	}
	if err := d.snaps.SaveFingerprint(sourceID, fp); err != nil {
		return types.ChangeMeasurement{}, err
	}

	return m, nil
}
