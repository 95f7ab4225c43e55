// Package classify maps change measurements and structural diff signals to a
// severity tier and an auto-approval decision, producing the update candidate
// that drives disposition.
package classify

import (
	"fmt"
	"time"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// Classifier applies the deployment-wide magnitude thresholds and per-consult
// update rules.
type Classifier struct {
	thresholds config.Thresholds
	now        func() time.Time
}

// New creates a classifier with the given global thresholds.
func New(thresholds config.Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds, now: time.Now}
}

// Classify builds the update candidate for one (consult, source) pair.
//
// When the diff carries no structural signal and no keyword match at all,
// no candidate is produced: the pair is a no-change outcome, not a
// minor-tier update.
//
// The tier starts from the measured magnitude against the global thresholds;
// a per-consult rule matched by diff-signal type can override it and
// authorize automatic application. Candidates only require review when the
// tier is major or critical and the change was not auto-approved.
func (c *Classifier) Classify(consultID, sourceID string, m types.ChangeMeasurement, diff types.ProposedChanges, consultVersion string, rules []config.UpdateRule) *types.UpdateCandidate {
	if diff.Empty() {
		return nil
	}

	tier := c.TierFor(m.Magnitude)
	autoApproved := false

	for _, rule := range rules {
		if !ruleMatches(rule.Type, diff) {
			continue
		}
		if override := types.ChangeTier(rule.Threshold); override.Rank() > 0 {
			tier = override
		}
		autoApproved = rule.AutoUpdate
		break
	}

	requiresReview := (tier == types.TierMajor || tier == types.TierCritical) && !autoApproved

	return &types.UpdateCandidate{
		ConsultID:        consultID,
		SourceID:         sourceID,
		Tier:             tier,
		ChangePercentage: m.Magnitude,
		CurrentVersion:   consultVersion,
		Proposed:         diff,
		Reason:           reason(diff),
		Timestamp:        c.now(),
		AutoApproved:     autoApproved,
		RequiresReview:   requiresReview,
	}
}

// TierFor maps a change magnitude to its severity tier under the global
// thresholds.
func (c *Classifier) TierFor(magnitude float64) types.ChangeTier {
	switch {
	case magnitude >= c.thresholds.Critical:
		return types.TierCritical
	case magnitude >= c.thresholds.Major:
		return types.TierMajor
	default:
		return types.TierMinor
	}
}

func ruleMatches(signalType string, diff types.ProposedChanges) bool {
	switch signalType {
	case SignalTreatmentTable:
		return len(diff.NewTables) > 0
	case SignalGuidelineUpdate:
		return len(diff.Markers) > 0
	case SignalKeyword:
		return len(diff.KeywordMatches) > 0
	}
	return false
}

// reason builds the human-readable summary from counted signals only, so the
// same diff always produces the same string.
func reason(diff types.ProposedChanges) string {
	r := fmt.Sprintf("detected %d new treatment tables, %d keyword matches",
		len(diff.NewTables), len(diff.KeywordMatches))
	if len(diff.Markers) > 0 {
		r += fmt.Sprintf(", %d guideline update markers", len(diff.Markers))
	}
	return r
}
