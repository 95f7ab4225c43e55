// Package types defines the core domain records shared across the medwatch
// pipeline: fetched payloads, change measurements, update candidates, review
// entries, and run results.
package types

import (
	"strings"
	"time"
)

// ChangeTier classifies the severity of a detected content change.
type ChangeTier string

const (
	TierMinor    ChangeTier = "minor"
	TierMajor    ChangeTier = "major"
	TierCritical ChangeTier = "critical"
)

// Rank returns the ordering position of a tier (minor < major < critical).
// Unknown tiers rank below minor.
func (t ChangeTier) Rank() int {
	switch t {
	case TierMinor:
		return 1
	case TierMajor:
		return 2
	case TierCritical:
		return 3
	}
	return 0
}

// Alert is a single safety alert extracted from an alert-feed source,
// filtered down to the drugs the deployment monitors.
type Alert struct {
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	MentionedDrugs []string `json:"mentioned_drugs"`
	FullText       string   `json:"full_text"`
}

// Article is one literature search hit from an academic-search source.
type Article struct {
	PMID          string   `json:"pmid"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	PublishedDate string   `json:"publication_date,omitempty"`
	URL           string   `json:"url"`
}

// Payload is the structured result of fetching one source once. Which fields
// are populated depends on the source type: guideline pages fill Content and
// Tables, alert feeds fill Alerts, literature searches fill Articles.
type Payload struct {
	Source         string       `json:"source"`
	URL            string       `json:"url"`
	Title          string       `json:"title,omitempty"`
	Content        string       `json:"content,omitempty"`
	Tables         [][][]string `json:"tables,omitempty"`
	LastUpdated    string       `json:"last_updated,omitempty"`
	Alerts         []Alert      `json:"alerts,omitempty"`
	DrugsMonitored []string     `json:"drugs_monitored,omitempty"`
	Query          string       `json:"query,omitempty"`
	Articles       []Article    `json:"articles,omitempty"`
	FetchedAt      time.Time    `json:"scraped_at"`
}

// Text returns the textual content of the payload used for change-magnitude
// comparison. Structural fields (tables) are deliberately excluded; they are
// compared by the classifier's novelty check instead.
func (p *Payload) Text() string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.Content != "" {
		parts = append(parts, p.Content)
	}
	for _, a := range p.Alerts {
		parts = append(parts, a.FullText)
	}
	for _, a := range p.Articles {
		parts = append(parts, a.Title)
		if a.Abstract != "" {
			parts = append(parts, a.Abstract)
		}
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the payload carries no content of any kind.
func (p *Payload) Empty() bool {
	if p == nil {
		return true
	}
	return p.Content == "" && len(p.Tables) == 0 && len(p.Alerts) == 0 && len(p.Articles) == 0
}

// ChangeMeasurement is the output of the change detector for one source.
//
// Changed is driven purely by fingerprint comparison; Magnitude is computed
// against the most recent archived text. On the first run after a state
// migration the archived text can be missing while the fingerprint matches,
// producing a (Changed=false, Magnitude>0) combination. That inconsistency is
// deliberate and left unreconciled.
type ChangeMeasurement struct {
	SourceID            string  `json:"source_id"`
	Changed             bool    `json:"changed"`
	Magnitude           float64 `json:"magnitude"`
	Fingerprint         string  `json:"fingerprint"`
	PreviousFingerprint string  `json:"previous_fingerprint,omitempty"`
}

// FetchOutcome records the result of fetching and measuring one source.
type FetchOutcome struct {
	SourceID    string            `json:"source_id"`
	SourceName  string            `json:"source_name"`
	URL         string            `json:"url"`
	Timestamp   time.Time         `json:"timestamp"`
	Payload     *Payload          `json:"-"`
	Measurement ChangeMeasurement `json:"measurement"`
	Err         string            `json:"error,omitempty"`
}

// ConsultNode is one node of a consult decision tree, recovered from the
// legacy artifact text format by anchor scanning.
type ConsultNode struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	Citations []int  `json:"citations,omitempty"`
}

// Consult is the locally maintained knowledge artifact a source's changes may
// affect. Only the artifact store mutates consults.
type Consult struct {
	ID       string
	Name     string
	Version  string
	FilePath string
	Content  string
	Nodes    []ConsultNode
	Keywords []string
}

// ProposedChanges is the structured diff payload attached to an update
// candidate or review entry.
type ProposedChanges struct {
	NewTables      []Table        `json:"new_tables,omitempty"`
	KeywordMatches []string       `json:"keyword_matches,omitempty"`
	Markers        []UpdateMarker `json:"guideline_updates,omitempty"`
}

// Empty reports whether no structural signal or keyword match exists.
func (pc ProposedChanges) Empty() bool {
	return len(pc.NewTables) == 0 && len(pc.KeywordMatches) == 0 && len(pc.Markers) == 0
}

// Table is a structural block extracted from a fetched payload.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// UpdateMarker is a detected revision or guideline-change indicator in
// fetched text.
type UpdateMarker struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Context string `json:"context,omitempty"`
}

// UpdateCandidate is the central decision record for one (consult, source)
// pair in one run. It is created fresh each run and either consumed by the
// artifact store or converted into a review entry; it is never persisted on
// its own.
type UpdateCandidate struct {
	ConsultID        string          `json:"consult_id"`
	SourceID         string          `json:"source_id"`
	Tier             ChangeTier      `json:"change_type"`
	ChangePercentage float64         `json:"change_percentage"`
	CurrentVersion   string          `json:"current_version"`
	Proposed         ProposedChanges `json:"proposed_changes"`
	Reason           string          `json:"reason"`
	Timestamp        time.Time       `json:"timestamp"`
	AutoApproved     bool            `json:"auto_approved"`
	RequiresReview   bool            `json:"requires_review"`
}

// StatusPendingReview is the initial (and, within this system, only) status
// of a review entry. Resolution is an external human action.
const StatusPendingReview = "pending_review"

// ReviewEntry is one append-only record in the human review queue.
type ReviewEntry struct {
	ID        string          `json:"id"`
	ConsultID string          `json:"consult_id"`
	SourceID  string          `json:"source_id"`
	Tier      ChangeTier      `json:"change_type"`
	Reason    string          `json:"reason"`
	Proposed  ProposedChanges `json:"proposed_changes"`
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status"`
}

// DispositionAction is the terminal sub-outcome for one (consult, source)
// pair within a run.
type DispositionAction string

const (
	ActionApplied         DispositionAction = "applied"
	ActionWouldApply      DispositionAction = "would_apply"
	ActionQueuedForReview DispositionAction = "queued_for_review"
	ActionSkippedNoChange DispositionAction = "skipped_no_change"
)

// Disposition records how one (consult, source) pair was handled.
type Disposition struct {
	ConsultID string            `json:"consult_id"`
	SourceID  string            `json:"source_id"`
	Tier      ChangeTier        `json:"change_type,omitempty"`
	Action    DispositionAction `json:"action"`
}

// RunRecord is the bounded-history entry persisted per pipeline execution.
type RunRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	Success          bool      `json:"success"`
	SourcesProcessed int       `json:"sources_processed"`
	ChangesDetected  int       `json:"changes_detected"`
}

// RunResult aggregates one full pipeline execution. Errors from the fetch and
// update stages determine Success; publish failures only add warnings.
type RunResult struct {
	Timestamp        time.Time     `json:"timestamp"`
	Success          bool          `json:"success"`
	DryRun           bool          `json:"dry_run,omitempty"`
	SourcesProcessed int           `json:"sources_processed"`
	ChangesDetected  int           `json:"changes_detected"`
	UpdatesApplied   int           `json:"updates_applied"`
	QueuedForReview  int           `json:"queued_for_review"`
	NoChanges        int           `json:"no_changes"`
	Dispositions     []Disposition `json:"dispositions,omitempty"`
	Errors           []string      `json:"errors,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
}

// Record converts the run result into its bounded-history form.
func (r *RunResult) Record() RunRecord {
	return RunRecord{
		Timestamp:        r.Timestamp,
		Success:          r.Success,
		SourcesProcessed: r.SourcesProcessed,
		ChangesDetected:  r.ChangesDetected,
	}
}
