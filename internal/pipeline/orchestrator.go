// Package pipeline sequences the monitoring stages: fetch the configured
// sources, measure and classify changes, dispose of update candidates, then
// optionally publish and notify. Every run is recorded in the run ledger.
package pipeline

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/medkitt/medwatch/internal/classify"
	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/consult"
	"github.com/medkitt/medwatch/internal/detect"
	"github.com/medkitt/medwatch/internal/review"
	"github.com/medkitt/medwatch/internal/runstatus"
	"github.com/medkitt/medwatch/internal/snapshot"
	"github.com/medkitt/medwatch/internal/types"
)

// Stage wall-clock budgets. A stage that exhausts its budget is cut off;
// state persisted by completed work stands.
const (
	fetchStageBudget   = 10 * time.Minute
	updateStageBudget  = 5 * time.Minute
	publishStageBudget = time.Minute
)

// Fetcher retrieves one source's current content.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string, src *config.Source) (*types.Payload, error)
}

// Publisher commits updated artifacts.
type Publisher interface {
	CommitUpdates(ctx context.Context, paths []string, message string) (string, error)
}

// Notifier delivers a run summary.
type Notifier interface {
	Notify(ctx context.Context, result *types.RunResult)
}

// Orchestrator wires the stages over one configuration.
type Orchestrator struct {
	cfg        *config.Config
	fetcher    Fetcher
	snaps      *snapshot.Store
	detector   *detect.Detector
	consults   *consult.Store
	classifier *classify.Classifier
	status     *runstatus.Store
	publisher  Publisher // nil disables publishing
	notifier   Notifier  // nil disables notification
	log        *log.Logger
	now        func() time.Time
}

func New(cfg *config.Config, fetcher Fetcher, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	snaps, err := snapshot.New(cfg.HashesDir(), cfg.RawDir())
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:        cfg,
		fetcher:    fetcher,
		snaps:      snaps,
		detector:   detect.New(snaps),
		consults:   consult.NewStore(cfg, logger),
		classifier: classify.New(cfg.Scraper.Thresholds),
		status:     runstatus.NewStore(cfg.RunStatusPath()),
		log:        logger,
		now:        time.Now,
	}, nil
}

// SetPublisher enables the publish stage.
func (o *Orchestrator) SetPublisher(p Publisher) { o.publisher = p }

// SetNotifier enables the notify stage.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// RunOptions selects the run mode.
type RunOptions struct {
	// DryRun analyzes and reports without mutating consults or publishing.
	DryRun bool

	// Sources restricts the run to the given source ids. Empty means all.
	Sources []string

	// Commit forces the publish stage even when auto_commit is off.
	Commit bool
}

// FetchStageResult is the typed outcome of the fetch stage.
type FetchStageResult struct {
	Outcomes []types.FetchOutcome
	Errors   []error
}

// UpdateStageResult is the typed outcome of the update stage.
type UpdateStageResult struct {
	Dispositions []types.Disposition
	Applied      int
	Queued       int
	NoChanges    int

	// AppliedConsults lists consult ids whose artifacts were rewritten,
	// in disposition order.
	AppliedConsults []string
	Errors          []error
}

// PublishStageResult is the typed outcome of the publish stage.
type PublishStageResult struct {
	Attempted  bool
	CommitHash string
	Err        error
}

// Run executes the full pipeline once. The returned result is always
// non-nil and always recorded in the run ledger; the error return is
// reserved for failures before the first stage starts.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*types.RunResult, error) {
	result := &types.RunResult{
		Timestamp: o.now(),
		DryRun:    opts.DryRun,
	}
	o.log.Printf("pipeline run starting (dry_run=%v)", opts.DryRun)

	fetchRes := o.FetchStage(ctx, opts.Sources)
	result.SourcesProcessed = len(fetchRes.Outcomes)
	for _, out := range fetchRes.Outcomes {
		if out.Err == "" && out.Measurement.Changed {
			result.ChangesDetected++
		}
	}
	for _, err := range fetchRes.Errors {
		result.Errors = append(result.Errors, err.Error())
	}

	updateRes := o.UpdateStage(ctx, fetchRes.Outcomes, opts.DryRun)
	result.Dispositions = updateRes.Dispositions
	result.UpdatesApplied = updateRes.Applied
	result.QueuedForReview = updateRes.Queued
	result.NoChanges = updateRes.NoChanges
	for _, err := range updateRes.Errors {
		result.Errors = append(result.Errors, err.Error())
	}

	// Fetch and update failures decide success; later stages only warn.
	result.Success = len(result.Errors) == 0

	publishRes := o.PublishStage(ctx, opts, updateRes)
	if publishRes.Err != nil {
		result.Warnings = append(result.Warnings, publishRes.Err.Error())
	} else if publishRes.CommitHash != "" {
		o.log.Printf("published commit %s", publishRes.CommitHash)
	}

	if o.notifier != nil && result.ChangesDetected > 0 {
		o.notifier.Notify(ctx, result)
	}

	if err := o.status.RecordRun(result); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}

	o.log.Printf("pipeline run finished: success=%v sources=%d changes=%d applied=%d queued=%d",
		result.Success, result.SourcesProcessed, result.ChangesDetected,
		result.UpdatesApplied, result.QueuedForReview)
	return result, nil
}

// FetchStage fetches every selected source and measures changes. Failures
// are per-source; a failed source's stored fingerprint and snapshots are
// left untouched.
func (o *Orchestrator) FetchStage(ctx context.Context, only []string) FetchStageResult {
	ctx, cancel := context.WithTimeout(ctx, fetchStageBudget)
	defer cancel()

	var res FetchStageResult
	for _, sourceID := range o.selectSources(only) {
		src, ok := o.cfg.Sources[sourceID]
		if !ok {
			res.Errors = append(res.Errors, &types.ConfigError{Kind: "source", ID: sourceID})
			continue
		}
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, &types.StageTimeoutError{Stage: "fetch", Budget: fetchStageBudget})
			break
		}

		outcome := types.FetchOutcome{
			SourceID:   sourceID,
			SourceName: src.Name,
			URL:        src.URL,
			Timestamp:  o.now(),
		}

		payload, err := o.fetcher.Fetch(ctx, sourceID, src)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				res.Errors = append(res.Errors, &types.StageTimeoutError{Stage: "fetch", Budget: fetchStageBudget})
				break
			}
			o.log.Printf("fetch %s failed: %v", sourceID, err)
			outcome.Err = err.Error()
			res.Outcomes = append(res.Outcomes, outcome)
			res.Errors = append(res.Errors, err)
			continue
		}

		measurement, err := o.detector.Detect(sourceID, payload)
		if err != nil {
			o.log.Printf("measuring %s failed: %v", sourceID, err)
			outcome.Err = err.Error()
			res.Outcomes = append(res.Outcomes, outcome)
			res.Errors = append(res.Errors, err)
			continue
		}

		outcome.Payload = payload
		outcome.Measurement = measurement
		res.Outcomes = append(res.Outcomes, outcome)
		o.log.Printf("fetched %s: changed=%v magnitude=%.3f", sourceID, measurement.Changed, measurement.Magnitude)
	}
	return res
}

// UpdateStage classifies each (consult, source) pair and disposes of the
// resulting candidates.
func (o *Orchestrator) UpdateStage(ctx context.Context, outcomes []types.FetchOutcome, dryRun bool) UpdateStageResult {
	ctx, cancel := context.WithTimeout(ctx, updateStageBudget)
	defer cancel()

	var res UpdateStageResult
	var queue *review.Queue

	for _, outcome := range outcomes {
		if outcome.Err != "" || outcome.Payload == nil {
			continue
		}
		src, ok := o.cfg.Sources[outcome.SourceID]
		if !ok {
			continue
		}

		// An unchanged fingerprint means nothing new to analyze, even
		// when consult keywords would still match the payload.
		if !outcome.Measurement.Changed {
			for _, consultID := range src.Consults {
				res.NoChanges++
				res.Dispositions = append(res.Dispositions, types.Disposition{
					ConsultID: consultID,
					SourceID:  outcome.SourceID,
					Action:    types.ActionSkippedNoChange,
				})
			}
			continue
		}

		for _, consultID := range src.Consults {
			if ctx.Err() != nil {
				res.Errors = append(res.Errors, &types.StageTimeoutError{Stage: "update", Budget: updateStageBudget})
				return res
			}

			c, err := o.consults.Load(consultID)
			if err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}

			diff := classify.Diff(c, outcome.Payload)
			candidate := o.classifier.Classify(consultID, outcome.SourceID,
				outcome.Measurement, diff, c.Version, o.consultRules(consultID))

			disp := types.Disposition{ConsultID: consultID, SourceID: outcome.SourceID}

			if candidate == nil {
				disp.Action = types.ActionSkippedNoChange
				res.NoChanges++
				res.Dispositions = append(res.Dispositions, disp)
				continue
			}
			disp.Tier = candidate.Tier

			if candidate.RequiresReview {
				if queue == nil {
					queue, err = review.Open(o.cfg.ReviewQueuePath())
					if err != nil {
						res.Errors = append(res.Errors, err)
						continue
					}
				}
				if _, err := queue.Enqueue(candidate); err != nil {
					res.Errors = append(res.Errors, err)
					continue
				}
				o.log.Printf("queued %s for review (%s)", consultID, candidate.Tier)
				disp.Action = types.ActionQueuedForReview
				res.Queued++
				res.Dispositions = append(res.Dispositions, disp)
				continue
			}

			if err := o.consults.Apply(candidate, dryRun); err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}
			if dryRun {
				disp.Action = types.ActionWouldApply
			} else {
				disp.Action = types.ActionApplied
				res.AppliedConsults = append(res.AppliedConsults, consultID)
			}
			res.Applied++
			res.Dispositions = append(res.Dispositions, disp)
		}
	}
	return res
}

// PublishStage commits applied updates when publishing is enabled. It never
// runs on dry runs and its failure never fails the run.
func (o *Orchestrator) PublishStage(ctx context.Context, opts RunOptions, update UpdateStageResult) PublishStageResult {
	var res PublishStageResult
	if o.publisher == nil || opts.DryRun || len(update.AppliedConsults) == 0 {
		return res
	}
	if !opts.Commit && !o.cfg.Notifications.Publish.AutoCommit {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, publishStageBudget)
	defer cancel()

	paths := []string{filepath.Dir(o.cfg.RunStatusPath())}
	for _, id := range update.AppliedConsults {
		if p, err := o.cfg.ConsultPath(id); err == nil {
			paths = append(paths, p)
		}
		paths = append(paths, o.cfg.ExportPath(id))
	}

	res.Attempted = true
	hash, err := o.publisher.CommitUpdates(ctx, paths, "")
	if err != nil {
		res.Err = &types.PublishError{Err: err}
		return res
	}
	res.CommitHash = hash
	return res
}

// AnalyzeStored runs the update stage against the most recent archived
// payloads instead of fetching. Sources without any archived snapshot are
// skipped.
func (o *Orchestrator) AnalyzeStored(ctx context.Context, opts RunOptions) (*types.RunResult, error) {
	result := &types.RunResult{Timestamp: o.now(), DryRun: opts.DryRun}

	var outcomes []types.FetchOutcome
	for _, sourceID := range o.selectSources(opts.Sources) {
		src, ok := o.cfg.Sources[sourceID]
		if !ok {
			result.Errors = append(result.Errors, (&types.ConfigError{Kind: "source", ID: sourceID}).Error())
			continue
		}
		payload, ok := o.snaps.Latest(sourceID)
		if !ok {
			o.log.Printf("no archived data for %s, skipping", sourceID)
			continue
		}
		outcomes = append(outcomes, types.FetchOutcome{
			SourceID:    sourceID,
			SourceName:  src.Name,
			URL:         src.URL,
			Timestamp:   o.now(),
			Payload:     payload,
			// Stored payloads have no fresh comparison point; analyze
			// them unconditionally.
			Measurement: types.ChangeMeasurement{SourceID: sourceID, Changed: true},
		})
	}
	result.SourcesProcessed = len(outcomes)

	updateRes := o.UpdateStage(ctx, outcomes, opts.DryRun)
	result.Dispositions = updateRes.Dispositions
	result.UpdatesApplied = updateRes.Applied
	result.QueuedForReview = updateRes.Queued
	result.NoChanges = updateRes.NoChanges
	for _, err := range updateRes.Errors {
		result.Errors = append(result.Errors, err.Error())
	}
	result.Success = len(result.Errors) == 0

	publishRes := o.PublishStage(ctx, opts, updateRes)
	if publishRes.Err != nil {
		result.Warnings = append(result.Warnings, publishRes.Err.Error())
	}
	return result, nil
}

// Status returns the persisted run ledger.
func (o *Orchestrator) Status() (runstatus.Status, error) {
	return o.status.Load()
}

// ReviewQueue opens the durable review queue.
func (o *Orchestrator) ReviewQueue() (*review.Queue, error) {
	return review.Open(o.cfg.ReviewQueuePath())
}

// ExportConsult writes one consult's canonical JSON export.
func (o *Orchestrator) ExportConsult(id string, withNodeCount bool) error {
	c, err := o.consults.Load(id)
	if err != nil {
		return err
	}
	if withNodeCount {
		return o.consults.ExportWithNodeCount(c)
	}
	return o.consults.Export(c)
}

// selectSources returns the run's source ids in stable order.
func (o *Orchestrator) selectSources(only []string) []string {
	if len(only) > 0 {
		return only
	}
	ids := make([]string, 0, len(o.cfg.Sources))
	for id := range o.cfg.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (o *Orchestrator) consultRules(consultID string) []config.UpdateRule {
	if c, ok := o.cfg.Consults[consultID]; ok {
		return c.UpdateRules
	}
	return nil
}
