// Package ingest coordinates one ingestion run end to end: fetch raw
// records from the upstream source, anonymize them, persist the result
// atomically, then score the stored dataset.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"personpipe/internal/anonymize"
	"personpipe/internal/person"
	"personpipe/internal/quality"
	"personpipe/internal/store"
)

// ErrEmptyResult marks a run where no record survived anonymization.
var ErrEmptyResult = errors.New("no records survived anonymization")

// Fetcher acquires the requested number of raw records.
type Fetcher interface {
	Fetch(ctx context.Context, total int, gender string, batchSize int) ([]person.RawPerson, error)
}

// Persister is the slice of the store the orchestrator writes through.
type Persister interface {
	InsertPersons(ctx context.Context, rows []person.AnonymizedPerson) (int, error)
	RecordRun(ctx context.Context, run store.Run) error
	Snapshot(ctx context.Context) ([]person.AnonymizedPerson, error)
	Verify(ctx context.Context) (store.VerifyReport, error)
}

// Scorer computes a quality snapshot over the stored dataset.
type Scorer interface {
	Score(rows []person.AnonymizedPerson) (quality.Snapshot, error)
}

// Recorder receives run observability events. It may be nil when metrics
// export is disabled.
type Recorder interface {
	RecordOutcome(status string, records int)
	RecordRunOutcome(status string)
	RecordCheck(name string, ok bool, records int)
	ObserveDuration(operation string, d time.Duration)
}

// Params controls one ingestion run.
type Params struct {
	Gender    string
	Total     int
	BatchSize int

	// Strict fails the whole run on the first malformed record instead of
	// skipping it.
	Strict bool
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Requested int
	Fetched   int
	Skipped   int
	Inserted  int

	// Snapshot is only meaningful when Scored is true; scoring is skipped
	// when the stored dataset is too small.
	Snapshot quality.Snapshot
	Scored   bool

	Verification store.VerifyReport
}

// Orchestrator drives ingestion runs.
type Orchestrator struct {
	fetcher  Fetcher
	store    Persister
	scorer   Scorer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs an orchestrator. The recorder may be nil.
func New(fetcher Fetcher, persister Persister, scorer Scorer, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		fetcher:  fetcher,
		store:    persister,
		scorer:   scorer,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one ingestion run. A failed run still records its outcome
// before the error surfaces.
func (o *Orchestrator) Run(ctx context.Context, params Params) (Result, error) {
	run := store.NewRun(params.Gender, params.Total)
	result := Result{RunID: run.ID, Requested: params.Total}
	o.logger.Info("starting ingestion run",
		"run_id", run.ID,
		"gender", params.Gender,
		"total", params.Total,
		"batch_size", params.BatchSize)

	fetchStart := o.now()
	raw, err := o.fetcher.Fetch(ctx, params.Total, params.Gender, params.BatchSize)
	o.observeDuration("fetch", o.now().Sub(fetchStart))
	if err != nil {
		o.finishFailed(ctx, run)
		return result, fmt.Errorf("ingest run %s: %w", run.ID, err)
	}
	result.Fetched = len(raw)

	anonymized, skipped, err := o.anonymizeAll(raw, params.Strict)
	result.Skipped = skipped
	if err != nil {
		o.finishFailed(ctx, run)
		return result, fmt.Errorf("ingest run %s: %w", run.ID, err)
	}
	if len(anonymized) == 0 {
		o.finishFailed(ctx, run)
		return result, fmt.Errorf("ingest run %s: %w", run.ID, ErrEmptyResult)
	}

	storeStart := o.now()
	inserted, err := o.store.InsertPersons(ctx, anonymized)
	o.observeDuration("store", o.now().Sub(storeStart))
	if err != nil {
		o.recordOutcome("failed", len(anonymized))
		o.finishFailed(ctx, run)
		return result, fmt.Errorf("ingest run %s: %w", run.ID, err)
	}
	result.Inserted = inserted
	o.recordOutcome("success", inserted)

	run.Inserted = inserted
	run.Status = "success"
	run.Finished = o.now()
	if err := o.store.RecordRun(ctx, run); err != nil {
		o.logger.Warn("run bookkeeping failed", "run_id", run.ID, "error", err)
	}

	result.Snapshot, result.Scored = o.scoreDataset(ctx)
	result.Verification = o.verifyDataset(ctx)
	o.recordRunOutcome("success")
	o.logger.Info("ingestion run complete",
		"run_id", run.ID,
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"inserted", result.Inserted)
	return result, nil
}

// anonymizeAll masks every raw record. In strict mode the first malformed
// record aborts; otherwise malformed records and records that fail the
// masking check are counted and dropped.
func (o *Orchestrator) anonymizeAll(raw []person.RawPerson, strict bool) ([]person.AnonymizedPerson, int, error) {
	start := o.now()
	defer func() { o.observeDuration("anonymize", o.now().Sub(start)) }()

	anonymized := make([]person.AnonymizedPerson, 0, len(raw))
	skipped := 0
	for _, record := range raw {
		anon, err := anonymize.Person(record, o.now())
		if err != nil {
			o.recordOutcome("failed", 1)
			if strict {
				return nil, skipped, err
			}
			skipped++
			o.logger.Warn("skipping malformed record", "error", err)
			continue
		}
		if err := anonymize.Verify(anon); err != nil {
			o.recordOutcome("failed", 1)
			skipped++
			o.logger.Warn("skipping record that failed the masking check", "error", err)
			continue
		}
		anonymized = append(anonymized, anon)
	}
	return anonymized, skipped, nil
}

// scoreDataset scores the full stored dataset. Scoring problems never fail
// the run; an undersized dataset is expected on early runs.
func (o *Orchestrator) scoreDataset(ctx context.Context) (quality.Snapshot, bool) {
	start := o.now()
	defer func() { o.observeDuration("score", o.now().Sub(start)) }()

	rows, err := o.store.Snapshot(ctx)
	if err != nil {
		o.logger.Warn("snapshot for scoring failed", "error", err)
		return quality.Snapshot{}, false
	}
	snap, err := o.scorer.Score(rows)
	if errors.Is(err, quality.ErrInsufficientData) {
		o.logger.Warn("dataset too small to score", "rows", len(rows))
		return quality.Snapshot{}, false
	}
	if err != nil {
		o.logger.Warn("quality scoring failed", "error", err)
		return quality.Snapshot{}, false
	}
	return snap, true
}

// verifyDataset runs the post-storage integrity checks and exports their
// outcomes. Like scoring, a verification problem is surfaced in the result
// and the logs but never fails an otherwise successful run.
func (o *Orchestrator) verifyDataset(ctx context.Context) store.VerifyReport {
	report, err := o.store.Verify(ctx)
	if err != nil {
		o.logger.Warn("post-storage verification failed", "error", err)
		return store.VerifyReport{}
	}
	if report.OK() {
		o.recordCheck("integrity", true, report.TotalRecords)
		return report
	}
	for _, issue := range report.Issues {
		o.recordCheck(issue.Check, false, issue.Rows)
		o.logger.Warn("integrity check failed", "check", issue.Check, "rows", issue.Rows)
	}
	return report
}

func (o *Orchestrator) finishFailed(ctx context.Context, run store.Run) {
	run.Status = "failed"
	run.Finished = o.now()
	if err := o.store.RecordRun(ctx, run); err != nil {
		o.logger.Warn("run bookkeeping failed", "run_id", run.ID, "error", err)
	}
	o.recordRunOutcome("failed")
}

func (o *Orchestrator) recordOutcome(status string, records int) {
	if o.recorder != nil {
		o.recorder.RecordOutcome(status, records)
	}
}

func (o *Orchestrator) recordRunOutcome(status string) {
	if o.recorder != nil {
		o.recorder.RecordRunOutcome(status)
	}
}

func (o *Orchestrator) recordCheck(name string, ok bool, records int) {
	if o.recorder != nil {
		o.recorder.RecordCheck(name, ok, records)
	}
}

func (o *Orchestrator) observeDuration(operation string, d time.Duration) {
	if o.recorder != nil {
		o.recorder.ObserveDuration(operation, d)
	}
}
