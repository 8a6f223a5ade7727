// Package runs keeps the audit trail of ingest invocations.
//
// A run is created Running by Begin and moved exactly once to a terminal
// status by Complete or Fail. Nothing in the reconciliation path reads runs
// back; they exist for operators.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
)

// MaxErrorSample caps how many per-item errors are kept in run metadata.
const MaxErrorSample = 10

// Repository persists runs. GetRun returns (nil, nil) for an unknown id.
type Repository interface {
	CreateRun(ctx context.Context, r *domain.IngestRun) (int64, error)
	UpdateRun(ctx context.Context, r *domain.IngestRun) error
	GetRun(ctx context.Context, id int64) (*domain.IngestRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]domain.IngestRun, error)
}

type Tracker struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewTracker(repo Repository, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{repo: repo, log: log, now: time.Now}
}

// WithClock returns a copy of t that reads time from now.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	cp := *t
	cp.now = now
	return &cp
}

// Begin records a new Running run and returns its id.
func (t *Tracker) Begin(ctx context.Context, source string, keywords []string, location string) (int64, error) {
	run := &domain.IngestRun{
		Source:    source,
		Keywords:  strings.Join(keywords, ", "),
		Location:  domain.StringPtr(strings.TrimSpace(location)),
		StartedAt: t.now().UTC(),
		Status:    domain.RunRunning,
	}
	id, err := t.repo.CreateRun(ctx, run)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	t.log.Info("ingest run started", "run_id", id, "source", source, "keywords", run.Keywords)
	return id, nil
}

// Complete finalizes a run whose fetch succeeded. Per-item errors make it
// PartialSuccess.
func (t *Tracker) Complete(ctx context.Context, id int64, jobsFound int, res domain.IngestionResult) error {
	run, err := t.open(ctx, id)
	if err != nil {
		return err
	}

	now := t.now().UTC()
	run.CompletedAt = &now
	run.JobsFound = jobsFound
	copyCounters(run, res)

	if len(res.Errors) == 0 {
		run.Status = domain.RunSuccess
	} else {
		run.Status = domain.RunPartialSuccess
		run.ErrorMessage = domain.StringPtr(fmt.Sprintf("%d errors occurred during processing", len(res.Errors)))
		meta, err := errorSample(res.Errors)
		if err != nil {
			return err
		}
		run.Metadata = &meta
	}

	if err := t.repo.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("complete run %d: %w", id, err)
	}
	t.log.Info("ingest run completed",
		"run_id", id,
		"status", run.Status,
		"found", run.JobsFound,
		"new", run.JobsNew,
		"updated", run.JobsUpdated,
		"deduped", run.JobsDeduped,
	)
	return nil
}

// Fail finalizes a run that could not produce a result. jobsFound is zero when
// the fetch itself failed; partial may carry the counters gathered before a
// cancellation.
func (t *Tracker) Fail(ctx context.Context, id int64, jobsFound int, cause error, partial *domain.IngestionResult) error {
	run, err := t.open(ctx, id)
	if err != nil {
		return err
	}

	now := t.now().UTC()
	run.CompletedAt = &now
	run.Status = domain.RunFailed
	run.JobsFound = jobsFound
	if cause != nil {
		run.ErrorMessage = domain.StringPtr(cause.Error())
		run.ErrorDetail = domain.StringPtr(causeChain(cause))
	}
	if partial != nil {
		copyCounters(run, *partial)
		if len(partial.Errors) > 0 {
			meta, err := errorSample(partial.Errors)
			if err != nil {
				return err
			}
			run.Metadata = &meta
		}
	}

	if err := t.repo.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("fail run %d: %w", id, err)
	}
	t.log.Warn("ingest run failed", "run_id", id, "err", cause)
	return nil
}

func (t *Tracker) Get(ctx context.Context, id int64) (*domain.IngestRun, error) {
	run, err := t.repo.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	return run, nil
}

func (t *Tracker) Recent(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := t.repo.ListRecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// open loads a run that may still be written to.
func (t *Tracker) open(ctx context.Context, id int64) (*domain.IngestRun, error) {
	run, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return nil, fmt.Errorf("run %d is %s: %w", id, run.Status, domain.ErrRunFinalized)
	}
	return run, nil
}

func copyCounters(run *domain.IngestRun, res domain.IngestionResult) {
	run.JobsNew = res.NewCount
	run.JobsUpdated = res.UpdatedCount
	run.JobsDeduped = res.DedupedCount
}

func errorSample(errs []string) (string, error) {
	if len(errs) > MaxErrorSample {
		errs = errs[:MaxErrorSample]
	}
	b, err := json.Marshal(map[string][]string{"errors": errs})
	if err != nil {
		return "", fmt.Errorf("encode run metadata: %w", err)
	}
	return string(b), nil
}

func causeChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %v", e, e))
	}
	return strings.Join(lines, "\n")
}
