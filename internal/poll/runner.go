// Package poll runs one ingest end to end: open a run, fetch from the scrape
// API, reconcile into the catalog, close the run and announce the result.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/scrape"
)

// SourceAll fans a request out to every configured source.
const SourceAll = "all"

const DefaultMaxResults = 50

var ErrUnknownSource = errors.New("unknown source")

type Processor interface {
	Process(ctx context.Context, raws []domain.RawRecord, source string) (domain.IngestionResult, error)
}

type RunRecorder interface {
	Begin(ctx context.Context, source string, keywords []string, location string) (int64, error)
	Complete(ctx context.Context, id int64, jobsFound int, res domain.IngestionResult) error
	Fail(ctx context.Context, id int64, jobsFound int, cause error, partial *domain.IngestionResult) error
}

type Request struct {
	Source     string
	Keywords   []string
	Location   string
	MaxResults int
	RequestID  string
}

type Outcome struct {
	RunID     int64                  `json:"runId"`
	Source    string                 `json:"source"`
	JobsFound int                    `json:"jobsFound"`
	Result    domain.IngestionResult `json:"result"`
}

type Runner struct {
	fetcher scrape.Fetcher
	engine  Processor
	runs    RunRecorder
	pub     events.Publisher
	sources []string
	log     *slog.Logger
}

// NewRunner wires a runner. sources is what "all" expands to, in fetch
// order. pub may be nil.
func NewRunner(f scrape.Fetcher, engine Processor, runs RunRecorder, pub events.Publisher, sources []string, log *slog.Logger) *Runner {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{fetcher: f, engine: engine, runs: runs, pub: pub, sources: sources, log: log}
}

func (r *Runner) Sources() []string {
	return append([]string(nil), r.sources...)
}

func (r *Runner) resolveSources(source string) ([]string, error) {
	if source == SourceAll {
		if len(r.sources) == 0 {
			return nil, fmt.Errorf("%w: no sources configured", ErrUnknownSource)
		}
		return r.sources, nil
	}
	for _, s := range r.sources {
		if s == source {
			return []string{source}, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownSource, source)
}

// RunOnce performs one ingest. A fetch failure marks the run Failed and is
// returned; per-record problems only show up in Outcome.Result.Errors.
func (r *Runner) RunOnce(ctx context.Context, req Request) (Outcome, error) {
	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = SourceAll
	}
	sources, err := r.resolveSources(source)
	if err != nil {
		return Outcome{}, err
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}

	runID, err := r.runs.Begin(ctx, source, req.Keywords, req.Location)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{RunID: runID, Source: source}
	log := r.log.With("run_id", runID, "source", source)

	// Finalizing must survive the caller's cancellation.
	bg := context.WithoutCancel(ctx)

	raws, err := scrape.FetchAll(ctx, r.fetcher, sources, req.Keywords, req.Location, req.MaxResults)
	if err != nil {
		r.fail(bg, log, req, out, err, nil)
		return out, fmt.Errorf("ingest %s: %w", source, err)
	}
	out.JobsFound = len(raws)

	res, err := r.engine.Process(ctx, raws, source)
	out.Result = res
	if err != nil {
		r.fail(bg, log, req, out, err, &res)
		return out, fmt.Errorf("ingest %s: %w", source, err)
	}

	if err := r.runs.Complete(bg, runID, out.JobsFound, res); err != nil {
		log.Error("complete run", "err", err)
	}

	r.publish(bg, log, events.New(req.RequestID, events.TypeIngestCompleted, completedData(out)))
	if res.NewCount > 0 {
		r.publish(bg, log, events.New(req.RequestID, events.TypeJobCreated, map[string]any{
			"runId": runID,
			"count": res.NewCount,
		}))
	}
	return out, nil
}

func (r *Runner) fail(ctx context.Context, log *slog.Logger, req Request, out Outcome, cause error, partial *domain.IngestionResult) {
	if err := r.runs.Fail(ctx, out.RunID, out.JobsFound, cause, partial); err != nil {
		log.Error("fail run", "err", err)
	}
	r.publish(ctx, log, events.New(req.RequestID, events.TypeIngestFailed, map[string]any{
		"runId":  out.RunID,
		"source": out.Source,
		"error":  cause.Error(),
	}))
}

func (r *Runner) publish(ctx context.Context, log *slog.Logger, e events.Event) {
	if err := r.pub.Publish(ctx, e); err != nil {
		log.Warn("publish event", "type", e.Type, "err", err)
	}
}

func completedData(out Outcome) map[string]any {
	return map[string]any{
		"runId":      out.RunID,
		"source":     out.Source,
		"jobsFound":  out.JobsFound,
		"new":        out.Result.NewCount,
		"updated":    out.Result.UpdatedCount,
		"duplicates": out.Result.DedupedCount,
		"errors":     len(out.Result.Errors),
	}
}
