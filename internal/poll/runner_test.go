package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/ingest"
	"jobintel-engine/internal/runs"
	"jobintel-engine/internal/scrape"
	"jobintel-engine/internal/store"
)

type fakeFetcher struct {
	mu    sync.Mutex
	recs  map[string][]domain.RawRecord
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, source string, _ []string, _ string, max int) ([]domain.RawRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%d", source, max))
	f.mu.Unlock()
	if err := f.fail[source]; err != nil {
		return nil, err
	}
	return f.recs[source], nil
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.evs {
		out = append(out, e.Type)
	}
	return out
}

func raw(source, id, title string) domain.RawRecord {
	return domain.RawRecord{
		Source:      source,
		SourceID:    id,
		Title:       title,
		Company:     "Acme",
		Description: domain.StringPtr("desc " + id),
	}
}

type harness struct {
	db      *store.DB
	fetcher *fakeFetcher
	events  *recorder
	runner  *Runner
	tracker *runs.Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.OpenDSN(fmt.Sprintf("file:poll_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db.Pool))

	h := &harness{
		db:      db,
		fetcher: &fakeFetcher{recs: map[string][]domain.RawRecord{}, fail: map[string]error{}},
		events:  &recorder{},
		tracker: runs.NewTracker(db, nil),
	}
	h.runner = NewRunner(h.fetcher, ingest.NewEngine(db), h.tracker, h.events, []string{"seek", "indeed"}, nil)
	return h
}

func TestRunOnceAllSources(t *testing.T) {
	h := newHarness(t)
	h.fetcher.recs["seek"] = []domain.RawRecord{raw("seek", "1", "Plumber"), raw("seek", "2", "Tiler")}
	h.fetcher.recs["indeed"] = []domain.RawRecord{raw("indeed", "a", "Roofer"), {Source: "indeed", SourceID: "b"}}

	out, err := h.runner.RunOnce(context.Background(), Request{Source: "ALL", Keywords: []string{"plumber"}, RequestID: "req-9"})
	require.NoError(t, err)

	assert.Equal(t, "all", out.Source)
	assert.Equal(t, 4, out.JobsFound)
	assert.Equal(t, 3, out.Result.NewCount)
	assert.Len(t, out.Result.Errors, 1)
	assert.ElementsMatch(t, []string{"seek:50", "indeed:50"}, h.fetcher.calls)

	run, err := h.tracker.Get(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartialSuccess, run.Status)
	assert.Equal(t, 4, run.JobsFound)
	assert.Equal(t, 3, run.JobsNew)

	assert.Equal(t, []string{events.TypeIngestCompleted, events.TypeJobCreated}, h.events.types())
	assert.Equal(t, "req-9", h.events.evs[0].RequestID)
	assert.Contains(t, string(h.events.evs[0].Data), `"new":3`)
}

func TestRunOnceSecondPassDedupes(t *testing.T) {
	h := newHarness(t)
	h.fetcher.recs["seek"] = []domain.RawRecord{raw("seek", "1", "Plumber")}
	ctx := context.Background()

	_, err := h.runner.RunOnce(ctx, Request{Source: "seek", MaxResults: 10})
	require.NoError(t, err)
	out, err := h.runner.RunOnce(ctx, Request{Source: "seek", MaxResults: 10})
	require.NoError(t, err)

	assert.Equal(t, 0, out.Result.NewCount)
	assert.Equal(t, 1, out.Result.DedupedCount)
	assert.Equal(t, []string{"seek:10", "seek:10"}, h.fetcher.calls)

	run, err := h.tracker.Get(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, run.Status)
	// no job_created on the second pass
	assert.Equal(t, []string{events.TypeIngestCompleted, events.TypeJobCreated, events.TypeIngestCompleted}, h.events.types())
}

func TestRunOnceFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.recs["seek"] = []domain.RawRecord{raw("seek", "1", "Plumber")}
	h.fetcher.fail["indeed"] = &scrape.StatusError{Source: "indeed", Code: 503, Body: "down"}

	out, err := h.runner.RunOnce(context.Background(), Request{Source: "all"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	var se *scrape.StatusError
	assert.True(t, errors.As(err, &se))

	run, gerr := h.tracker.Get(context.Background(), out.RunID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, 0, run.JobsNew)

	total, cerr := h.db.CountPostings(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, total, "no partial processing after a fetch failure")
	assert.Equal(t, []string{events.TypeIngestFailed}, h.events.types())
}

func TestRunOnceUnknownSource(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.RunOnce(context.Background(), Request{Source: "linkedin"})
	assert.ErrorIs(t, err, ErrUnknownSource)

	recent, rerr := h.tracker.Recent(context.Background(), 5)
	require.NoError(t, rerr)
	assert.Empty(t, recent)
}

type cancellingEngine struct{ cancel context.CancelFunc }

func (c cancellingEngine) Process(ctx context.Context, raws []domain.RawRecord, _ string) (domain.IngestionResult, error) {
	c.cancel()
	return domain.IngestionResult{NewCount: 1, TotalProcessed: 1, Errors: []string{}}, ctx.Err()
}

func TestRunOnceCancelledRecordsPartialCounters(t *testing.T) {
	h := newHarness(t)
	h.fetcher.recs["seek"] = []domain.RawRecord{raw("seek", "1", "Plumber"), raw("seek", "2", "Tiler")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunner(h.fetcher, cancellingEngine{cancel: cancel}, h.tracker, h.events, []string{"seek"}, nil)

	out, err := r.RunOnce(ctx, Request{Source: "seek"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, out.Result.NewCount)

	run, gerr := h.tracker.Get(context.Background(), out.RunID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, 2, run.JobsFound)
	assert.Equal(t, 1, run.JobsNew)
}
