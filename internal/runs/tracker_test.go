package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/domain"
)

type memRepo struct {
	runs map[int64]domain.IngestRun
	next int64
}

func newMemRepo() *memRepo { return &memRepo{runs: map[int64]domain.IngestRun{}} }

func (m *memRepo) CreateRun(_ context.Context, r *domain.IngestRun) (int64, error) {
	m.next++
	r.ID = m.next
	m.runs[r.ID] = *r
	return r.ID, nil
}

func (m *memRepo) UpdateRun(_ context.Context, r *domain.IngestRun) error {
	m.runs[r.ID] = *r
	return nil
}

func (m *memRepo) GetRun(_ context.Context, id int64) (*domain.IngestRun, error) {
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memRepo) ListRecentRuns(_ context.Context, limit int) ([]domain.IngestRun, error) {
	var out []domain.IngestRun
	for id := m.next; id > 0 && len(out) < limit; id-- {
		out = append(out, m.runs[id])
	}
	return out, nil
}

var (
	start = time.Date(2025, 12, 1, 6, 0, 0, 0, time.UTC)
	end   = start.Add(90 * time.Second)
)

func newTracker(repo Repository) (*Tracker, *time.Time) {
	now := start
	tr := NewTracker(repo, nil).WithClock(func() time.Time { return now })
	return tr, &now
}

func TestBeginCreatesRunningRun(t *testing.T) {
	repo := newMemRepo()
	tr, _ := newTracker(repo)

	id, err := tr.Begin(context.Background(), "all", []string{"plumber", "Sydney"}, "Sydney")
	require.NoError(t, err)

	run := repo.runs[id]
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.Equal(t, "plumber, Sydney", run.Keywords)
	assert.Equal(t, "Sydney", *run.Location)
	assert.Equal(t, start, run.StartedAt)
	assert.Nil(t, run.CompletedAt)
}

func TestCompleteSuccess(t *testing.T) {
	repo := newMemRepo()
	tr, now := newTracker(repo)
	id, err := tr.Begin(context.Background(), "seek", nil, "")
	require.NoError(t, err)

	*now = end
	err = tr.Complete(context.Background(), id, 4, domain.IngestionResult{NewCount: 2, UpdatedCount: 1, DedupedCount: 1, TotalProcessed: 4})
	require.NoError(t, err)

	run := repo.runs[id]
	assert.Equal(t, domain.RunSuccess, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, end, *run.CompletedAt)
	assert.Equal(t, 4, run.JobsFound)
	assert.Equal(t, 2, run.JobsNew)
	assert.Equal(t, 1, run.JobsUpdated)
	assert.Equal(t, 1, run.JobsDeduped)
	assert.Nil(t, run.ErrorMessage)
	assert.Nil(t, run.Location)
}

func TestCompletePartialSuccessSamplesErrors(t *testing.T) {
	repo := newMemRepo()
	tr, _ := newTracker(repo)
	id, err := tr.Begin(context.Background(), "seek", nil, "")
	require.NoError(t, err)

	var errs []string
	for i := 0; i < 12; i++ {
		errs = append(errs, fmt.Sprintf("error processing 'job %d': boom", i))
	}
	require.NoError(t, tr.Complete(context.Background(), id, 12, domain.IngestionResult{TotalProcessed: 12, Errors: errs}))

	run := repo.runs[id]
	assert.Equal(t, domain.RunPartialSuccess, run.Status)
	assert.Equal(t, "12 errors occurred during processing", *run.ErrorMessage)

	var meta struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(*run.Metadata), &meta))
	assert.Equal(t, errs[:MaxErrorSample], meta.Errors)
}

func TestFailRecordsCauseAndPartialCounters(t *testing.T) {
	repo := newMemRepo()
	tr, _ := newTracker(repo)
	id, err := tr.Begin(context.Background(), "indeed", []string{"tiler"}, "Perth")
	require.NoError(t, err)

	cause := fmt.Errorf("fetch indeed: %w", domain.ErrFetch)
	partial := &domain.IngestionResult{NewCount: 3, TotalProcessed: 3}
	require.NoError(t, tr.Fail(context.Background(), id, 7, cause, partial))

	run := repo.runs[id]
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, "fetch indeed: fetch failed", *run.ErrorMessage)
	assert.Contains(t, *run.ErrorDetail, "fetch indeed: fetch failed\n")
	assert.Contains(t, *run.ErrorDetail, "*errors.errorString: fetch failed")
	assert.Equal(t, 7, run.JobsFound)
	assert.Equal(t, 3, run.JobsNew)
	assert.NotNil(t, run.CompletedAt)
}

func TestFinalizedRunIsImmutable(t *testing.T) {
	repo := newMemRepo()
	tr, _ := newTracker(repo)
	id, err := tr.Begin(context.Background(), "seek", nil, "")
	require.NoError(t, err)
	require.NoError(t, tr.Complete(context.Background(), id, 0, domain.IngestionResult{}))

	err = tr.Complete(context.Background(), id, 0, domain.IngestionResult{})
	assert.ErrorIs(t, err, domain.ErrRunFinalized)
	err = tr.Fail(context.Background(), id, 0, errors.New("late"), nil)
	assert.ErrorIs(t, err, domain.ErrRunFinalized)
	assert.Equal(t, domain.RunSuccess, repo.runs[id].Status)
}

func TestUnknownRun(t *testing.T) {
	tr, _ := newTracker(newMemRepo())
	_, err := tr.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, tr.Complete(context.Background(), 42, 0, domain.IngestionResult{}), domain.ErrNotFound)
}

func TestRecentDefaultsLimit(t *testing.T) {
	repo := newMemRepo()
	tr, _ := newTracker(repo)
	for i := 0; i < 25; i++ {
		_, err := tr.Begin(context.Background(), "seek", nil, "")
		require.NoError(t, err)
	}
	got, err := tr.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.Equal(t, int64(25), got[0].ID)
}
