// Package scheduler fires recurring ingests (one per trade and city) and the
// stale-posting sweep on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobintel-engine/internal/config"
	"jobintel-engine/internal/poll"
)

const defaultTimezone = "Australia/Sydney"

type IngestRunner interface {
	RunOnce(ctx context.Context, req poll.Request) (poll.Outcome, error)
}

type Sweeper interface {
	DeactivateStale(ctx context.Context, before time.Time) (int64, error)
}

// Entry describes one registered cron job.
type Entry struct {
	Name string    `json:"name"`
	Next time.Time `json:"next"`
}

type Scheduler struct {
	cron    *cron.Cron
	runner  IngestRunner
	sweeper Sweeper
	sched   config.ScheduleConfig
	sweep   config.SweepConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	names  map[cron.EntryID]string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler; nothing runs until Start. sweeper may be nil when
// sweeping is disabled.
func New(runner IngestRunner, sweeper Sweeper, sched config.ScheduleConfig, sweep config.SweepConfig) (*Scheduler, error) {
	tz := sched.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", tz, err)
	}

	logger := cron.PrintfLogger(log.New(os.Stderr, "[cron] ", log.LstdFlags))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:    c,
		runner:  runner,
		sweeper: sweeper,
		sched:   sched,
		sweep:   sweep,
		now:     time.Now,
		sleep:   sleepCtx,
		names:   make(map[cron.EntryID]string),
	}, nil
}

// Requests lists the ingests one schedule tick performs.
func (s *Scheduler) Requests() []poll.Request {
	var out []poll.Request
	for _, trade := range s.sched.Trades {
		for _, city := range s.sched.Cities {
			out = append(out, poll.Request{
				Source:     poll.SourceAll,
				Keywords:   []string{trade},
				Location:   city,
				MaxResults: s.sched.MaxResults,
			})
		}
	}
	return out
}

// Start registers the entries and starts the cron loop. Jobs run with a
// context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	if s.sched.Enabled {
		for _, req := range s.Requests() {
			req := req
			name := fmt.Sprintf("fetch-%s-%s", req.Keywords[0], req.Location)
			if err := s.add(s.sched.Cron, name, func() { s.runLogged(ctx, name, req) }); err != nil {
				cancel()
				return err
			}
		}
	}
	if s.sweep.Enabled && s.sweeper != nil {
		if err := s.add(s.sweep.Cron, "sweep-stale", func() {
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("[scheduler] sweep error: %v", err)
			}
		}); err != nil {
			cancel()
			return err
		}
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[scheduler] cron started entries=%d spec=%q tz=%s", len(s.cron.Entries()), s.sched.Cron, s.cron.Location())

	if s.sched.Enabled && s.sched.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunAll(ctx)
		}()
	}
	return nil
}

func (s *Scheduler) add(spec, name string, fn func()) error {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%s): %w", name, err)
	}
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("[scheduler] cron stopped")
}

func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.cron.Entries() {
		out = append(out, Entry{Name: s.names[e.ID], Next: e.Next})
	}
	return out
}

// RunAll performs every scheduled ingest once, in order.
func (s *Scheduler) RunAll(ctx context.Context) {
	log.Println("[scheduler] ingest cycle started")
	for _, req := range s.Requests() {
		if ctx.Err() != nil {
			return
		}
		s.runLogged(ctx, fmt.Sprintf("fetch-%s-%s", req.Keywords[0], req.Location), req)
	}
	log.Println("[scheduler] ingest cycle complete")
}

func (s *Scheduler) runLogged(ctx context.Context, name string, req poll.Request) {
	out, err := s.RunWithRetry(ctx, req)
	if err != nil {
		log.Printf("[scheduler] %s failed: %v", name, err)
		return
	}
	log.Printf("[scheduler] %s ok run=%d found=%d new=%d updated=%d deduped=%d errors=%d",
		name, out.RunID, out.JobsFound, out.Result.NewCount, out.Result.UpdatedCount,
		out.Result.DedupedCount, len(out.Result.Errors))
}

// RunWithRetry calls RunOnce up to retry.max_attempts times, sleeping
// Backoff(n) after the n-th failure.
func (s *Scheduler) RunWithRetry(ctx context.Context, req poll.Request) (poll.Outcome, error) {
	attempts := s.sched.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		out poll.Outcome
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err = s.runner.RunOnce(ctx, req)
		if err == nil || !retryable(err) || attempt == attempts {
			return out, err
		}
		wait := Backoff(attempt, s.sched.Retry.MaxBackoff)
		log.Printf("[scheduler] attempt %d/%d for %v failed, retrying in %s: %v", attempt, attempts, req.Keywords, wait, err)
		if serr := s.sleep(ctx, wait); serr != nil {
			return out, err
		}
	}
	return out, err
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, poll.ErrUnknownSource)
}

// Backoff is 2^attempt seconds, capped at limit when limit > 0.
func Backoff(attempt int, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// Sweep deactivates postings not seen for sweep.max_age.
func (s *Scheduler) Sweep(ctx context.Context) (int64, error) {
	if s.sweeper == nil {
		return 0, errors.New("sweep: no sweeper configured")
	}
	before := s.now().UTC().Add(-s.sweep.MaxAge)
	n, err := s.sweeper.DeactivateStale(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	log.Printf("[scheduler] sweep deactivated=%d before=%s", n, before.Format(time.RFC3339))
	return n, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
