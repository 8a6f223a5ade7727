// Package ingest turns raw scrape records into catalog writes.
//
// Engine.Process walks a batch in order. Each record is normalized,
// fingerprinted and resolved against the store, first by (source, source_id)
// and then by fingerprint, and the result is one of three writes:
//
//   - insert: nothing matched
//   - update: a match with a different content hash
//   - touch:  a match with the same content hash (only last_checked_at moves)
//
// Per-record failures are collected in IngestionResult.Errors and never stop
// the batch. Process only returns an error when ctx is cancelled.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/identity"
)

// Store is the slice of the catalog the engine reads and writes. Getters
// return (nil, nil) when nothing matches. Insert returns domain.ErrDuplicate
// when a unique identity key is already taken.
type Store interface {
	GetByIdentity(ctx context.Context, source, sourceID string) (*domain.Posting, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Posting, error)
	Insert(ctx context.Context, p *domain.Posting) (int64, error)
	Update(ctx context.Context, p *domain.Posting) error
	Touch(ctx context.Context, id int64, checkedAt time.Time) error
}

type outcome int

const (
	outcomeInserted outcome = iota + 1
	outcomeUpdated
	outcomeTouched
)

type Engine struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process reconciles raws against the store. source is used for records that
// do not carry their own. On cancellation the counters gathered so far are
// returned together with ctx.Err().
func (e *Engine) Process(ctx context.Context, raws []domain.RawRecord, source string) (domain.IngestionResult, error) {
	res := domain.IngestionResult{Errors: []string{}}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			e.log.Warn("ingest cancelled", "source", source, "processed", res.TotalProcessed, "remaining", len(raws)-res.TotalProcessed)
			return res, err
		}
		res.TotalProcessed++

		out, err := e.processOne(ctx, raw, source)
		if err != nil {
			msg := fmt.Sprintf("error processing '%s': %v", label(raw), err)
			res.Errors = append(res.Errors, msg)
			e.log.Warn("ingest record failed", "source", source, "source_id", raw.SourceID, "err", err)
			continue
		}

		switch out {
		case outcomeInserted:
			res.NewCount++
		case outcomeUpdated:
			res.UpdatedCount++
		case outcomeTouched:
			res.DedupedCount++
		}
	}

	e.log.Info("ingest batch processed",
		"source", source,
		"total", res.TotalProcessed,
		"new", res.NewCount,
		"updated", res.UpdatedCount,
		"deduped", res.DedupedCount,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (e *Engine) processOne(ctx context.Context, raw domain.RawRecord, source string) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()

	p, err := Normalize(raw, source)
	if err != nil {
		return 0, err
	}
	p.Fingerprint = identity.Fingerprint(p)
	p.ContentHash = identity.ContentHash(p.Description, p.Requirements)

	now := e.now().UTC()

	existing, err := e.resolve(ctx, p)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return e.reconcile(ctx, existing, p, now)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	p.ScrapedAt = now
	p.LastCheckedAt = now
	p.IsActive = true

	id, err := e.store.Insert(ctx, &p)
	if errors.Is(err, domain.ErrDuplicate) {
		// Another run inserted the same posting between our lookup and insert.
		existing, rerr := e.resolve(ctx, p)
		if rerr != nil {
			return 0, rerr
		}
		if existing == nil {
			return 0, err
		}
		return e.reconcile(ctx, existing, p, now)
	}
	if err != nil {
		return 0, err
	}
	e.log.Debug("posting inserted", "id", id, "source", p.Source, "source_id", p.SourceID)
	return outcomeInserted, nil
}

// resolve looks up by (source, source_id) first and falls back to the
// fingerprint. A fingerprint match keeps its stored identity pair.
func (e *Engine) resolve(ctx context.Context, p domain.Posting) (*domain.Posting, error) {
	existing, err := e.store.GetByIdentity(ctx, p.Source, p.SourceID)
	if err != nil {
		return nil, fmt.Errorf("lookup by identity: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	existing, err = e.store.GetByFingerprint(ctx, p.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("lookup by fingerprint: %w", err)
	}
	return existing, nil
}

func (e *Engine) reconcile(ctx context.Context, existing *domain.Posting, in domain.Posting, now time.Time) (outcome, error) {
	if existing.ContentHash == in.ContentHash {
		if existing.IsActive {
			if err := e.store.Touch(ctx, existing.ID, now); err != nil {
				return 0, fmt.Errorf("touch posting %d: %w", existing.ID, err)
			}
			return outcomeTouched, nil
		}
		// Swept as stale and seen again unchanged: reactivate, still a dedup.
		upd := *existing
		upd.IsActive = true
		upd.LastCheckedAt = now
		if err := e.store.Update(ctx, &upd); err != nil {
			return 0, fmt.Errorf("reactivate posting %d: %w", existing.ID, err)
		}
		return outcomeTouched, nil
	}

	upd := *existing
	upd.Description = in.Description
	upd.Requirements = in.Requirements
	upd.ContentHash = in.ContentHash
	upd.PayMin = in.PayMin
	upd.PayMax = in.PayMax
	upd.EmploymentType = in.EmploymentType
	upd.UpdatedAt = now
	upd.LastCheckedAt = now
	upd.IsActive = true
	if err := e.store.Update(ctx, &upd); err != nil {
		return 0, fmt.Errorf("update posting %d: %w", existing.ID, err)
	}
	e.log.Debug("posting updated", "id", existing.ID, "source", existing.Source, "source_id", existing.SourceID)
	return outcomeUpdated, nil
}

func label(raw domain.RawRecord) string {
	if t := strings.TrimSpace(raw.Title); t != "" {
		return t
	}
	if id := strings.TrimSpace(raw.SourceID); id != "" {
		return id
	}
	return "<unknown>"
}
