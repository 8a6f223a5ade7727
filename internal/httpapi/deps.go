package httpapi

import (
	"context"
	"sync/atomic"

	"jobintel-engine/internal/catalog"
	"jobintel-engine/internal/config"
	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/poll"
	"jobintel-engine/internal/scheduler"
)

type Ingester interface {
	RunOnce(ctx context.Context, req poll.Request) (poll.Outcome, error)
}

type RunReader interface {
	Get(ctx context.Context, id int64) (*domain.IngestRun, error)
	Recent(ctx context.Context, limit int) ([]domain.IngestRun, error)
}

type EntryLister interface {
	Entries() []scheduler.Entry
}

type Deps struct {
	Catalog *catalog.Service
	Runs    RunReader
	Ingest  Ingester

	Hub *events.Hub

	// Optional; health reports its entries when set.
	Scheduler EntryLister

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}
