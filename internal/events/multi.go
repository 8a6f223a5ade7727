package events

import (
	"context"
	"log/slog"
)

// Multi publishes to every target. Failures are logged and do not stop
// delivery to the rest.
type Multi struct {
	targets []Publisher
	log     *slog.Logger
}

func NewMulti(log *slog.Logger, targets ...Publisher) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{targets: targets, log: log}
}

func (m *Multi) Publish(ctx context.Context, e Event) error {
	for _, t := range m.targets {
		if t == nil {
			continue
		}
		if err := t.Publish(ctx, e); err != nil {
			m.log.Warn("event publish failed", "type", e.Type, "err", err)
		}
	}
	return nil
}
