package scrape

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"jobintel-engine/internal/domain"
)

// FetchAll queries every source concurrently and concatenates the results in
// the order of sources. The first failure cancels the other fetches and is
// returned; no partial batch is produced.
func FetchAll(ctx context.Context, f Fetcher, sources []string, keywords []string, location string, maxResults int) ([]domain.RawRecord, error) {
	results := make([][]domain.RawRecord, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			recs, err := f.Fetch(gctx, src, keywords, location, maxResults)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", src, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]domain.RawRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
