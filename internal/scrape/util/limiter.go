package util

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter rate-limits per hostname so every source sharing one scrape
// API host shares one budget.
type HostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewHostLimiter allows reqPerSec per host with the given burst. A
// non-positive rate disables limiting.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	hl := &HostLimiter{m: make(map[string]*rate.Limiter)}
	hl.set(reqPerSec, burst)
	return hl
}

func (hl *HostLimiter) set(reqPerSec float64, burst int) {
	if reqPerSec <= 0 {
		hl.r = rate.Inf
	} else {
		hl.r = rate.Limit(reqPerSec)
	}
	if burst < 1 {
		burst = 1
	}
	hl.b = burst
}

// SetLimit changes the rate for all hosts, including ones already seen.
func (hl *HostLimiter) SetLimit(reqPerSec float64, burst int) {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	hl.set(reqPerSec, burst)
	for _, lim := range hl.m {
		lim.SetLimit(hl.r)
		lim.SetBurst(hl.b)
	}
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.r, hl.b)
	hl.m[host] = lim
	return lim
}

func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hl.limiterFor("_").Wait(ctx)
	}
	return hl.limiterFor(u.Host).Wait(ctx)
}
