package delta

import (
	"context"
	"sync"
	"time"
)

// pacer spaces request dispatches for one credential at least interval apart.
// Callers block until their reserved slot arrives, so a burst of concurrent
// requests drains one at a time instead of failing.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// reserve claims the next dispatch slot and sleeps until it arrives. It
// returns the time spent waiting so the executor can record it.
func (p *pacer) reserve(ctx context.Context) (time.Duration, error) {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.interval)
	p.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return 0, nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return wait, ctx.Err()
	case <-t.C:
		return wait, nil
	}
}

// limiterCache hands out pacers keyed by api key. The cache lives as long as
// the process, so building a fresh Client for a credential never resets its
// pacing.
type limiterCache struct {
	mu       sync.Mutex
	interval time.Duration
	pacers   map[string]*pacer
}

func newLimiterCache(interval time.Duration) *limiterCache {
	return &limiterCache{
		interval: interval,
		pacers:   make(map[string]*pacer),
	}
}

func (l *limiterCache) pacerFor(apiKey string) *pacer {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pacers[apiKey]
	if !ok {
		p = &pacer{interval: l.interval}
		l.pacers[apiKey] = p
	}
	return p
}
