// Package ratelimit throttles probe attempts with a global token bucket
// plus a per-host token bucket, so a single large subnet can't starve the
// rest of a scan of its fair share of the global rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostBucketIdleTimeout is how long an idle per-host bucket is kept before
// eviction; resolved from an open design question in favor of a fixed
// five-minute window rather than a size-bounded LRU, since host churn
// during a large scan makes LRU eviction unpredictable to reason about.
const hostBucketIdleTimeout = 5 * time.Minute

// Limiter gates probe attempts globally and per host.
type Limiter struct {
	global *rate.Limiter

	perHostRate  rate.Limit
	perHostBurst int

	mu      sync.Mutex
	perHost map[string]*hostBucket
	stopJan chan struct{}
	janOnce sync.Once
}

type hostBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Config configures a Limiter.
type Config struct {
	// GlobalEventsPerSecond bounds the aggregate probe rate across all hosts.
	GlobalEventsPerSecond float64
	GlobalBurst           int
	// PerHostEventsPerSecond bounds the rate for any single host.
	PerHostEventsPerSecond float64
	PerHostBurst           int
}

// New constructs a Limiter and starts its idle-bucket janitor.
func New(cfg Config) *Limiter {
	l := &Limiter{
		global:       rate.NewLimiter(rate.Limit(cfg.GlobalEventsPerSecond), cfg.GlobalBurst),
		perHostRate:  rate.Limit(cfg.PerHostEventsPerSecond),
		perHostBurst: cfg.PerHostBurst,
		perHost:      make(map[string]*hostBucket),
		stopJan:      make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Wait blocks until both the global bucket and host's per-host bucket admit
// one event, or ctx is cancelled. Global acquisition is FIFO via
// rate.Limiter's internal reservation queue.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}
	return l.hostLimiter(host).Wait(ctx)
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.perHost[host]
	if !ok {
		b = &hostBucket{limiter: rate.NewLimiter(l.perHostRate, l.perHostBurst)}
		l.perHost[host] = b
	}
	b.lastUsed = time.Now()
	return b.limiter
}

// ActiveHosts returns the number of hosts with a live (not yet evicted)
// per-host bucket.
func (l *Limiter) ActiveHosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perHost)
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopJan:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for host, b := range l.perHost {
		if now.Sub(b.lastUsed) > hostBucketIdleTimeout {
			delete(l.perHost, host)
		}
	}
}

// EvictOldest drops the single least-recently-used per-host bucket. Unlike
// the janitor's idle sweep, this is called directly by the memory governor
// when RSS crosses the evict threshold, so the per-host bucket map sheds
// entries immediately rather than waiting out hostBucketIdleTimeout.
func (l *Limiter) EvictOldest() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var oldestHost string
	var oldestTime time.Time
	first := true
	for host, b := range l.perHost {
		if first || b.lastUsed.Before(oldestTime) {
			oldestHost, oldestTime = host, b.lastUsed
			first = false
		}
	}
	if oldestHost != "" {
		delete(l.perHost, oldestHost)
	}
}

// Close stops the idle-bucket janitor goroutine.
func (l *Limiter) Close() {
	l.janOnce.Do(func() { close(l.stopJan) })
}
