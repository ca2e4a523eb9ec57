package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcrafty/mcscan/internal/protocol"
)

// emaAlpha is the exponential-moving-average smoothing factor for the
// published probe rate.
const emaAlpha = 0.2

// Stats is the scan's sole piece of process-wide mutable state: plain
// atomically-updated counters plus a dedicated publisher goroutine
// (Orchestrator.publishEvents) that turns them into ProgressEvents. No
// other module holds shared mutable state outside its own structure.
type Stats struct {
	attempted   atomic.Int64
	succeeded   atomic.Int64
	failed      atomic.Int64
	timeouts    atomic.Int64
	refused     atomic.Int64
	errors      atomic.Int64
	rateLimited atomic.Int64
	blacklisted atomic.Int64

	startedAt time.Time

	mu          sync.Mutex
	rateEPS     float64
	lastSample  time.Time
	lastSuccess *protocol.ScanResult
}

func newStats() *Stats {
	now := time.Now()
	return &Stats{startedAt: now, lastSample: now}
}

// recordAttempt updates counters for one completed probe.
func (s *Stats) recordAttempt(kind protocol.OutcomeKind, success *protocol.ScanResult) {
	s.attempted.Add(1)
	switch kind {
	case protocol.OutcomeSuccess, protocol.OutcomeLegacyDetected:
		s.succeeded.Add(1)
		s.mu.Lock()
		s.lastSuccess = success
		s.mu.Unlock()
	case protocol.OutcomeTimeout:
		s.failed.Add(1)
		s.timeouts.Add(1)
	case protocol.OutcomeRefused:
		s.failed.Add(1)
		s.refused.Add(1)
	case protocol.OutcomeRateLimited:
		s.rateLimited.Add(1)
	case protocol.OutcomeBlacklistSkipped:
		s.blacklisted.Add(1)
	default:
		s.failed.Add(1)
		s.errors.Add(1)
	}
}

// sampleRate updates the EMA-smoothed probes/sec rate from the delta since
// the previous sample; called once per publish tick.
func (s *Stats) sampleRate(attempted int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.lastSample).Seconds()
	s.lastSample = now
	if elapsed <= 0 {
		return s.rateEPS
	}

	instant := float64(attempted) / elapsed
	if s.rateEPS == 0 {
		s.rateEPS = instant
	} else {
		s.rateEPS = emaAlpha*instant + (1-emaAlpha)*s.rateEPS
	}
	return s.rateEPS
}

func (s *Stats) snapshotLastSuccess() *protocol.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Snapshot is a point-in-time, read-only copy of the counters.
type Snapshot struct {
	Attempted   int64
	Succeeded   int64
	Failed      int64
	Timeouts    int64
	Refused     int64
	Errors      int64
	RateLimited int64
	Blacklisted int64
	Elapsed     time.Duration
}

// Snapshot returns the current counter values for CLI/webhook reporting.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Attempted:   s.attempted.Load(),
		Succeeded:   s.succeeded.Load(),
		Failed:      s.failed.Load(),
		Timeouts:    s.timeouts.Load(),
		Refused:     s.refused.Load(),
		Errors:      s.errors.Load(),
		RateLimited: s.rateLimited.Load(),
		Blacklisted: s.blacklisted.Load(),
		Elapsed:     time.Since(s.startedAt),
	}
}
