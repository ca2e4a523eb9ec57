// Package connworker runs the fixed-size worker pool that drains the
// target channel, enforces the blacklist and rate limits, invokes the
// protocol engine, and hands completed probes off to the module pipeline.
// It keeps the teacher pool's goroutine/metrics shape (probe retries happen
// inside protocol.Probe, per EngineConfig.Retries, not in the pool) but
// replaces the generic Job interface with a concrete target-to-outcome probe.
package connworker

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcrafty/mcscan/internal/blacklist"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/metrics"
	"github.com/pingcrafty/mcscan/internal/protocol"
	"github.com/pingcrafty/mcscan/internal/ratelimit"
	"github.com/pingcrafty/mcscan/internal/target"
)

// Result is what a completed probe hands back to the orchestrator: either
// a usable ScanResult (Success/LegacyDetected) or a skip/failure reason.
type Result struct {
	Target     target.Target
	Outcome    protocol.Outcome
	ScanResult *protocol.ScanResult
}

// Config configures a Pool.
type Config struct {
	Size            int
	PerHostPermits  int
	EngineConfig    protocol.EngineConfig
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sane defaults for a moderate-scale scan.
func DefaultConfig() Config {
	return Config{
		Size:            200,
		PerHostPermits:  1,
		ShutdownTimeout: 30 * time.Second,
		EngineConfig: protocol.EngineConfig{
			Timeout:       3 * time.Second,
			Retries:       1,
			LegacySupport: true,
		},
	}
}

// Pool pulls Targets from a channel and produces Results on another,
// respecting the blacklist, global+per-host rate limits, and a per-host
// connection-permit semaphore.
type Pool struct {
	config    Config
	targets   <-chan target.Target
	results   chan Result
	blacklist *blacklist.Blacklist
	limiter   *ratelimit.Limiter

	permitsMu sync.Mutex
	permits   map[string]chan struct{}

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	shutdown32 int32
}

// New builds a Pool. targets is the bounded channel the producer feeds;
// results is drained by the orchestrator into the module pipeline.
func New(config Config, targets <-chan target.Target, bl *blacklist.Blacklist, limiter *ratelimit.Limiter) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:    config,
		targets:   targets,
		results:   make(chan Result, config.Size*4),
		blacklist: bl,
		limiter:   limiter,
		permits:   make(map[string]chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Results returns the channel completed probes are published to.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Start spawns the configured number of worker goroutines.
func (p *Pool) Start() {
	logging.Info("starting connection worker pool", "worker_count", p.config.Size)
	metrics.Gauge("worker_pool_size", float64(p.config.Size), metrics.Labels{"component": "connworker"})

	for i := 0; i < p.config.Size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Shutdown waits (up to ShutdownTimeout) for the workers to drain the
// target channel, which the producer closes, and finish their in-flight
// probes; once the timeout passes it cancels the probes still running.
// Results is closed after every worker has returned.
func (p *Pool) Shutdown() {
	if !atomic.CompareAndSwapInt32(&p.shutdown32, 0, 1) {
		return
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("connection worker pool shutdown complete")
	case <-time.After(p.config.ShutdownTimeout):
		logging.Warn("connection worker pool shutdown timed out, cancelling in-flight probes")
		p.cancel()
		<-done
	}
	p.cancel()
	close(p.results)
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case t, ok := <-p.targets:
			if !ok {
				return
			}
			p.probe(t)
		case <-p.ctx.Done():
			return
		}
	}
}

// probe implements the connection worker's per-target loop: blacklist
// check, rate-limit acquisition, per-host permit, protocol engine
// invocation, outcome translation, permit release, and metrics.
func (p *Pool) probe(t target.Target) {
	timer := metrics.NewTimer("probe_duration_seconds", nil)
	defer timer.Stop()

	if p.blacklist != nil {
		ip := net.ParseIP(t.IP)
		if ip != nil {
			if hit, err := p.blacklist.Contains(ip); err == nil && hit {
				p.emit(t, protocol.Outcome{Kind: protocol.OutcomeBlacklistSkipped}, nil)
				metrics.Counter("probes_blacklisted_total", nil)
				return
			}
		}
	}

	// Rate-token and permit acquisition may not outlive the probe's own
	// deadline: a target that would need to wait longer than its timeout
	// is abandoned as RateLimited rather than probed late.
	deadlineCtx, cancel := context.WithTimeout(p.ctx, p.config.EngineConfig.Timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(deadlineCtx, t.IP); err != nil {
			if deadlineCtx.Err() == context.DeadlineExceeded {
				p.emit(t, protocol.Outcome{Kind: protocol.OutcomeRateLimited, Err: err}, nil)
				metrics.Counter("probes_completed_total", metrics.Labels{"outcome": string(protocol.OutcomeRateLimited)})
			}
			return // shutdown cancellation or exhausted deadline; no retry
		}
	}

	release := p.acquirePermit(deadlineCtx, t.IP)
	defer release()
	if deadlineCtx.Err() != nil {
		p.emit(t, protocol.Outcome{Kind: protocol.OutcomeRateLimited, Err: deadlineCtx.Err()}, nil)
		metrics.Counter("probes_completed_total", metrics.Labels{"outcome": string(protocol.OutcomeRateLimited)})
		return
	}

	outcome := protocol.Probe(p.ctx, t.IP, t.Port, p.config.EngineConfig)

	var result *protocol.ScanResult
	if outcome.Kind == protocol.OutcomeSuccess || outcome.Kind == protocol.OutcomeLegacyDetected {
		result = normalize(t, outcome)
	}

	p.emit(t, outcome, result)

	metrics.Counter("probes_completed_total", metrics.Labels{"outcome": string(outcome.Kind)})
}

func (p *Pool) emit(t target.Target, outcome protocol.Outcome, result *protocol.ScanResult) {
	select {
	case p.results <- Result{Target: t, Outcome: outcome, ScanResult: result}:
	case <-p.ctx.Done():
	}
}

// acquirePermit blocks until a connection-permit slot for t's host is
// available and returns a function that releases it.
func (p *Pool) acquirePermit(ctx context.Context, host string) func() {
	permits := p.limiterFor(host)
	select {
	case permits <- struct{}{}:
	case <-ctx.Done():
		return func() {}
	}
	return func() {
		select {
		case <-permits:
		default:
		}
	}
}

func (p *Pool) limiterFor(host string) chan struct{} {
	p.permitsMu.Lock()
	defer p.permitsMu.Unlock()

	ch, ok := p.permits[host]
	if !ok {
		n := p.config.PerHostPermits
		if n <= 0 {
			n = 1
		}
		ch = make(chan struct{}, n)
		p.permits[host] = ch
	}
	return ch
}

// normalize builds the canonical ScanResult from a successful probe.
func normalize(t target.Target, outcome protocol.Outcome) *protocol.ScanResult {
	doc := outcome.Document
	software := doc.Software
	var faviconHash string
	var faviconBytes []byte
	onlineGuess := protocol.OnlineModeUnknown

	if outcome.Kind == protocol.OutcomeSuccess {
		onlineGuess = protocol.GuessOnlineMode(doc.PlayerSample)
		if hash, bytes, ok := protocol.DecodeFavicon(doc.FaviconDataURI); ok {
			faviconHash, faviconBytes = hash, bytes
		}
	}

	return &protocol.ScanResult{
		IP:              t.IP,
		Port:            t.Port,
		DiscoveredAt:    time.Now().UTC(),
		ProtocolID:      doc.ProtocolID,
		Software:        software,
		VersionString:   doc.VersionName,
		MOTDPlain:       doc.MOTDPlain,
		MOTDRaw:         doc.MOTDRaw,
		PlayersOnline:   doc.PlayersOnline,
		PlayersMax:      doc.PlayersMax,
		PlayerSample:    doc.PlayerSample,
		Mods:            doc.Mods,
		FaviconHash:     faviconHash,
		FaviconBytes:    faviconBytes,
		LatencyMS:       outcome.RTT.Milliseconds(),
		OnlineModeGuess: onlineGuess,
		RawDocument:     doc.RawJSON,
	}
}
