// Package orchestrator owns the target channel, the connection worker
// pool, the module pipeline, the memory governor, and the scan-wide stats
// counters, and sequences their startup and shutdown.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pingcrafty/mcscan/internal/blacklist"
	"github.com/pingcrafty/mcscan/internal/connworker"
	"github.com/pingcrafty/mcscan/internal/db"
	"github.com/pingcrafty/mcscan/internal/geoip"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/memory"
	"github.com/pingcrafty/mcscan/internal/metrics"
	"github.com/pingcrafty/mcscan/internal/pipeline"
	"github.com/pingcrafty/mcscan/internal/ratelimit"
	"github.com/pingcrafty/mcscan/internal/target"
)

// Config assembles every component Orchestrator wires together. Each
// field is itself a component's own Config type; internal/config is
// responsible for mapping the on-disk configuration sections onto this
// struct.
type Config struct {
	Pool        connworker.Config
	RateLimiter ratelimit.Config
	MaxMemoryMB int

	BlacklistEnabled    bool
	BlacklistPath       string
	BlacklistRequired   bool
	BlacklistAutoUpdate bool

	Geolocation geoip.Config

	NotifyEnabled       bool
	NotifyURL           string
	NotifyBatchSize     int
	NotifyIncludeStats  bool
	NotifyFlushInterval time.Duration

	DiscoveryBatchSize int
	RefreshRate        float64
	GracePeriod        time.Duration
}

// DefaultConfig returns an Orchestrator configuration matching spec.md's
// documented defaults.
func DefaultConfig() Config {
	return Config{
		Pool:               connworker.DefaultConfig(),
		RateLimiter:        ratelimit.Config{GlobalEventsPerSecond: 100, GlobalBurst: 100, PerHostEventsPerSecond: 1, PerHostBurst: 2},
		MaxMemoryMB:        0,
		DiscoveryBatchSize: 256,
		RefreshRate:        1,
		GracePeriod:        30 * time.Second,
	}
}

// Orchestrator runs one scan from a target source through to shutdown.
type Orchestrator struct {
	cfg    Config
	source target.Source
	sink   db.Sink

	targets  chan target.Target
	pool     *connworker.Pool
	pipeline *pipeline.Pipeline
	governor *memory.Governor
	limiter  *ratelimit.Limiter
	bl       *blacklist.Blacklist

	stats       *Stats
	broadcaster *broadcaster
}

// New wires every component but does not start any goroutine; call Run to
// execute the startup sequence and block until the scan completes.
func New(cfg Config, source target.Source, sink db.Sink) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		source:      source,
		sink:        sink,
		stats:       newStats(),
		broadcaster: newBroadcaster(),
	}
}

// Subscribe returns a live feed of progress events plus an unsubscribe
// function; used by the CLI summary table and the API websocket endpoint.
func (o *Orchestrator) Subscribe() (<-chan ProgressEvent, func()) {
	return o.broadcaster.Subscribe()
}

// Stats returns the running counters.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Run executes the documented startup order (database sink, geolocation,
// blacklist, notifier, memory governor, producer, workers), drains results
// into the pipeline until the source is exhausted or ctx is cancelled, and
// then shuts down within GracePeriod.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.sink != nil {
		if err := o.sink.Init(runCtx); err != nil {
			return err
		}
	}

	provider, err := geoip.New(o.cfg.Geolocation)
	if err != nil {
		return err
	}

	if o.cfg.BlacklistEnabled {
		bl, err := blacklist.New(o.cfg.BlacklistPath, o.cfg.BlacklistAutoUpdate)
		if err != nil {
			if o.cfg.BlacklistRequired {
				return err
			}
			logging.Warn("blacklist unavailable, continuing without it", "error", err)
		} else {
			o.bl = bl
			defer bl.Close()
		}
	}

	var notifier pipeline.Notifier
	if o.cfg.NotifyEnabled && o.cfg.NotifyURL != "" {
		notifier = pipeline.NewWebhookNotifier(o.cfg.NotifyURL, o.cfg.NotifyIncludeStats, func() interface{} {
			return o.stats.Snapshot()
		})
	}

	hooks := []pipeline.Hook{
		pipeline.NewFilterHook(o.bl),
		pipeline.NewEnrichHook(provider),
	}
	if o.sink != nil {
		hooks = append(hooks, pipeline.NewPersistHook(o.sink))
	}
	hooks = append(hooks, pipeline.NewNotifyHook(notifier, o.cfg.NotifyBatchSize, o.cfg.NotifyFlushInterval))
	o.pipeline = pipeline.New(hooks)
	if err := o.pipeline.Initialize(runCtx); err != nil {
		return err
	}
	defer o.pipeline.Finalize()

	o.limiter = ratelimit.New(o.cfg.RateLimiter)
	defer o.limiter.Close()

	o.governor = memory.New(o.cfg.MaxMemoryMB)

	capacity := o.cfg.DiscoveryBatchSize * 4
	if capacity <= 0 {
		capacity = 1024
	}
	o.targets = make(chan target.Target, capacity)

	o.pool = connworker.New(o.cfg.Pool, o.targets, o.bl, o.limiter)

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		o.governor.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		o.watchMemoryShutdown(groupCtx, cancel)
		return nil
	})
	group.Go(func() error {
		o.watchMemoryEviction(groupCtx, provider)
		return nil
	})
	group.Go(func() error {
		runProducer(groupCtx, o.source, o.targets, o.governor)
		// Source exhaustion is the normal end of a scan; cancel so the
		// shutdown sequence below runs even though nothing failed.
		cancel()
		return nil
	})

	o.pool.Start()

	var drainWG sync.WaitGroup
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		o.drainResults(groupCtx)
	}()

	group.Go(func() error {
		o.publishEvents(groupCtx)
		return nil
	})

	// Block until the producer/workers chain completes on its own, or
	// until the caller cancels ctx — either way we then bound worker
	// shutdown by GracePeriod.
	<-groupCtx.Done()
	o.shutdownWithinGrace()
	drainWG.Wait()
	_ = group.Wait()

	return o.source.Close()
}

// shutdownWithinGrace runs the pool's shutdown, which lets the workers drain
// the closed target channel and cancels in-flight probes once the pool's own
// ShutdownTimeout passes. Past GracePeriod it logs a warning and keeps
// waiting for the pool to finish.
func (o *Orchestrator) shutdownWithinGrace() {
	done := make(chan struct{})
	go func() {
		o.pool.Shutdown()
		close(done)
	}()

	grace := o.cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		logging.Warn("grace period expired, forcing shutdown")
		<-done
	}
}

// drainResults feeds completed probes into the pipeline and stats until the
// pool's results channel closes. It deliberately runs pipeline.Process
// against a fresh background context rather than the scan's own
// (possibly already-cancelled) context: Pool.Shutdown closes Results only
// after in-flight probes finish or its own grace timeout expires, and a
// result produced during that window still needs a live context to reach
// enrich/persist/notify.
func (o *Orchestrator) drainResults(_ context.Context) {
	for res := range o.pool.Results() {
		o.stats.recordAttempt(res.Outcome.Kind, res.ScanResult)
		if res.ScanResult != nil {
			o.pipeline.Process(context.Background(), res.ScanResult)
		}
	}
}

// publishEvents emits a ProgressEvent every 1/RefreshRate seconds.
func (o *Orchestrator) publishEvents(ctx context.Context) {
	refresh := o.cfg.RefreshRate
	if refresh <= 0 {
		refresh = 1
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / refresh))
	defer ticker.Stop()

	var lastAttempted int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := o.stats.Snapshot()
			delta := snap.Attempted - lastAttempted
			lastAttempted = snap.Attempted
			rate := o.stats.sampleRate(delta)

			var eta float64
			if rate > 0 {
				eta = -1 // unknown universe size unless the caller tracks total targets separately
			}

			metrics.Gauge("scan_attempted_total", float64(snap.Attempted), nil)
			metrics.Gauge("scan_rate_eps", rate, nil)

			o.broadcaster.publish(ProgressEvent{
				Attempted:   snap.Attempted,
				Succeeded:   snap.Succeeded,
				Failed:      snap.Failed,
				RateEPS:     rate,
				ETASeconds:  eta,
				LastSuccess: o.stats.snapshotLastSuccess(),
				At:          time.Now(),
			})
		}
	}
}

// watchMemoryEviction sheds one entry from the geolocation cache and one
// idle per-host rate-limit bucket every time the governor signals
// PressureEvict, giving the 0.95x-RSS band (spec §4.10) an actual consumer
// instead of leaving Governor.Evictions() unread.
func (o *Orchestrator) watchMemoryEviction(ctx context.Context, provider geoip.Provider) {
	evictor, _ := provider.(geoip.Evictor)
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.governor.Evictions():
			if evictor != nil {
				evictor.EvictOldest()
			}
			if o.limiter != nil {
				o.limiter.EvictOldest()
			}
			logging.Warn("memory pressure: evicted geolocation cache and rate-limit bucket entries")
		}
	}
}

// watchMemoryShutdown cancels the scan when the governor reports
// PressureShutdown, implementing the hard-ceiling graceful-shutdown rule.
func (o *Orchestrator) watchMemoryShutdown(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.governor.Pressure() == memory.PressureShutdown {
				logging.Warn("memory ceiling exceeded, initiating graceful shutdown")
				cancel()
				return
			}
		}
	}
}
