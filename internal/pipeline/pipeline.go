package pipeline

import (
	"context"
	"time"

	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/metrics"
	"github.com/pingcrafty/mcscan/internal/protocol"
)

const defaultHookTimeout = 5 * time.Second

// Pipeline runs a ScanResult through its hooks in declared order.
type Pipeline struct {
	hooks       []Hook
	hookTimeout time.Duration
}

// New builds a Pipeline over hooks, in the order they should run. Passing
// a nil entry for a disabled stage (e.g. enrich with geolocation turned
// off) is the caller's responsibility to filter out before calling New.
func New(hooks []Hook) *Pipeline {
	return &Pipeline{hooks: hooks, hookTimeout: defaultHookTimeout}
}

// Initialize runs Initialize on every hook in declared order, stopping at
// the first failure.
func (p *Pipeline) Initialize(ctx context.Context) error {
	for _, h := range p.hooks {
		if err := h.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Finalize runs Finalize on every hook in reverse initialization order,
// continuing past individual failures so every hook gets a chance to flush.
func (p *Pipeline) Finalize() {
	for i := len(p.hooks) - 1; i >= 0; i-- {
		if err := p.hooks[i].Finalize(); err != nil {
			logging.Error("pipeline hook finalize failed", "hook", p.hooks[i].Name(), "error", err)
		}
	}
}

// Process runs result through every hook in order. A hook returning Drop
// stops processing immediately; a hook returning an error is logged and
// processing continues with the next hook (the spec's "Error: logged,
// continues" rule — only persist additionally routes to the dead-letter
// sink, handled inside the persist hook itself).
func (p *Pipeline) Process(ctx context.Context, result *protocol.ScanResult) {
	timer := metrics.NewTimer("pipeline_duration_seconds", nil)
	defer timer.Stop()

	for _, h := range p.hooks {
		hookCtx, cancel := context.WithTimeout(ctx, p.hookTimeout)
		verdict, err := h.Process(hookCtx, result)
		cancel()

		if err != nil {
			logging.Error("pipeline hook error", "hook", h.Name(), "ip", result.IP, "port", result.Port, "error", err)
			metrics.Counter("pipeline_hook_errors_total", metrics.Labels{"hook": h.Name()})
		}
		if verdict == Drop {
			metrics.Counter("pipeline_drops_total", metrics.Labels{"hook": h.Name()})
			return
		}
	}
}
