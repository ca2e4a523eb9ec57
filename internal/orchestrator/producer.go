package orchestrator

import (
	"context"
	"time"

	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/memory"
	"github.com/pingcrafty/mcscan/internal/target"
)

const pausePollInterval = 100 * time.Millisecond

// runProducer drains source into out until the source is exhausted or ctx
// is cancelled, pausing (without closing out) whenever the memory governor
// reports PressurePause.
func runProducer(ctx context.Context, source target.Source, out chan<- target.Target, governor *memory.Governor) {
	defer close(out)

	for {
		if governor != nil {
			if err := waitForPressureBelow(ctx, governor, memory.PressurePause); err != nil {
				return
			}
		}

		t, ok, err := source.Next(ctx)
		if err != nil {
			logging.Error("target source failed", "error", err)
			return
		}
		if !ok {
			return
		}

		select {
		case out <- t:
		case <-ctx.Done():
			return
		}
	}
}

// waitForPressureBelow blocks while the governor reports at least level,
// polling rather than subscribing since pressure transitions are
// infrequent relative to the producer's hot loop.
func waitForPressureBelow(ctx context.Context, governor *memory.Governor, level memory.Pressure) error {
	if governor.Pressure() < level {
		return nil
	}
	logging.Warn("memory pressure pausing target production")
	ticker := time.NewTicker(pausePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if governor.Pressure() < level {
				return nil
			}
		}
	}
}
