package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcrafty/mcscan/internal/protocol"
	"github.com/pingcrafty/mcscan/internal/target"
)

// fixedSource hands out a fixed slice of targets, then reports exhaustion.
type fixedSource struct {
	mu      sync.Mutex
	targets []target.Target
	i       int
	closed  bool
}

func (s *fixedSource) Next(_ context.Context) (target.Target, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i >= len(s.targets) {
		return target.Target{}, false, nil
	}
	t := s.targets[s.i]
	s.i++
	return t, true, nil
}

func (s *fixedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// nopSink implements db.Sink as a no-op, recording call counts for assertions.
type nopSink struct {
	mu      sync.Mutex
	statted int
}

func (n *nopSink) Init(_ context.Context) error { return nil }
func (n *nopSink) UpsertServer(_ context.Context, _ protocol.ScanResult) error {
	return nil
}
func (n *nopSink) RecordStatus(_ context.Context, _ protocol.ScanResult) error {
	n.mu.Lock()
	n.statted++
	n.mu.Unlock()
	return nil
}
func (n *nopSink) UpsertPlayer(_ context.Context, _ protocol.Player, _ time.Time, _ string, _ uint16) error {
	return nil
}
func (n *nopSink) UpsertMod(_ context.Context, _ protocol.Mod, _ string, _ uint16, _ string) error {
	return nil
}
func (n *nopSink) UpsertFavicon(_ context.Context, _ string, _ []byte) error { return nil }
func (n *nopSink) RecordDeadLetter(_ context.Context, _ protocol.ScanResult, _, _ string) error {
	return nil
}
func (n *nopSink) Close() error { return nil }

func TestOrchestratorRunDrainsSourceAndShutsDown(t *testing.T) {
	src := &fixedSource{targets: []target.Target{
		{IP: "10.0.0.1", Port: 25565},
		{IP: "10.0.0.2", Port: 25565},
	}}
	sink := &nopSink{}

	cfg := DefaultConfig()
	cfg.Pool.Size = 2
	cfg.Pool.EngineConfig.Timeout = 200 * time.Millisecond
	cfg.GracePeriod = 2 * time.Second
	cfg.DiscoveryBatchSize = 4

	o := New(cfg, src, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.Run(ctx)
	require.NoError(t, err)

	snap := o.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.Attempted)
	assert.True(t, src.closed)
}

func TestOrchestratorSubscribeReceivesEvents(t *testing.T) {
	src := &fixedSource{}
	cfg := DefaultConfig()
	cfg.RefreshRate = 50
	cfg.GracePeriod = time.Second
	o := New(cfg, src, nil)

	sub, unsubscribe := o.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	select {
	case <-sub:
	case <-time.After(2 * time.Second):
		t.Fatal("expected at least one progress event")
	}
	<-done
}
