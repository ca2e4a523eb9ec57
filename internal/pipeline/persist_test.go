package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcrafty/mcscan/internal/protocol"
)

type fakeSink struct {
	mu          sync.Mutex
	servers     []protocol.ScanResult
	statuses    []protocol.ScanResult
	deadLetters []string
	failUpsert  bool
}

func (f *fakeSink) Init(_ context.Context) error { return nil }

func (f *fakeSink) UpsertServer(_ context.Context, result protocol.ScanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errors.New("upsert failed")
	}
	f.servers = append(f.servers, result)
	return nil
}

func (f *fakeSink) RecordStatus(_ context.Context, result protocol.ScanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, result)
	return nil
}

func (f *fakeSink) UpsertPlayer(_ context.Context, _ protocol.Player, _ time.Time, _ string, _ uint16) error {
	return nil
}

func (f *fakeSink) UpsertMod(_ context.Context, _ protocol.Mod, _ string, _ uint16, _ string) error {
	return nil
}

func (f *fakeSink) UpsertFavicon(_ context.Context, _ string, _ []byte) error { return nil }

func (f *fakeSink) RecordDeadLetter(_ context.Context, _ protocol.ScanResult, failedHook, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLetters = append(f.deadLetters, failedHook+": "+reason)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func TestPersistHookWritesServerAndStatus(t *testing.T) {
	sink := &fakeSink{}
	hook := NewPersistHook(sink)

	verdict, err := hook.Process(context.Background(), &protocol.ScanResult{IP: "1.2.3.4", Port: 25565})
	require.NoError(t, err)
	assert.Equal(t, Continue, verdict)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.servers, 1)
	assert.Len(t, sink.statuses, 1)
}

func TestPersistHookWritesDeadLetterOnFailure(t *testing.T) {
	sink := &fakeSink{failUpsert: true}
	hook := NewPersistHook(sink)

	_, err := hook.Process(context.Background(), &protocol.ScanResult{IP: "1.2.3.4", Port: 25565})
	require.Error(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.deadLetters, 1)
}

func TestPersistHookFinalizeClosesSink(t *testing.T) {
	sink := &fakeSink{}
	hook := NewPersistHook(sink)
	require.NoError(t, hook.Finalize())
}
