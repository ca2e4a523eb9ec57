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

type fakeHook struct {
	name        string
	verdict     ProcessResult
	err         error
	initErr     error
	processed   int
	finalizeRan bool
	log         *[]string
}

func (f *fakeHook) Name() string                        { return f.name }
func (f *fakeHook) Initialize(_ context.Context) error   { return f.initErr }
func (f *fakeHook) Finalize() error                      { f.finalizeRan = true; f.record(); return nil }
func (f *fakeHook) Process(_ context.Context, _ *protocol.ScanResult) (ProcessResult, error) {
	f.processed++
	f.record()
	return f.verdict, f.err
}

// record appends the hook's name to the shared call log, when one is set.
func (f *fakeHook) record() {
	if f.log != nil {
		*f.log = append(*f.log, f.name)
	}
}

func TestPipelineRunsHooksInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) *fakeHook {
		return &fakeHook{name: name, verdict: Continue, log: &order}
	}
	a, b := record("a"), record("b")
	p := New([]Hook{a, b})

	mu.Lock()
	defer mu.Unlock()
	p.Process(context.Background(), &protocol.ScanResult{IP: "1.2.3.4"})

	assert.Equal(t, 1, a.processed)
	assert.Equal(t, 1, b.processed)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestPipelineDropStopsChain(t *testing.T) {
	a := &fakeHook{name: "a", verdict: Drop}
	b := &fakeHook{name: "b", verdict: Continue}
	p := New([]Hook{a, b})

	p.Process(context.Background(), &protocol.ScanResult{IP: "1.2.3.4"})

	assert.Equal(t, 1, a.processed)
	assert.Equal(t, 0, b.processed)
}

func TestPipelineErrorContinuesChain(t *testing.T) {
	a := &fakeHook{name: "a", verdict: Continue, err: errors.New("boom")}
	b := &fakeHook{name: "b", verdict: Continue}
	p := New([]Hook{a, b})

	p.Process(context.Background(), &protocol.ScanResult{IP: "1.2.3.4"})

	assert.Equal(t, 1, a.processed)
	assert.Equal(t, 1, b.processed)
}

func TestPipelineFinalizeRunsReverseOrder(t *testing.T) {
	var order []string
	a := &fakeHook{name: "a", verdict: Continue, log: &order}
	b := &fakeHook{name: "b", verdict: Continue, log: &order}
	p := New([]Hook{a, b})

	p.Finalize()

	assert.True(t, a.finalizeRan)
	assert.True(t, b.finalizeRan)
	assert.Equal(t, []string{"b", "a"}, order)
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]protocol.ScanResult
}

func (f *fakeNotifier) Notify(_ context.Context, batch []protocol.ScanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestNotifyHookFlushesOnBatchFull(t *testing.T) {
	notifier := &fakeNotifier{}
	hook := NewNotifyHook(notifier, 2, time.Hour)
	require.NoError(t, hook.Initialize(context.Background()))
	defer hook.Finalize()

	_, _ = hook.Process(context.Background(), &protocol.ScanResult{IP: "1.1.1.1"})
	_, _ = hook.Process(context.Background(), &protocol.ScanResult{IP: "2.2.2.2"})

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestNotifyHookFlushesOnFinalize(t *testing.T) {
	notifier := &fakeNotifier{}
	hook := NewNotifyHook(notifier, 100, time.Hour)
	require.NoError(t, hook.Initialize(context.Background()))

	_, _ = hook.Process(context.Background(), &protocol.ScanResult{IP: "1.1.1.1"})
	require.NoError(t, hook.Finalize())

	assert.Equal(t, 1, notifier.count())
}
