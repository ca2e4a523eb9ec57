package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/metrics"
	"github.com/pingcrafty/mcscan/internal/protocol"
)

const defaultFlushInterval = 5 * time.Second

// Notifier delivers a batch of results somewhere outside the process. The
// webhook transport itself is an external collaborator; Notifier is the
// only surface the notify hook depends on.
type Notifier interface {
	Notify(ctx context.Context, batch []protocol.ScanResult) error
}

// NotifyHook batches results and flushes them to a Notifier on batch-full
// or on a fixed interval, whichever comes first. Process is reentrant:
// concurrent callers only contend briefly on the batch-append mutex, never
// on the delivery itself.
type NotifyHook struct {
	notifier  Notifier
	batchSize int
	interval  time.Duration

	mu    sync.Mutex
	batch []protocol.ScanResult

	flushCh chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewNotifyHook builds a NotifyHook. notifier may be nil, in which case
// the hook still batches (so Process never blocks the pipeline) but drops
// each flushed batch instead of delivering it.
func NewNotifyHook(notifier Notifier, batchSize int, interval time.Duration) *NotifyHook {
	if batchSize <= 0 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &NotifyHook{
		notifier:  notifier,
		batchSize: batchSize,
		interval:  interval,
		batch:     make([]protocol.ScanResult, 0, batchSize),
		flushCh:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (n *NotifyHook) Name() string { return "notify" }

func (n *NotifyHook) Initialize(_ context.Context) error {
	// The flush loop outlives any single call's context, so it runs
	// against its own background context rather than the one Initialize
	// was called with.
	go n.run(context.Background())
	return nil
}

func (n *NotifyHook) Finalize() error {
	close(n.stop)
	<-n.done
	return nil
}

func (n *NotifyHook) Process(_ context.Context, result *protocol.ScanResult) (ProcessResult, error) {
	n.mu.Lock()
	n.batch = append(n.batch, *result)
	full := len(n.batch) >= n.batchSize
	n.mu.Unlock()

	if full {
		select {
		case n.flushCh <- struct{}{}:
		default:
		}
	}
	return Continue, nil
}

// run owns the flush ticker and the stop signal; it is the only goroutine
// that ever reads n.batch for delivery, so takeBatch is the sole point of
// contention with Process.
func (n *NotifyHook) run(ctx context.Context) {
	defer close(n.done)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stop:
			n.flush(ctx)
			return
		case <-ticker.C:
			n.flush(ctx)
		case <-n.flushCh:
			n.flush(ctx)
		}
	}
}

func (n *NotifyHook) takeBatch() []protocol.ScanResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.batch) == 0 {
		return nil
	}
	taken := n.batch
	n.batch = make([]protocol.ScanResult, 0, n.batchSize)
	return taken
}

func (n *NotifyHook) flush(ctx context.Context) {
	batch := n.takeBatch()
	if len(batch) == 0 {
		return
	}
	if n.notifier == nil {
		return
	}
	if err := n.notifier.Notify(ctx, batch); err != nil {
		logging.Error("notify hook failed to deliver batch", "size", len(batch), "error", err)
		metrics.Counter("notify_flush_errors_total", nil)
		return
	}
	metrics.Counter("notify_flush_total", nil)
	metrics.Gauge("notify_last_batch_size", float64(len(batch)), nil)
}

// WebhookNotifier posts each batch as a JSON array to a configured URL.
type WebhookNotifier struct {
	URL          string
	IncludeStats bool
	StatsFunc    func() interface{}
	Client       *http.Client
}

// NewWebhookNotifier builds a WebhookNotifier with a bounded HTTP client.
func NewWebhookNotifier(url string, includeStats bool, statsFunc func() interface{}) *WebhookNotifier {
	return &WebhookNotifier{
		URL:          url,
		IncludeStats: includeStats,
		StatsFunc:    statsFunc,
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Results []protocol.ScanResult `json:"results"`
	Stats   interface{}           `json:"stats,omitempty"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, batch []protocol.ScanResult) error {
	payload := webhookPayload{Results: batch}
	if w.IncludeStats && w.StatsFunc != nil {
		payload.Stats = w.StatsFunc()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
