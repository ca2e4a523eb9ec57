package orchestrator

import (
	"sync"
	"time"

	"github.com/pingcrafty/mcscan/internal/protocol"
)

// ProgressEvent is one snapshot of scan progress, published to every
// subscriber (CLI table, API websocket) at refresh_rate.
type ProgressEvent struct {
	Attempted   int64                `json:"attempted"`
	Succeeded   int64                `json:"succeeded"`
	Failed      int64                `json:"failed"`
	RateEPS     float64              `json:"rate_eps"`
	ETASeconds  float64              `json:"eta_seconds"`
	LastSuccess *protocol.ScanResult `json:"last_success,omitempty"`
	At          time.Time            `json:"at"`
}

// broadcaster fans a single produced event out to any number of
// subscribers without blocking the publisher on a slow reader: each
// subscriber gets its own small buffered channel, and a full channel just
// drops the event rather than stalling the scan.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan ProgressEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan ProgressEvent]struct{})}
}

// Subscribe returns a channel of future events and an unsubscribe func.
func (b *broadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}
}

func (b *broadcaster) publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
