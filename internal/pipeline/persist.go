package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pingcrafty/mcscan/internal/db"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/protocol"
)

// persistStripes bounds the keyed-mutex table to a fixed set of lock
// stripes rather than one entry per distinct (ip,port) ever seen, which
// would grow without bound over a long-running scan.
const persistStripes = 256

// PersistHook writes a ScanResult (server, status snapshot, players, mods,
// favicon) through a db.Sink as a sequence of separate sink calls. The
// writes for one result are not wrapped in a single transaction: a failure
// part-way leaves the earlier writes in place, and the result is recorded
// as a dead letter. Processing of a
// single (ip,port) pair is serialized via a striped mutex so a server that
// briefly answers twice in the same batch can't race its own upserts;
// distinct targets in different stripes persist concurrently.
type PersistHook struct {
	sink    db.Sink
	stripes [persistStripes]sync.Mutex
}

// NewPersistHook wraps an already-initialized db.Sink.
func NewPersistHook(sink db.Sink) *PersistHook {
	return &PersistHook{sink: sink}
}

func (p *PersistHook) Name() string { return "persist" }

func (p *PersistHook) Initialize(ctx context.Context) error {
	return p.sink.Init(ctx)
}

func (p *PersistHook) Finalize() error {
	return p.sink.Close()
}

func (p *PersistHook) Process(ctx context.Context, result *protocol.ScanResult) (ProcessResult, error) {
	stripe := &p.stripes[stripeIndex(result.IP, result.Port)]
	stripe.Lock()
	defer stripe.Unlock()

	if err := p.persist(ctx, result); err != nil {
		if dlErr := p.sink.RecordDeadLetter(ctx, *result, p.Name(), err.Error()); dlErr != nil {
			logging.Error("failed to write dead letter after persist failure",
				"ip", result.IP, "port", result.Port, "persist_error", err, "dead_letter_error", dlErr)
		}
		return Continue, err
	}
	return Continue, nil
}

func (p *PersistHook) persist(ctx context.Context, result *protocol.ScanResult) error {
	if err := p.sink.UpsertServer(ctx, *result); err != nil {
		return fmt.Errorf("upsert server: %w", err)
	}
	if err := p.sink.RecordStatus(ctx, *result); err != nil {
		return fmt.Errorf("record status: %w", err)
	}

	now := time.Now().UTC()
	for _, sample := range result.PlayerSample {
		player := protocol.Player{UUID: sample.UUID, Name: sample.Name}
		if err := p.sink.UpsertPlayer(ctx, player, now, result.IP, result.Port); err != nil {
			return fmt.Errorf("upsert player %s: %w", sample.Name, err)
		}
	}

	for _, mod := range result.Mods {
		record := protocol.Mod{ModID: mod.ModID, CanonicalName: mod.ModID}
		if err := p.sink.UpsertMod(ctx, record, result.IP, result.Port, mod.Version); err != nil {
			return fmt.Errorf("upsert mod %s: %w", mod.ModID, err)
		}
	}

	if result.FaviconHash != "" && len(result.FaviconBytes) > 0 {
		if err := p.sink.UpsertFavicon(ctx, result.FaviconHash, result.FaviconBytes); err != nil {
			return fmt.Errorf("upsert favicon: %w", err)
		}
	}

	return nil
}

func stripeIndex(ip string, port uint16) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ip))
	_, _ = h.Write([]byte{byte(port >> 8), byte(port)})
	return h.Sum32() % persistStripes
}
