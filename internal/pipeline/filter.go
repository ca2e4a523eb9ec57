package pipeline

import (
	"context"
	"net"

	"github.com/pingcrafty/mcscan/internal/blacklist"
	"github.com/pingcrafty/mcscan/internal/protocol"
)

// FilterHook re-checks the blacklist against a result's address. It exists
// because a target can be dequeued and probed before a concurrent blacklist
// reload takes effect; this catches that race before the result reaches
// persistence. No other field is checked: a result with an empty version
// string passes through.
type FilterHook struct {
	blacklist *blacklist.Blacklist
}

// NewFilterHook builds a FilterHook. bl may be nil if blacklisting is
// disabled entirely.
func NewFilterHook(bl *blacklist.Blacklist) *FilterHook {
	return &FilterHook{blacklist: bl}
}

func (f *FilterHook) Name() string { return "filter" }

func (f *FilterHook) Initialize(_ context.Context) error { return nil }

func (f *FilterHook) Finalize() error { return nil }

func (f *FilterHook) Process(_ context.Context, result *protocol.ScanResult) (ProcessResult, error) {
	if f.blacklist == nil {
		return Continue, nil
	}
	ip := net.ParseIP(result.IP)
	if ip == nil {
		return Continue, nil
	}
	hit, err := f.blacklist.Contains(ip)
	if err != nil {
		return Continue, err
	}
	if hit {
		return Drop, nil
	}
	return Continue, nil
}
