package pipeline

import (
	"context"

	"github.com/pingcrafty/mcscan/internal/geoip"
	"github.com/pingcrafty/mcscan/internal/protocol"
)

// EnrichHook attaches coarse geolocation to a result. provider is already
// TTL-cached by internal/geoip; a nil provider means geolocation is
// disabled and the hook becomes a no-op pass-through.
type EnrichHook struct {
	provider geoip.Provider
}

// NewEnrichHook builds an EnrichHook over provider, which may be nil.
func NewEnrichHook(provider geoip.Provider) *EnrichHook {
	return &EnrichHook{provider: provider}
}

func (e *EnrichHook) Name() string { return "enrich" }

func (e *EnrichHook) Initialize(_ context.Context) error { return nil }

func (e *EnrichHook) Finalize() error { return nil }

func (e *EnrichHook) Process(ctx context.Context, result *protocol.ScanResult) (ProcessResult, error) {
	if e.provider == nil {
		return Continue, nil
	}
	info, err := e.provider.Lookup(ctx, result.IP)
	if err != nil {
		// A failed lookup is not a reason to drop the result; the record
		// just persists without location data.
		return Continue, err
	}
	result.Country = info.Country
	result.City = info.City
	return Continue, nil
}
