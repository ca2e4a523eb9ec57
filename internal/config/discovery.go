package config

import (
	"context"
	"fmt"

	"github.com/pingcrafty/mcscan/internal/target"
)

const defaultMinecraftPort = 25565

// BuildSource constructs the target.Source named by cfg.Method, shared by
// the API's ad-hoc scan handler, the CLI's one-shot scan command, and the
// scheduler's recurring file-based jobs. adv carries the range source's
// ordering/skip-range knobs, which live in the config's Advanced section
// rather than on DiscoveryConfig itself.
func (cfg DiscoveryConfig) BuildSource(ctx context.Context, adv AdvancedConfig) (target.Source, error) {
	ports := make([]uint16, len(cfg.Ports))
	for i, p := range cfg.Ports {
		ports[i] = uint16(p)
	}

	switch cfg.Method {
	case "range":
		return target.NewRangeSource(target.RangeConfig{
			CIDR:               cfg.CIDR,
			Ports:              ports,
			BatchSize:          cfg.BatchSize,
			RandomizeOrder:     adv.RandomizeScanOrder,
			SkipPrivateRanges:  adv.SkipPrivateRanges,
			SkipReservedRanges: adv.SkipReservedRanges,
		})
	case "file":
		defaultPort := uint16(defaultMinecraftPort)
		if len(ports) > 0 {
			defaultPort = ports[0]
		}
		return target.NewFileSource(cfg.Path, defaultPort)
	case "external":
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("discovery method external requires a command")
		}
		return target.NewExternalSource(ctx, cfg.Command[0], cfg.Command[1:]...)
	default:
		return nil, fmt.Errorf("unknown discovery method: %s", cfg.Method)
	}
}
