package target

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
)

// RangeConfig configures a RangeSource.
type RangeConfig struct {
	// CIDR is either CIDR notation ("10.0.0.0/24") or a dashed range
	// ("10.0.0.1-10.0.0.254").
	CIDR string
	// Ports is the port list to cross with every address.
	Ports []uint16
	// RandomizeOrder enables seeded batch-level Fisher-Yates shuffling
	// instead of deterministic iteration order.
	RandomizeOrder bool
	// BatchSize bounds how many targets are shuffled together; a full
	// shuffle over the whole universe is not required.
	BatchSize int
	// Seed drives the batch shuffle when RandomizeOrder is set.
	Seed int64
	// SkipPrivateRanges drops RFC 1918 / unique-local addresses.
	SkipPrivateRanges bool
	// SkipReservedRanges drops loopback, link-local, and other IANA
	// special-purpose ranges.
	SkipReservedRanges bool
}

// RangeSource lazily walks an address range crossed with a port list. It
// never materializes the full IP universe: addresses are generated one at a
// time by incrementing a working net.IP, matching how the underlying
// address space could be arbitrarily large (an entire /8).
type RangeSource struct {
	cfg      RangeConfig
	start    net.IP
	end      net.IP
	cur      net.IP
	portIdx  int
	rng      *rand.Rand
	batch    []Target
	batchPos int
	done     bool
}

// NewRangeSource parses cfg.CIDR and returns a ready-to-iterate source.
func NewRangeSource(cfg RangeConfig) (*RangeSource, error) {
	if len(cfg.Ports) == 0 {
		return nil, fmt.Errorf("range target source requires at least one port")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}

	start, end, err := parseRange(cfg.CIDR)
	if err != nil {
		return nil, err
	}

	return &RangeSource{
		cfg:   cfg,
		start: start,
		end:   end,
		cur:   cloneIP(start),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func parseRange(s string) (start, end net.IP, err error) {
	if strings.Contains(s, "/") {
		ip, ipnet, err := net.ParseCIDR(s)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		start := ip.Mask(ipnet.Mask)
		end := lastAddress(ipnet)
		return start, end, nil
	}
	if strings.Contains(s, "-") {
		parts := strings.SplitN(s, "-", 2)
		startIP := net.ParseIP(strings.TrimSpace(parts[0]))
		endIP := net.ParseIP(strings.TrimSpace(parts[1]))
		if startIP == nil || endIP == nil {
			return nil, nil, fmt.Errorf("invalid address range %q", s)
		}
		return startIP, endIP, nil
	}
	single := net.ParseIP(s)
	if single == nil {
		return nil, nil, fmt.Errorf("invalid address or CIDR %q", s)
	}
	return single, single, nil
}

func lastAddress(ipnet *net.IPNet) net.IP {
	ip := cloneIP(ipnet.IP.Mask(ipnet.Mask))
	for i := range ip {
		ip[i] |= ^ipnet.Mask[i]
	}
	return ip
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

// incIP increments ip in place, matching the byte-wise carry propagation
// used to walk a CIDR block one address at a time.
func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

func ipGreater(a, b net.IP) bool {
	return bytesCompare(a, b) > 0
}

func bytesCompare(a, b net.IP) int {
	a4, b4 := a.To4(), b.To4()
	if a4 != nil && b4 != nil {
		a, b = a4, b4
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Next returns the next Target, refilling and optionally shuffling a batch
// once the current one is exhausted.
func (s *RangeSource) Next(ctx context.Context) (Target, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Target{}, false, err
		}
		if s.batchPos < len(s.batch) {
			t := s.batch[s.batchPos]
			s.batchPos++
			return t, true, nil
		}
		if s.done {
			return Target{}, false, nil
		}
		s.fillBatch()
	}
}

func (s *RangeSource) fillBatch() {
	s.batch = s.batch[:0]
	s.batchPos = 0

	for len(s.batch) < s.cfg.BatchSize {
		if s.portIdx >= len(s.cfg.Ports) {
			s.portIdx = 0
			incIP(s.cur)
			if ipGreater(s.cur, s.end) {
				s.done = true
				break
			}
		}
		ip := s.cur
		if s.eligible(ip) {
			s.batch = append(s.batch, Target{IP: ip.String(), Port: s.cfg.Ports[s.portIdx]})
		}
		s.portIdx++
	}

	if s.cfg.RandomizeOrder {
		s.rng.Shuffle(len(s.batch), func(i, j int) {
			s.batch[i], s.batch[j] = s.batch[j], s.batch[i]
		})
	}
}

func (s *RangeSource) eligible(ip net.IP) bool {
	if s.cfg.SkipPrivateRanges && isPrivate(ip) {
		return false
	}
	if s.cfg.SkipReservedRanges && isReserved(ip) {
		return false
	}
	return true
}

func isPrivate(ip net.IP) bool {
	return ip.IsPrivate()
}

func isReserved(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast()
}

// Close is a no-op for RangeSource; it holds no external resources.
func (s *RangeSource) Close() error { return nil }
