// Package target implements the lazy Target sources the scan orchestrator
// pulls from: address ranges, target list files, and external discovery
// tool output. Sources never materialize their full universe eagerly.
package target

import "context"

// Target is one (ip, port) pair to probe.
type Target struct {
	IP   string
	Port uint16
}

// Source is a lazy, possibly-infinite producer of Targets.
type Source interface {
	// Next returns the next Target, or ok=false when the source is
	// exhausted. It blocks until a target is available, ctx is cancelled,
	// or the source is exhausted.
	Next(ctx context.Context) (t Target, ok bool, err error)
	// Close releases any resources (open files, child processes) held by
	// the source.
	Close() error
}
