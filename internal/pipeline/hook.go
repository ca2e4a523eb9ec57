// Package pipeline runs each completed probe through the mandatory ordered
// hook chain: filter, enrich, persist, notify. Hooks share a lifecycle
// (initialize/process/finalize); only persist and notify carry cross-result
// state, guarded the way the spec requires (persist serializes per target,
// notify is reentrant).
package pipeline

import (
	"context"

	"github.com/pingcrafty/mcscan/internal/protocol"
)

// ProcessResult is a hook's verdict on one ScanResult.
type ProcessResult int

const (
	// Continue passes the result to the next hook.
	Continue ProcessResult = iota
	// Drop stops further processing of this result; no later hook runs.
	Drop
)

// Hook is one stage of the module pipeline.
type Hook interface {
	Name() string
	Initialize(ctx context.Context) error
	Process(ctx context.Context, result *protocol.ScanResult) (ProcessResult, error)
	Finalize() error
}
