package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThresholds(t *testing.T) {
	g := New(1000) // 1000 MB ceiling

	mb := func(n float64) uint64 { return uint64(n * 1024 * 1024) }

	assert.Equal(t, PressureNormal, g.classify(mb(500), false))
	assert.Equal(t, PressurePause, g.classify(mb(900), false))
	assert.Equal(t, PressureEvict, g.classify(mb(960), false))
	assert.Equal(t, PressureShutdown, g.classify(mb(1000), false))
}

func TestClassifyHysteresis(t *testing.T) {
	g := New(1000)
	mb := func(n float64) uint64 { return uint64(n * 1024 * 1024) }

	// Previously paused, still above the resume floor (0.70): stays paused.
	assert.Equal(t, PressurePause, g.classify(mb(750), true))
	// Previously paused, now below the resume floor: resumes to normal.
	assert.Equal(t, PressureNormal, g.classify(mb(600), true))
}

func TestClassifyZeroCeilingDisablesGovernor(t *testing.T) {
	g := New(0)
	assert.Equal(t, PressureNormal, g.classify(1<<30, false))
}
