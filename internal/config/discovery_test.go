package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSourceThreadsSkipPrivateRangesFromAdvancedConfig(t *testing.T) {
	discovery := DiscoveryConfig{Method: "range", CIDR: "10.0.0.0/30", Ports: []int{25565}}

	src, err := discovery.BuildSource(context.Background(), AdvancedConfig{SkipPrivateRanges: true})
	require.NoError(t, err)

	var seen int
	for {
		_, ok, err := src.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		seen++
	}
	assert.Zero(t, seen, "10.0.0.0/30 is entirely RFC1918 and should be skipped when SkipPrivateRanges is set")
}

func TestBuildSourceLeavesPrivateRangesWhenAdvancedConfigDisablesSkip(t *testing.T) {
	discovery := DiscoveryConfig{Method: "range", CIDR: "10.0.0.0/30", Ports: []int{25565}}

	src, err := discovery.BuildSource(context.Background(), AdvancedConfig{SkipPrivateRanges: false})
	require.NoError(t, err)

	var seen int
	for {
		_, ok, err := src.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		seen++
	}
	assert.Equal(t, 4, seen)
}
