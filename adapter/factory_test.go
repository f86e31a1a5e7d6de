package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryDryRunReturnsNullAdapter(t *testing.T) {
	ad, err := New(context.Background(), FactoryConfig{Mode: ModeDryRun})
	require.NoError(t, err)
	_, ok := ad.(*NullAdapter)
	assert.True(t, ok)
}

func TestFactoryEmptyModeDefaultsToDryRun(t *testing.T) {
	ad, err := New(context.Background(), FactoryConfig{})
	require.NoError(t, err)
	_, ok := ad.(*NullAdapter)
	assert.True(t, ok)
}

func TestFactoryUnknownModeErrors(t *testing.T) {
	_, err := New(context.Background(), FactoryConfig{Mode: "BOGUS"})
	assert.Error(t, err)
}

func TestFactoryLiveWithoutValidTokenConstructsDisabledAdapter(t *testing.T) {
	ad, err := New(context.Background(), FactoryConfig{
		Mode:                ModeLive,
		LiveEnableToken:     "not-a-real-token",
		LivePlaintextSecret: "secret",
		LiveHashedSecret:    "$2a$bogus",
	})
	require.NoError(t, err, "an invalid enable token disables LIVE rather than failing construction")
	live, ok := ad.(*LiveAdapter)
	require.True(t, ok)
	assert.False(t, live.Enabled())
}
