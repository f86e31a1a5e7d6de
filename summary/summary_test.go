package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersIncrementIndependently(t *testing.T) {
	s := New()

	s.IncIntentsSeen()
	s.IncIntentsSeen()
	s.IncDuplicatesSkipped()
	s.IncSubmitted()
	s.IncRejected()
	s.IncBlocked()
	s.IncFilled()
	s.IncFilled()

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.IntentsSeen)
	assert.Equal(t, int64(1), snap.DuplicatesSkipped)
	assert.Equal(t, int64(1), snap.Submitted)
	assert.Equal(t, int64(1), snap.Rejected)
	assert.Equal(t, int64(1), snap.Blocked)
	assert.Equal(t, int64(2), snap.Filled)
}

func TestRegistryExposesCounters(t *testing.T) {
	s := New()
	s.IncSubmitted()

	metrics, err := s.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, metrics)
}
