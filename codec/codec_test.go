package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		leg  Leg
	}{
		{"entry", LegEntry},
		{"stop", LegStop},
		{"target", LegTarget},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tag := Tag("abc123", c.leg)
			decoded, ok := Decode(tag)
			assert.True(t, ok)
			assert.Equal(t, "abc123", decoded.IntentID)
			assert.Equal(t, c.leg, decoded.Leg)
		})
	}
}

func TestTagEntryHasNoSuffix(t *testing.T) {
	assert.Equal(t, "QTSW2:abc123", Tag("abc123", LegEntry))
	assert.Equal(t, "QTSW2:abc123:STOP", Tag("abc123", LegStop))
	assert.Equal(t, "QTSW2:abc123:TARGET", Tag("abc123", LegTarget))
}

func TestDecodeRejectsForeignTags(t *testing.T) {
	_, ok := Decode("BINANCE:someoneelse")
	assert.False(t, ok)

	_, ok = Decode("")
	assert.False(t, ok)
}

func TestDecodeRejectsEmptyIntentID(t *testing.T) {
	_, ok := Decode("QTSW2:")
	assert.False(t, ok)

	_, ok = Decode("QTSW2::STOP")
	assert.False(t, ok)
}

func TestDecodeRejectsUnknownLegSuffix(t *testing.T) {
	_, ok := Decode("QTSW2:abc123:BOGUS")
	assert.False(t, ok)
}
