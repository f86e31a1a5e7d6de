package adapter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"qtsw2exec/codec"
	"qtsw2exec/intent"
)

func TestNullAdapterSubmitEntryFiresSyntheticFill(t *testing.T) {
	n := NewNullAdapter()

	var gotUpdate bool
	var gotFillQty int
	n.SetCallbacks(
		func(tag string, state OrderState, err error) { gotUpdate = state == OrderStateAccepted },
		func(tag string, fillPrice decimal.Decimal, deltaQty int, utc time.Time) { gotFillQty = deltaQty },
	)

	price := decimal.NewFromInt(4500)
	result := n.SubmitEntry("i1", "ESUSDT", intent.DirectionLong, &price, 2, OrderKindLimit, time.Now().UTC())

	assert.True(t, result.Success)
	assert.True(t, gotUpdate)
	assert.Equal(t, 2, gotFillQty)
}

func TestNullAdapterOrderIDsAreUnique(t *testing.T) {
	n := NewNullAdapter()
	n.SetCallbacks(func(string, OrderState, error) {}, func(string, decimal.Decimal, int, time.Time) {})

	price := decimal.NewFromInt(1)
	r1 := n.SubmitEntry("i1", "ESUSDT", intent.DirectionLong, &price, 1, OrderKindMarket, time.Now().UTC())
	r2 := n.SubmitEntry("i2", "ESUSDT", intent.DirectionLong, &price, 1, OrderKindMarket, time.Now().UTC())

	assert.NotEqual(t, r1.BrokerOrderID, r2.BrokerOrderID)
}

func TestNullAdapterProtectiveStopTagsCorrectly(t *testing.T) {
	n := NewNullAdapter()
	var seenTag string
	n.SetCallbacks(func(tag string, state OrderState, err error) { seenTag = tag }, nil)

	n.SubmitProtectiveStop("i1", "ESUSDT", intent.DirectionLong, decimal.NewFromInt(4490), 1, "oco-1", time.Now().UTC())
	assert.Equal(t, codec.Tag("i1", codec.LegStop), seenTag)
}
