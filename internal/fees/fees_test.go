package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openexchange-hq/quicktrade/internal/registry"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

func newTestCalculator() *Calculator {
	tiers := []model.Tier{
		{
			Level: 1,
			Name:  "basic",
			Fees: model.TierFees{
				Maker: map[string]float64{"btc-usdt": 0.2, "eth-usdt": 0.25},
				Taker: map[string]float64{"btc-usdt": 0.3, "eth-usdt": 0.35},
			},
		},
		{
			Level: 3,
			Name:  "vip",
			Fees: model.TierFees{
				Maker: map[string]float64{"btc-usdt": 0.05},
				Taker: map[string]float64{"btc-usdt": 0.1},
			},
		},
	}
	reg := registry.NewStatic(nil, tiers, nil, model.FeeStructure{Maker: 0.05, Taker: 0.1})
	return NewCalculator(reg)
}

func TestOrderFeeData_NoDiscount(t *testing.T) {
	c := newTestCalculator()

	fees, err := c.OrderFeeData(1, "btc-usdt", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.2, fees.Maker)
	assert.Equal(t, 0.3, fees.Taker)
}

func TestOrderFeeData_TierNotFound(t *testing.T) {
	c := newTestCalculator()

	_, err := c.OrderFeeData(9, "btc-usdt", 0)
	assert.ErrorIs(t, err, ErrTierNotFound)
}

func TestOrderFeeData_DiscountApplied(t *testing.T) {
	c := newTestCalculator()

	// 50% off 0.2/0.3, still above the 0.05/0.1 floor.
	fees, err := c.OrderFeeData(1, "btc-usdt", 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, fees.Maker, 1e-12)
	assert.InDelta(t, 0.15, fees.Taker, 1e-12)
}

func TestOrderFeeData_DiscountExact(t *testing.T) {
	c := newTestCalculator()

	// 0.25 * (1 - 0.1) must be exactly 0.225, not a float drift value.
	fees, err := c.OrderFeeData(1, "eth-usdt", 10)
	require.NoError(t, err)
	assert.Equal(t, 0.225, fees.Maker)
}

func TestOrderFeeData_ClampedToExchangeMinimum(t *testing.T) {
	c := newTestCalculator()

	// Any discount on the vip tier would push fees below the floor.
	fees, err := c.OrderFeeData(3, "btc-usdt", 90)
	require.NoError(t, err)
	assert.Equal(t, 0.05, fees.Maker)
	assert.Equal(t, 0.1, fees.Taker)
}

func TestOrderFeeData_MonotoneInDiscount(t *testing.T) {
	c := newTestCalculator()

	prevMaker, prevTaker := 1.0, 1.0
	for d := 0.0; d <= 100; d += 5 {
		fees, err := c.OrderFeeData(1, "btc-usdt", d)
		require.NoError(t, err)
		assert.LessOrEqual(t, fees.Maker, prevMaker, "maker fee must not increase with discount %v", d)
		assert.LessOrEqual(t, fees.Taker, prevTaker, "taker fee must not increase with discount %v", d)
		assert.GreaterOrEqual(t, fees.Maker, 0.05)
		assert.GreaterOrEqual(t, fees.Taker, 0.1)
		prevMaker, prevTaker = fees.Maker, fees.Taker
	}
}

func TestOrderFeeData_DiscountOutOfRange(t *testing.T) {
	c := newTestCalculator()

	_, err := c.OrderFeeData(1, "btc-usdt", -1)
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = c.OrderFeeData(1, "btc-usdt", 101)
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}
