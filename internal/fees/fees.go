package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openexchange-hq/quicktrade/internal/registry"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

var (
	// ErrTierNotFound indicates an unknown verification level.
	ErrTierNotFound = errors.New("fees: tier not found")
	// ErrInvalidDiscount indicates a discount percentage outside [0, 100].
	ErrInvalidDiscount = errors.New("fees: discount percentage out of range")
)

// Calculator computes maker/taker fee structures from tier schedules.
type Calculator struct {
	reg *registry.Registry
}

func NewCalculator(reg *registry.Registry) *Calculator {
	return &Calculator{reg: reg}
}

// OrderFeeData resolves the maker/taker fee for a tier and symbol, applying an
// optional discount percentage. Discounted fees are computed with decimal
// arithmetic and never fall below the exchange minimum for the role.
func (c *Calculator) OrderFeeData(tierLevel int, symbol string, discountPercent float64) (model.FeeStructure, error) {
	if discountPercent < 0 || discountPercent > 100 {
		return model.FeeStructure{}, ErrInvalidDiscount
	}

	tier, ok := c.reg.Tier(tierLevel)
	if !ok {
		return model.FeeStructure{}, ErrTierNotFound
	}

	makerFee := tier.Fees.Maker[symbol]
	takerFee := tier.Fees.Taker[symbol]

	if discountPercent > 0 {
		minFees := c.reg.MinFees()
		makerFee = discounted(makerFee, discountPercent, minFees.Maker)
		takerFee = discounted(takerFee, discountPercent, minFees.Taker)
	}

	return model.FeeStructure{Maker: makerFee, Taker: takerFee}, nil
}

// discounted applies fee * (1 - pct/100) in decimal space and clamps the
// result to the exchange-wide floor.
func discounted(fee, pct, floor float64) float64 {
	d := decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))
	reduced := decimal.NewFromFloat(fee).Mul(decimal.NewFromInt(1).Sub(d))

	if reduced.GreaterThan(decimal.NewFromFloat(floor)) {
		out, _ := reduced.Float64()
		return out
	}
	return floor
}
