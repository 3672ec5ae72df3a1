package orderbook

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// ErrNoBook indicates no depth snapshot exists for the requested symbol.
var ErrNoBook = errors.New("orderbook: no book for symbol")

// amountScale bounds derived amounts to 8 decimal places.
const amountScale = 8

// Level is one price level of a depth snapshot.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Book is a depth snapshot for a symbol. Bids are sorted descending by price,
// asks ascending.
type Book struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

// Essentials is the output of pricing a quick trade against the book:
// the overall estimated price and the derived source/target amounts.
type Essentials struct {
	EstimatedPrice float64
	SourceAmount   float64
	TargetAmount   float64
}

// Essentials prices a conversion against the snapshot. The source amount is
// what the caller spends, the target what they receive; exactly one of the two
// is supplied and the other is derived by walking the book. A sell consumes
// bids (base in, quote out), a buy consumes asks (quote in, base out).
// Insufficient depth yields a zero EstimatedPrice rather than an error.
func (b *Book) Essentials(side model.TradeSide, source, target *float64) Essentials {
	switch side {
	case model.SideSell:
		if source != nil {
			base, quote := walkByBase(b.Bids, *source)
			return essentials(base, quote, base, quote)
		}
		base, quote := walkByQuote(b.Bids, deref(target))
		return essentials(base, quote, base, quote)
	case model.SideBuy:
		if source != nil {
			base, quote := walkByQuote(b.Asks, *source)
			return essentials(base, quote, quote, base)
		}
		base, quote := walkByBase(b.Asks, deref(target))
		return essentials(base, quote, quote, base)
	}
	return Essentials{}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// walkByBase consumes levels until wanted base units are filled.
// Returns filled base and the quote exchanged; base < wanted means the book
// ran out of depth.
func walkByBase(levels []Level, wanted float64) (base, quote decimal.Decimal) {
	remaining := decimal.NewFromFloat(wanted)
	for _, lvl := range levels {
		if remaining.Sign() <= 0 {
			break
		}
		price := decimal.NewFromFloat(lvl.Price)
		if price.Sign() <= 0 {
			continue
		}
		size := decimal.NewFromFloat(lvl.Size)

		take := decimal.Min(remaining, size)
		base = base.Add(take)
		quote = quote.Add(take.Mul(price))
		remaining = remaining.Sub(take)
	}
	if remaining.Sign() > 0 {
		// not fully fillable
		return decimal.Zero, decimal.Zero
	}
	return base, quote
}

// walkByQuote consumes levels until wanted quote units are exchanged.
func walkByQuote(levels []Level, wanted float64) (base, quote decimal.Decimal) {
	remaining := decimal.NewFromFloat(wanted)
	for _, lvl := range levels {
		if remaining.Sign() <= 0 {
			break
		}
		price := decimal.NewFromFloat(lvl.Price)
		if price.Sign() <= 0 {
			// a malformed feed level would otherwise divide by zero below
			continue
		}
		size := decimal.NewFromFloat(lvl.Size)
		levelQuote := size.Mul(price)

		take := decimal.Min(remaining, levelQuote)
		base = base.Add(take.Div(price))
		quote = quote.Add(take)
		remaining = remaining.Sub(take)
	}
	if remaining.Sign() > 0 {
		return decimal.Zero, decimal.Zero
	}
	return base, quote
}

// essentials assembles the result; a zero base leg means the book could not
// fill the request and everything collapses to zero.
func essentials(base, quote, source, target decimal.Decimal) Essentials {
	if base.Sign() <= 0 {
		return Essentials{}
	}
	price, _ := quote.Div(base).Round(amountScale).Float64()
	src, _ := source.Round(amountScale).Float64()
	tgt, _ := target.Round(amountScale).Float64()
	return Essentials{
		EstimatedPrice: price,
		SourceAmount:   src,
		TargetAmount:   tgt,
	}
}
