package orderbook

import (
	"strings"
	"sync"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// MarketBooks holds the live depth snapshots and last traded prices for all
// subscribed symbols, fed by the websocket stream. It is the pricing engine
// behind pro-type quick trades.
type MarketBooks struct {
	mu         sync.RWMutex
	books      map[string]*Book
	lastPrices map[string]float64
}

func NewMarketBooks() *MarketBooks {
	return &MarketBooks{
		books:      make(map[string]*Book),
		lastPrices: make(map[string]float64),
	}
}

// UpdateBook replaces the depth snapshot for a symbol.
func (m *MarketBooks) UpdateBook(book *Book) {
	m.mu.Lock()
	m.books[strings.ToLower(book.Symbol)] = book
	m.mu.Unlock()
}

// SetLastPrice records the most recent public trade price for a symbol.
func (m *MarketBooks) SetLastPrice(symbol string, price float64) {
	m.mu.Lock()
	m.lastPrices[strings.ToLower(symbol)] = price
	m.mu.Unlock()
}

// Estimate prices a conversion for symbol against the current snapshot.
// Returns ErrNoBook when the symbol has no snapshot yet.
func (m *MarketBooks) Estimate(symbol string, side model.TradeSide, source, target *float64) (Essentials, error) {
	m.mu.RLock()
	book, ok := m.books[strings.ToLower(symbol)]
	m.mu.RUnlock()
	if !ok {
		return Essentials{}, ErrNoBook
	}
	return book.Essentials(side, source, target), nil
}

// LastPrice returns the most recent trade price for symbol, if known.
func (m *MarketBooks) LastPrice(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.lastPrices[strings.ToLower(symbol)]
	return p, ok && p > 0
}
