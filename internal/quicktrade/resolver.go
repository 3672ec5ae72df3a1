package quicktrade

import (
	"strings"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// ResolvePair maps two arbitrary currencies onto a configured quick trade
// market. The original orientation ("spending-receiving") is tried first; a
// match means the caller sells the base asset. Otherwise the flipped
// orientation is tried, meaning the caller buys it. One configured market
// therefore serves requests in both directions.
func (s *Service) ResolvePair(spendingCurrency, receivingCurrency string) (string, model.TradeSide, model.QuickTradeConfig, error) {
	spendingCurrency = strings.ToLower(spendingCurrency)
	receivingCurrency = strings.ToLower(receivingCurrency)

	original := spendingCurrency + "-" + receivingCurrency
	if cfg, ok := s.reg.QuickTradeConfig(original); ok {
		return original, model.SideSell, cfg, nil
	}

	flipped := receivingCurrency + "-" + spendingCurrency
	if cfg, ok := s.reg.QuickTradeConfig(flipped); ok {
		return flipped, model.SideBuy, cfg, nil
	}

	return "", "", model.QuickTradeConfig{}, ErrConfigNotFound
}
