package bracket

import (
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

// Validate checks a request on its unrounded values before anything is
// rounded or sent.
func Validate(r Request) error {
	if r.Side != exchange.SideBuy && r.Side != exchange.SideSell {
		return invalid("invalid side: %s", r.Side)
	}
	if r.Symbol == "" {
		return invalid("symbol is required")
	}
	if r.Venue != exchange.MarketSpot && r.Venue != exchange.MarketUSDTFut {
		return invalid("unsupported venue: %s", r.Venue)
	}
	typ := r.EntryType()
	if typ != exchange.OrderTypeMarket && typ != exchange.OrderTypeLimit {
		return invalid("invalid order type: %s", typ)
	}
	if typ == exchange.OrderTypeLimit && !r.EntryPrice.IsPositive() {
		return invalid("entry price is required for limit orders")
	}
	if r.EntryPrice.IsNegative() {
		return invalid("entry price must be positive")
	}
	if !r.Quantity.IsPositive() {
		return invalid("quantity must be positive")
	}
	if len(r.TakeProfits) == 0 {
		return invalid("at least one take profit price is required")
	}
	for _, tp := range r.TakeProfits {
		if !tp.IsPositive() {
			return invalid("take profit price must be positive")
		}
	}
	if !r.StopLoss.IsPositive() {
		return invalid("stop loss price is required")
	}
	return validateOrdering(r)
}

func validateOrdering(r Request) error {
	buy := r.Side == exchange.SideBuy
	if r.EntryPrice.IsPositive() {
		entry := r.EntryPrice
		if buy && !r.StopLoss.LessThan(entry) {
			return invalid("stop loss must be below entry for buy orders")
		}
		if !buy && !r.StopLoss.GreaterThan(entry) {
			return invalid("stop loss must be above entry for sell orders")
		}
		for _, tp := range r.TakeProfits {
			if buy && !tp.GreaterThan(entry) {
				return invalid("take profit must be above entry for buy orders")
			}
			if !buy && !tp.LessThan(entry) {
				return invalid("take profit must be below entry for sell orders")
			}
		}
		return nil
	}
	// Market entry: only the exits can be checked against each other.
	for _, tp := range r.TakeProfits {
		if buy && !r.StopLoss.LessThan(tp) {
			return invalid("stop loss must be below take profit for buy orders")
		}
		if !buy && !r.StopLoss.GreaterThan(tp) {
			return invalid("stop loss must be above take profit for sell orders")
		}
	}
	return nil
}
