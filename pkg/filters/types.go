// Package filters models exchange trading rules (tick size, lot size,
// notional) per symbol and validates or rounds orders against them.
package filters

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Filter type tags as published by the exchange.
const (
	TypePrice         = "PRICE_FILTER"
	TypeLotSize       = "LOT_SIZE"
	TypeMarketLotSize = "MARKET_LOT_SIZE"
	TypeMinNotional   = "MIN_NOTIONAL"
)

// Order types understood by the filters. Anything not priced is executed at
// market once triggered.
const (
	OrderMarket          = "MARKET"
	OrderLimit           = "LIMIT"
	OrderStopMarket      = "STOP_MARKET"
	OrderStopLossLimit   = "STOP_LOSS_LIMIT"
	OrderTakeProfitLimit = "TAKE_PROFIT_LIMIT"
)

// Filter is one exchange-imposed constraint on orders for a symbol.
type Filter interface {
	Validate(order Order) error
	Type() string
}

// SymbolFilter holds every filter registered for one symbol, in the order the
// exchange published them.
type SymbolFilter struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Filters    []Filter
}

// Order is the leg-local view the filters validate.
type Order struct {
	Symbol   string
	Side     string // BUY or SELL
	Type     string
	Price    decimal.Decimal // zero for MARKET
	Quantity decimal.Decimal
	// RefPrice is an optional reference price used for notional checks on
	// market orders (e.g. the stop price of a STOP_MARKET leg).
	RefPrice decimal.Decimal
}

// IsMarket reports whether the order executes without a limit price.
func (o Order) IsMarket() bool {
	return o.Type == OrderMarket || o.Type == OrderStopMarket
}

// PriceFilter validates price constraints.
type PriceFilter struct {
	MinPrice decimal.Decimal `json:"minPrice"`
	MaxPrice decimal.Decimal `json:"maxPrice"`
	TickSize decimal.Decimal `json:"tickSize"`
}

func (f PriceFilter) Type() string { return TypePrice }

// Validate skips market orders; otherwise the price must sit inside
// [MinPrice, MaxPrice] and be an exact multiple of TickSize. Zero bounds are
// disabled.
func (f PriceFilter) Validate(o Order) error {
	if o.IsMarket() {
		return nil
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("price %s must be positive", o.Price)
	}
	if f.MinPrice.IsPositive() && o.Price.LessThan(f.MinPrice) {
		return fmt.Errorf("price %s below minimum %s", o.Price, f.MinPrice)
	}
	if f.MaxPrice.IsPositive() && o.Price.GreaterThan(f.MaxPrice) {
		return fmt.Errorf("price %s above maximum %s", o.Price, f.MaxPrice)
	}
	if f.TickSize.IsPositive() && !o.Price.Mod(f.TickSize).IsZero() {
		return fmt.Errorf("price %s is not a multiple of tick size %s", o.Price, f.TickSize)
	}
	return nil
}

// LotSizeFilter validates quantity constraints.
type LotSizeFilter struct {
	MinQty   decimal.Decimal `json:"minQty"`
	MaxQty   decimal.Decimal `json:"maxQty"`
	StepSize decimal.Decimal `json:"stepSize"`
}

func (f LotSizeFilter) Type() string { return TypeLotSize }

func (f LotSizeFilter) Validate(o Order) error {
	return checkQuantity(o.Quantity, f.MinQty, f.MaxQty, f.StepSize)
}

// MarketLotSizeFilter applies lot rules to market orders only.
type MarketLotSizeFilter struct {
	MinQty   decimal.Decimal `json:"minQty"`
	MaxQty   decimal.Decimal `json:"maxQty"`
	StepSize decimal.Decimal `json:"stepSize"`
}

func (f MarketLotSizeFilter) Type() string { return TypeMarketLotSize }

func (f MarketLotSizeFilter) Validate(o Order) error {
	if !o.IsMarket() {
		return nil
	}
	return checkQuantity(o.Quantity, f.MinQty, f.MaxQty, f.StepSize)
}

// MinNotionalFilter validates minimum order value.
type MinNotionalFilter struct {
	MinNotional   decimal.Decimal `json:"minNotional"`
	ApplyToMarket bool            `json:"applyToMarket"`
	AvgPriceMins  int             `json:"avgPriceMins"`
}

func (f MinNotionalFilter) Type() string { return TypeMinNotional }

// Validate checks price*quantity for priced orders. Market orders are only
// checked when ApplyToMarket is set and a reference price is known, since
// the average fill price is unknown before the trade.
func (f MinNotionalFilter) Validate(o Order) error {
	if !f.MinNotional.IsPositive() {
		return nil
	}
	price := o.Price
	if o.IsMarket() {
		if !f.ApplyToMarket || !o.RefPrice.IsPositive() {
			return nil
		}
		price = o.RefPrice
	}
	notional := price.Mul(o.Quantity)
	if notional.LessThan(f.MinNotional) {
		return fmt.Errorf("notional %s (price %s * qty %s) below minimum %s", notional, price, o.Quantity, f.MinNotional)
	}
	return nil
}

func checkQuantity(qty, min, max, step decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("quantity %s must be positive", qty)
	}
	if min.IsPositive() && qty.LessThan(min) {
		return fmt.Errorf("quantity %s below minimum %s", qty, min)
	}
	if max.IsPositive() && qty.GreaterThan(max) {
		return fmt.Errorf("quantity %s above maximum %s", qty, max)
	}
	if step.IsPositive() && !qty.Mod(step).IsZero() {
		return fmt.Errorf("quantity %s is not a multiple of step size %s", qty, step)
	}
	return nil
}
