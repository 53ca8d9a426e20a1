package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// OrderResponse is the subset of the order ack shared by spot and futures.
type OrderResponse struct {
	Symbol        string          `json:"symbol"`
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Status        string          `json:"status"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	TransactTime  int64           `json:"transactTime"` // spot
	UpdateTime    int64           `json:"updateTime"`   // futures
}

// DecodeOrder turns an order ack body into a common.OrderResult.
func DecodeOrder(body []byte) (common.OrderResult, error) {
	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	updated := resp.UpdateTime
	if updated == 0 {
		updated = resp.TransactTime
	}
	return common.OrderResult{
		ExchangeOrderID: fmt.Sprintf("%d", resp.OrderID),
		ClientID:        resp.ClientOrderID,
		Status:          MapStatus(resp.Status),
		ExecutedQty:     resp.ExecutedQty,
		UpdateTime:      updated,
	}, nil
}

// MapStatus normalizes a Binance order status.
func MapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}

// FormatDecimal renders a value the way Binance accepts it: plain notation,
// no exponent.
func FormatDecimal(v decimal.Decimal) string {
	return v.String()
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string      `json:"symbol"`
		Status     string      `json:"status"`
		BaseAsset  string      `json:"baseAsset"`
		QuoteAsset string      `json:"quoteAsset"`
		Filters    []rawFilter `json:"filters"`
	} `json:"symbols"`
}

type rawFilter struct {
	FilterType       string          `json:"filterType"`
	MinPrice         decimal.Decimal `json:"minPrice"`
	MaxPrice         decimal.Decimal `json:"maxPrice"`
	TickSize         decimal.Decimal `json:"tickSize"`
	MinQty           decimal.Decimal `json:"minQty"`
	MaxQty           decimal.Decimal `json:"maxQty"`
	StepSize         decimal.Decimal `json:"stepSize"`
	MinNotional      decimal.Decimal `json:"minNotional"`
	Notional         decimal.Decimal `json:"notional"` // futures MIN_NOTIONAL
	ApplyToMarket    *bool           `json:"applyToMarket"`
	ApplyMinToMarket *bool           `json:"applyMinToMarket"` // spot NOTIONAL
	AvgPriceMins     int             `json:"avgPriceMins"`
}

// ParseExchangeInfo converts an exchangeInfo body into filter sets. Filter
// types the gateway does not enforce are dropped; the rest keep the order
// the exchange published them in.
func ParseExchangeInfo(body []byte) ([]filters.SymbolFilter, error) {
	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}
	out := make([]filters.SymbolFilter, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		sf := filters.SymbolFilter{Symbol: s.Symbol, BaseAsset: s.BaseAsset, QuoteAsset: s.QuoteAsset}
		for _, f := range s.Filters {
			if converted, ok := f.convert(); ok {
				sf.Filters = append(sf.Filters, converted)
			}
		}
		out = append(out, sf)
	}
	return out, nil
}

func (f rawFilter) convert() (filters.Filter, bool) {
	switch f.FilterType {
	case filters.TypePrice:
		return filters.PriceFilter{MinPrice: f.MinPrice, MaxPrice: f.MaxPrice, TickSize: f.TickSize}, true
	case filters.TypeLotSize:
		return filters.LotSizeFilter{MinQty: f.MinQty, MaxQty: f.MaxQty, StepSize: f.StepSize}, true
	case filters.TypeMarketLotSize:
		return filters.MarketLotSizeFilter{MinQty: f.MinQty, MaxQty: f.MaxQty, StepSize: f.StepSize}, true
	case filters.TypeMinNotional, "NOTIONAL":
		min := f.MinNotional
		if min.IsZero() {
			min = f.Notional
		}
		// Futures omit the flag and apply the minimum to every order.
		apply := true
		if f.ApplyToMarket != nil {
			apply = *f.ApplyToMarket
		} else if f.ApplyMinToMarket != nil {
			apply = *f.ApplyMinToMarket
		}
		return filters.MinNotionalFilter{MinNotional: min, ApplyToMarket: apply, AvgPriceMins: f.AvgPriceMins}, true
	}
	return nil, false
}
