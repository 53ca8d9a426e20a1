package stream

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/internal/bracket"
	"github.com/SubhajL/online-trading-sub002/internal/events"
	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/binance"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

// spotExecutionReport is the spot "executionReport" payload.
type spotExecutionReport struct {
	Symbol          string          `json:"s"`
	ClientOrderID   string          `json:"c"`
	OrigClientID    string          `json:"C"` // set on cancels
	Side            string          `json:"S"`
	OrderType       string          `json:"o"`
	Quantity        decimal.Decimal `json:"q"`
	Price           decimal.Decimal `json:"p"`
	StopPrice       decimal.Decimal `json:"P"`
	ExecutionType   string          `json:"x"`
	Status          string          `json:"X"`
	RejectReason    string          `json:"r"`
	OrderID         int64           `json:"i"`
	CumulativeQty   decimal.Decimal `json:"z"`
	TransactionTime int64           `json:"T"`

	// Keys that differ from the ones above only by case. encoding/json
	// matches case-insensitively, so they need a home of their own.
	TradeID       json.RawMessage `json:"t"`
	Ignore        json.RawMessage `json:"I"`
	CreationTime  json.RawMessage `json:"O"`
	CumQuote      json.RawMessage `json:"Z"`
	QuoteOrderQty json.RawMessage `json:"Q"`
}

// futuresOrderUpdate is the USDT-M "ORDER_TRADE_UPDATE" payload.
type futuresOrderUpdate struct {
	TransactionTime int64 `json:"T"`
	Order           struct {
		Symbol        string          `json:"s"`
		ClientOrderID string          `json:"c"`
		Side          string          `json:"S"`
		OrderType     string          `json:"o"`
		Quantity      decimal.Decimal `json:"q"`
		Price         decimal.Decimal `json:"p"`
		StopPrice     decimal.Decimal `json:"sp"`
		ExecutionType string          `json:"x"`
		Status        string          `json:"X"`
		OrderID       int64           `json:"i"`
		CumulativeQty decimal.Decimal `json:"z"`
		TradeTime     int64           `json:"T"`
		TradeID       json.RawMessage `json:"t"`
	} `json:"o"`
}

// Decode turns a user data stream message into an order update. ok is false
// for events that are not order updates (balances, positions, listen key
// expiry).
func Decode(venue exchange.MarketType, msg []byte) (u events.OrderUpdate, ok bool, err error) {
	// "e" is not always a string on every payload, so peek at it loosely.
	var head map[string]json.RawMessage
	if err := json.Unmarshal(msg, &head); err != nil {
		return u, false, fmt.Errorf("decode stream message: %w", err)
	}
	var eventType string
	if raw, found := head["e"]; !found || json.Unmarshal(raw, &eventType) != nil {
		return u, false, nil
	}

	switch eventType {
	case "executionReport":
		var r spotExecutionReport
		if err := json.Unmarshal(msg, &r); err != nil {
			return u, false, fmt.Errorf("decode executionReport: %w", err)
		}
		clientID := r.ClientOrderID
		if r.ExecutionType == "CANCELED" && r.OrigClientID != "" {
			clientID = r.OrigClientID
		}
		u = events.OrderUpdate{
			Symbol:        r.Symbol,
			OrderID:       strconv.FormatInt(r.OrderID, 10),
			ClientOrderID: clientID,
			Status:        string(binance.MapStatus(r.Status)),
			Side:          r.Side,
			OrderType:     r.OrderType,
			Price:         priceOrStop(r.Price, r.StopPrice),
			Quantity:      r.Quantity,
			ExecutedQty:   r.CumulativeQty,
			UpdateTime:    r.TransactionTime,
		}
		if r.RejectReason != "" && r.RejectReason != "NONE" {
			u.Reason = r.RejectReason
		}
	case "ORDER_TRADE_UPDATE":
		var r futuresOrderUpdate
		if err := json.Unmarshal(msg, &r); err != nil {
			return u, false, fmt.Errorf("decode ORDER_TRADE_UPDATE: %w", err)
		}
		o := r.Order
		updated := o.TradeTime
		if updated == 0 {
			updated = r.TransactionTime
		}
		u = events.OrderUpdate{
			Symbol:        o.Symbol,
			OrderID:       strconv.FormatInt(o.OrderID, 10),
			ClientOrderID: o.ClientOrderID,
			Status:        string(binance.MapStatus(o.Status)),
			Side:          o.Side,
			OrderType:     o.OrderType,
			Price:         priceOrStop(o.Price, o.StopPrice),
			Quantity:      o.Quantity,
			ExecutedQty:   o.CumulativeQty,
			UpdateTime:    updated,
		}
	default:
		return u, false, nil
	}

	u.Venue = string(venue)
	if _, role, _, err := bracket.ParseClientOrderID(u.ClientOrderID); err == nil {
		u.Role = string(role)
	}
	return events.Stamp(u, events.SourceExchange), true, nil
}

func priceOrStop(price, stop decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return stop
	}
	return price
}
