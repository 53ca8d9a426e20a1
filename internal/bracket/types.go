// Package bracket turns one bracket request (entry, take-profits, stop-loss)
// into filter-compliant leg submissions with stable client order ids, and
// reports every leg's outcome.
package bracket

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

// Role tags a leg within a bracket.
type Role string

const (
	RoleMain  Role = "MAIN"
	RoleSL    Role = "SL"
	RoleClose Role = "CLOSE" // flattening order issued by CloseAll
)

// TakeProfitRole returns the role of the i-th take-profit leg (1-based).
func TakeProfitRole(i int) Role { return Role(fmt.Sprintf("TP_%d", i)) }

// IsTakeProfit reports whether r is a TP_n role.
func (r Role) IsTakeProfit() bool { return strings.HasPrefix(string(r), "TP_") }

// LegState is the submission lifecycle of one leg.
type LegState string

const (
	LegPending   LegState = "PENDING"
	LegSubmitted LegState = "SUBMITTED"
	LegRejected  LegState = "REJECTED"
)

// ParseVenue accepts the venue names clients send.
func ParseVenue(s string) (exchange.MarketType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SPOT":
		return exchange.MarketSpot, true
	case "USD_M", "USDM", "USDT_FUTURES", "FUTURES":
		return exchange.MarketUSDTFut, true
	}
	return "", false
}

// Request is one inbound bracket order. A zero EntryPrice means a MARKET
// entry unless OrderType says LIMIT.
type Request struct {
	Symbol      string
	Side        exchange.Side
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	OrderType   exchange.OrderType // MARKET or LIMIT; empty infers from EntryPrice
	TakeProfits []decimal.Decimal
	StopLoss    decimal.Decimal
	Venue       exchange.MarketType
}

// EntryType resolves the entry order type.
func (r Request) EntryType() exchange.OrderType {
	if r.OrderType != "" {
		return r.OrderType
	}
	if r.EntryPrice.IsPositive() {
		return exchange.OrderTypeLimit
	}
	return exchange.OrderTypeMarket
}

// Leg is one order of a bracket. Prices and quantity are post-rounding.
type Leg struct {
	Role          Role                 `json:"role"`
	ClientOrderID string               `json:"client_order_id"`
	Side          exchange.Side        `json:"side"`
	Type          exchange.OrderType   `json:"type"`
	Price         decimal.Decimal      `json:"price"`
	StopPrice     decimal.Decimal      `json:"stop_price"`
	Quantity      decimal.Decimal      `json:"quantity"`
	ReduceOnly    bool                 `json:"reduce_only"`
	TimeInForce   exchange.TimeInForce `json:"time_in_force,omitempty"`
	WorkingType   string               `json:"working_type,omitempty"`

	State       LegState             `json:"state"`
	OrderID     string               `json:"order_id,omitempty"`
	Status      exchange.OrderStatus `json:"status,omitempty"`
	ExecutedQty decimal.Decimal      `json:"executed_qty"`
	UpdateTime  int64                `json:"update_time,omitempty"`
	Attempts    int                  `json:"attempts"`
	Err         error                `json:"-"`
	Reason      string               `json:"reason,omitempty"`
}

func (l *Leg) request(symbol string) exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:      symbol,
		Side:        l.Side,
		Type:        l.Type,
		Qty:         l.Quantity,
		Price:       l.Price,
		StopPrice:   l.StopPrice,
		TimeInForce: l.TimeInForce,
		ClientID:    l.ClientOrderID,
		ReduceOnly:  l.ReduceOnly,
		WorkingType: l.WorkingType,
	}
}

func (l *Leg) accept(res exchange.OrderResult) {
	l.State = LegSubmitted
	l.OrderID = res.ExchangeOrderID
	l.Status = res.Status
	l.ExecutedQty = res.ExecutedQty
	l.UpdateTime = res.UpdateTime
	l.Err = nil
	l.Reason = ""
}

func (l *Leg) reject(err error) {
	l.State = LegRejected
	l.Status = exchange.StatusRejected
	l.Err = err
	l.Reason = err.Error()
}

// Bracket is one bracket order and the outcome of each of its legs. It is
// built per request and mutated only while that request is being submitted.
type Bracket struct {
	ID        string    `json:"bracket_order_id"`
	Request   Request   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	// Timestamp is captured once and feeds every client order id, so ids
	// stay identical across retries.
	Timestamp int64  `json:"timestamp"`
	Legs      []*Leg `json:"legs"`
}

// Leg returns the leg with role r, or nil.
func (b *Bracket) Leg(r Role) *Leg {
	for _, l := range b.Legs {
		if l.Role == r {
			return l
		}
	}
	return nil
}

// Main returns the entry leg.
func (b *Bracket) Main() *Leg { return b.Leg(RoleMain) }

// StopLoss returns the stop-loss leg.
func (b *Bracket) StopLoss() *Leg { return b.Leg(RoleSL) }

// TakeProfits returns the take-profit legs in order.
func (b *Bracket) TakeProfits() []*Leg {
	var out []*Leg
	for _, l := range b.Legs {
		if l.Role.IsTakeProfit() {
			out = append(out, l)
		}
	}
	return out
}

// Exits returns every leg except the entry.
func (b *Bracket) Exits() []*Leg {
	out := make([]*Leg, 0, len(b.Legs))
	for _, l := range b.Legs {
		if l.Role != RoleMain {
			out = append(out, l)
		}
	}
	return out
}

// Failed lists the roles of rejected legs.
func (b *Bracket) Failed() []Role {
	var out []Role
	for _, l := range b.Legs {
		if l.State == LegRejected {
			out = append(out, l.Role)
		}
	}
	return out
}

// CloseResult describes the flattening order placed by CloseAll.
type CloseResult struct {
	Venue         exchange.MarketType
	Symbol        string
	Side          exchange.Side
	Quantity      decimal.Decimal
	OrderID       string
	ClientOrderID string
	Status        exchange.OrderStatus
}
