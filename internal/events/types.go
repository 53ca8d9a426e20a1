package events

import (
	"github.com/shopspring/decimal"
)

// Event enumerates topics on the in-process bus.
type Event string

const (
	EventOrderUpdate  Event = "order_update"
	EventFilterReload Event = "filter_reload"
)

// EventTypeOrderUpdate tags the versioned wire schema of OrderUpdate.
const EventTypeOrderUpdate = "order_update.v1"

// Sources of an order update.
const (
	SourceGateway  = "gateway"  // emitted while submitting a bracket
	SourceExchange = "exchange" // relayed from a user data stream
)

// OrderUpdate is the event published for every order state change.
type OrderUpdate struct {
	EventType      string          `json:"event_type"`
	BracketOrderID string          `json:"bracket_order_id,omitempty"`
	Role           string          `json:"role,omitempty"`
	Venue          string          `json:"venue"`
	Symbol         string          `json:"symbol"`
	OrderID        string          `json:"order_id,omitempty"`
	ClientOrderID  string          `json:"client_order_id"`
	Status         string          `json:"status"`
	Side           string          `json:"side"`
	OrderType      string          `json:"order_type"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	ExecutedQty    decimal.Decimal `json:"executed_qty"`
	UpdateTime     int64           `json:"update_time"`
	Reason         string          `json:"reason,omitempty"`
	Source         string          `json:"source"`
}

// FilterReload is published after each filter refresh attempt.
type FilterReload struct {
	Venue   string `json:"venue"`
	Symbols int    `json:"symbols"`
	Error   string `json:"error,omitempty"`
}
