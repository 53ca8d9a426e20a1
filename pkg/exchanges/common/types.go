package common

import "github.com/shopspring/decimal"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes the order types the gateway submits.
type OrderType string

const (
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeStopMarket      OrderType = "STOP_MARKET"       // Futures only
	OrderTypeStopLossLimit   OrderType = "STOP_LOSS_LIMIT"   // Spot only
	OrderTypeTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT" // Spot only
)

// Priced reports whether the type carries a limit price.
func (t OrderType) Priced() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLossLimit || t == OrderTypeTakeProfitLimit
}

// Triggered reports whether the type carries a stop price.
func (t OrderType) Triggered() bool {
	return t == OrderTypeStopMarket || t == OrderTypeStopLossLimit || t == OrderTypeTakeProfitLimit
}

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
)

// WorkingType selects the price a futures stop triggers on.
const (
	WorkingMarkPrice     = "MARK_PRICE"
	WorkingContractPrice = "CONTRACT_PRICE"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// MarketType distinguishes spot vs futures venues.
type MarketType string

const (
	MarketSpot    MarketType = "SPOT"
	MarketUSDTFut MarketType = "USDT_FUTURES"
)

// IsFutures reports whether the venue supports reduce-only orders.
func (m MarketType) IsFutures() bool { return m == MarketUSDTFut }

// OrderRequest captures an order intent to be sent to an exchange. Prices and
// quantities are already rounded to the symbol's filters.
type OrderRequest struct {
	Symbol       string
	Side         Side
	Type         OrderType
	Qty          decimal.Decimal
	Price        decimal.Decimal // required for LIMIT and STOP_LOSS_LIMIT
	StopPrice    decimal.Decimal // required for stop orders
	TimeInForce  TimeInForce
	ClientID     string
	ReduceOnly   bool   // futures only
	PositionSide string // LONG/SHORT for hedge mode futures
	WorkingType  string // futures stops: MARK_PRICE or CONTRACT_PRICE
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	ExchangeOrderID string
	ClientID        string
	Status          OrderStatus
	ExecutedQty     decimal.Decimal
	UpdateTime      int64
}
