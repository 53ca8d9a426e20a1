package common

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// Gateway abstracts a trading venue.
type Gateway interface {
	Market() MarketType
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
	CancelAllOpenOrders(ctx context.Context, symbol string) error
	// ExchangeInfo returns the venue's trading rules for every listed symbol.
	ExchangeInfo(ctx context.Context) ([]filters.SymbolFilter, error)
	// Position returns the signed open position for symbol: the futures
	// position amount, or the free base asset balance on spot.
	Position(ctx context.Context, symbol, baseAsset string) (decimal.Decimal, error)
}
