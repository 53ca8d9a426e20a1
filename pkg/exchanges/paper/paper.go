// Package paper is an in-memory venue used in dry-run mode. It accepts
// orders against a static filter set, fills MARKET orders immediately and
// leaves everything else resting.
package paper

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// Config controls the simulated venue.
type Config struct {
	Market          common.MarketType
	Filters         []filters.SymbolFilter
	LatencyMinMs    int                        // simulated gateway latency lower bound
	LatencyMaxMs    int                        // simulated gateway latency upper bound
	InitialBalances map[string]decimal.Decimal // spot only, by asset
}

// Order is a paper order as the venue remembers it.
type Order struct {
	ID          int64
	Request     common.OrderRequest
	Status      common.OrderStatus
	ExecutedQty decimal.Decimal
	CreatedAt   time.Time
}

// Exchange simulates one venue. Safe for concurrent use.
type Exchange struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	nextID    int64
	orders    map[int64]*Order
	byClient  map[string]int64
	positions map[string]decimal.Decimal // futures: signed amount by symbol; spot: balance by asset
	bases     map[string]string          // symbol -> base asset
}

// New builds a paper venue.
func New(cfg Config, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LatencyMaxMs > 0 && cfg.LatencyMinMs > cfg.LatencyMaxMs {
		cfg.LatencyMinMs, cfg.LatencyMaxMs = cfg.LatencyMaxMs, cfg.LatencyMinMs
	}
	ex := &Exchange{
		cfg:       cfg,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID:    1,
		orders:    make(map[int64]*Order),
		byClient:  make(map[string]int64),
		positions: make(map[string]decimal.Decimal),
		bases:     make(map[string]string),
	}
	for asset, qty := range cfg.InitialBalances {
		ex.positions[asset] = qty
	}
	for _, sf := range cfg.Filters {
		ex.bases[sf.Symbol] = sf.BaseAsset
	}
	return ex
}

func (e *Exchange) Market() common.MarketType { return e.cfg.Market }

// SubmitOrder acknowledges the order. Client ids are unique per venue, the
// same way Binance enforces them for open orders.
func (e *Exchange) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if err := e.sleep(ctx); err != nil {
		return common.OrderResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if req.ClientID != "" {
		if _, dup := e.byClient[req.ClientID]; dup {
			return common.OrderResult{}, e.reject(e.duplicateCode(), "Duplicate order sent.")
		}
	}
	if req.ReduceOnly && !e.cfg.Market.IsFutures() {
		return common.OrderResult{}, e.reject(-1106, "Parameter 'reduceOnly' sent when not required.")
	}

	o := &Order{
		ID:          e.nextID,
		Request:     req,
		Status:      common.StatusNew,
		ExecutedQty: decimal.Zero,
		CreatedAt:   time.Now(),
	}
	if req.Type == common.OrderTypeMarket {
		if err := e.fill(req); err != nil {
			return common.OrderResult{}, err
		}
		o.Status = common.StatusFilled
		o.ExecutedQty = req.Qty
	}
	e.nextID++
	e.orders[o.ID] = o
	if req.ClientID != "" {
		e.byClient[req.ClientID] = o.ID
	}

	e.logger.Info("paper order accepted",
		zap.String("venue", string(e.cfg.Market)),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.String("qty", req.Qty.String()),
		zap.String("client_order_id", req.ClientID),
		zap.String("status", string(o.Status)))

	return common.OrderResult{
		ExchangeOrderID: strconv.FormatInt(o.ID, 10),
		ClientID:        req.ClientID,
		Status:          o.Status,
		ExecutedQty:     o.ExecutedQty,
		UpdateTime:      o.CreatedAt.UnixMilli(),
	}, nil
}

// fill applies a MARKET order to positions. Caller holds mu.
func (e *Exchange) fill(req common.OrderRequest) error {
	signed := req.Qty
	if req.Side == common.SideSell {
		signed = signed.Neg()
	}

	if e.cfg.Market.IsFutures() {
		cur := e.positions[req.Symbol]
		if req.ReduceOnly && (cur.IsZero() || cur.Sign() == signed.Sign() || signed.Abs().GreaterThan(cur.Abs())) {
			return e.reject(-2022, "ReduceOnly Order is rejected.")
		}
		e.positions[req.Symbol] = cur.Add(signed)
		return nil
	}

	base := e.bases[req.Symbol]
	cur := e.positions[base]
	if req.Side == common.SideSell && req.Qty.GreaterThan(cur) {
		return e.reject(common.CodeNewOrderRejected, "Account has insufficient balance for requested action.")
	}
	e.positions[base] = cur.Add(signed)
	return nil
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	id, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return e.reject(-1102, "Mandatory parameter 'orderId' was not sent, was empty/null, or malformed.")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok || o.Request.Symbol != symbol || o.Status != common.StatusNew {
		return e.reject(-2011, "Unknown order sent.")
	}
	o.Status = common.StatusCanceled
	return nil
}

func (e *Exchange) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.orders {
		if o.Request.Symbol == symbol && o.Status == common.StatusNew {
			o.Status = common.StatusCanceled
		}
	}
	return nil
}

// ExchangeInfo returns the configured filter set.
func (e *Exchange) ExchangeInfo(ctx context.Context) ([]filters.SymbolFilter, error) {
	out := make([]filters.SymbolFilter, len(e.cfg.Filters))
	copy(out, e.cfg.Filters)
	return out, nil
}

// Position returns the futures amount for symbol or the spot balance of
// baseAsset.
func (e *Exchange) Position(ctx context.Context, symbol, baseAsset string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.Market.IsFutures() {
		return e.positions[symbol], nil
	}
	if baseAsset == "" {
		baseAsset = e.bases[symbol]
	}
	return e.positions[baseAsset], nil
}

// Orders returns a copy of every order seen, oldest first.
func (e *Exchange) Orders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Order, 0, len(e.orders))
	for id := int64(1); id < e.nextID; id++ {
		if o, ok := e.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

func (e *Exchange) duplicateCode() int {
	if e.cfg.Market.IsFutures() {
		return common.CodeDuplicateClientID
	}
	return common.CodeNewOrderRejected
}

func (e *Exchange) reject(code int, msg string) error {
	return &common.ExchangeError{Venue: e.cfg.Market, HTTPStatus: 400, Code: code, Msg: msg}
}

func (e *Exchange) sleep(ctx context.Context) error {
	maxMs := e.cfg.LatencyMaxMs
	if maxMs <= 0 {
		return nil
	}
	minMs := e.cfg.LatencyMinMs
	if minMs < 0 {
		minMs = 0
	}
	e.mu.Lock()
	delay := minMs
	if span := maxMs - minMs; span > 0 {
		delay += e.rng.Intn(span + 1)
	}
	e.mu.Unlock()

	t := time.NewTimer(time.Duration(delay) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
