// Package gateway routes exchange calls to the configured venue, applying
// per-call timeouts, a client-side request budget and a simple circuit
// breaker on repeated transient failures.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

var (
	ErrVenueNotConfigured = errors.New("venue not configured")
	ErrGatewayUnhealthy   = errors.New("gateway is unhealthy")
)

// Config holds configuration for the Router.
type Config struct {
	Timeout          time.Duration // per exchange call
	RPS              float64       // outbound requests per second per venue; 0 disables
	Burst            int
	FailureThreshold int           // consecutive transient failures before the circuit opens; 0 disables
	CircuitTimeout   time.Duration // how long an open circuit rejects calls
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		RPS:              10,
		Burst:            10,
		FailureThreshold: 5,
		CircuitTimeout:   30 * time.Second,
	}
}

// CallObserver is notified after every routed call.
type CallObserver func(venue exchange.MarketType, op string, took time.Duration, err error)

type venueState struct {
	gw       exchange.Gateway
	limiter  *rate.Limiter
	failures int
	openedAt time.Time
}

// Router maps a venue to its Gateway.
type Router struct {
	mu      sync.RWMutex
	venues  map[exchange.MarketType]*venueState
	config  Config
	logger  *zap.Logger
	observe CallObserver
}

// NewRouter creates an empty router.
func NewRouter(cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		venues: make(map[exchange.MarketType]*venueState),
		config: cfg,
		logger: logger,
	}
}

// Observe installs a call observer (metrics).
func (r *Router) Observe(fn CallObserver) { r.observe = fn }

// Register adds or replaces the gateway for its venue.
func (r *Router) Register(gw exchange.Gateway) {
	st := &venueState{gw: gw}
	if r.config.RPS > 0 {
		burst := r.config.Burst
		if burst < 1 {
			burst = 1
		}
		st.limiter = rate.NewLimiter(rate.Limit(r.config.RPS), burst)
	}
	r.mu.Lock()
	r.venues[gw.Market()] = st
	r.mu.Unlock()
}

// Venues lists registered venues in a stable order.
func (r *Router) Venues() []exchange.MarketType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]exchange.MarketType, 0, len(r.venues))
	for v := range r.venues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Gateway returns the raw gateway for venue.
func (r *Router) Gateway(venue exchange.MarketType) (exchange.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.venues[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVenueNotConfigured, venue)
	}
	return st.gw, nil
}

// PlaceOrder submits one order.
func (r *Router) PlaceOrder(ctx context.Context, venue exchange.MarketType, req exchange.OrderRequest) (exchange.OrderResult, error) {
	var res exchange.OrderResult
	err := r.call(ctx, venue, "place_order", func(ctx context.Context, gw exchange.Gateway) error {
		var err error
		res, err = gw.SubmitOrder(ctx, req)
		return err
	})
	return res, err
}

// CancelOrder cancels one order by exchange id.
func (r *Router) CancelOrder(ctx context.Context, venue exchange.MarketType, symbol, orderID string) error {
	return r.call(ctx, venue, "cancel_order", func(ctx context.Context, gw exchange.Gateway) error {
		return gw.CancelOrder(ctx, symbol, orderID)
	})
}

// CancelAllOpenOrders cancels every open order for symbol.
func (r *Router) CancelAllOpenOrders(ctx context.Context, venue exchange.MarketType, symbol string) error {
	return r.call(ctx, venue, "cancel_all", func(ctx context.Context, gw exchange.Gateway) error {
		return gw.CancelAllOpenOrders(ctx, symbol)
	})
}

// GetExchangeInfo fetches the venue's trading rules.
func (r *Router) GetExchangeInfo(ctx context.Context, venue exchange.MarketType) ([]filters.SymbolFilter, error) {
	var out []filters.SymbolFilter
	err := r.call(ctx, venue, "exchange_info", func(ctx context.Context, gw exchange.Gateway) error {
		var err error
		out, err = gw.ExchangeInfo(ctx)
		return err
	})
	return out, err
}

// Position reads the open position for symbol.
func (r *Router) Position(ctx context.Context, venue exchange.MarketType, symbol, baseAsset string) (decimal.Decimal, error) {
	out := decimal.Zero
	err := r.call(ctx, venue, "position", func(ctx context.Context, gw exchange.Gateway) error {
		var err error
		out, err = gw.Position(ctx, symbol, baseAsset)
		return err
	})
	return out, err
}

// FilterSource adapts GetExchangeInfo to a filters.Source for venue.
func (r *Router) FilterSource(venue exchange.MarketType) filters.Source {
	return func(ctx context.Context) ([]filters.SymbolFilter, error) {
		return r.GetExchangeInfo(ctx, venue)
	}
}

func (r *Router) call(ctx context.Context, venue exchange.MarketType, op string, fn func(context.Context, exchange.Gateway) error) error {
	r.mu.RLock()
	st, ok := r.venues[venue]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrVenueNotConfigured, venue)
	}
	if err := r.checkCircuit(st); err != nil {
		return fmt.Errorf("%w: %s", err, venue)
	}
	if st.limiter != nil {
		if err := st.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: rate limit wait: %w", venue, op, err)
		}
	}

	callCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(callCtx, st.gw)
	took := time.Since(start)

	if err != nil && exchange.IsTransient(err) {
		r.recordFailure(venue, st)
	} else {
		r.recordSuccess(st)
	}
	if r.observe != nil {
		r.observe(venue, op, took, err)
	}
	return err
}

func (r *Router) checkCircuit(st *venueState) error {
	if r.config.FailureThreshold <= 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st.failures >= r.config.FailureThreshold && time.Since(st.openedAt) < r.config.CircuitTimeout {
		return ErrGatewayUnhealthy
	}
	return nil
}

// recordFailure counts a transient failure; the circuit (re)opens once the
// threshold is reached.
func (r *Router) recordFailure(venue exchange.MarketType, st *venueState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.failures++
	if r.config.FailureThreshold > 0 && st.failures >= r.config.FailureThreshold {
		st.openedAt = time.Now()
		r.logger.Warn("venue circuit open",
			zap.String("venue", string(venue)),
			zap.Int("failures", st.failures),
			zap.Duration("for", r.config.CircuitTimeout))
	}
}

func (r *Router) recordSuccess(st *venueState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.failures = 0
}

// Stats returns per-venue failure counters.
func (r *Router) Stats() map[exchange.MarketType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[exchange.MarketType]int, len(r.venues))
	for v, st := range r.venues {
		out[v] = st.failures
	}
	return out
}
