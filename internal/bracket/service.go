package bracket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SubhajL/online-trading-sub002/internal/events"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// Exchange is the venue-routing contract the orchestrator submits through.
// *gateway.Router satisfies it.
type Exchange interface {
	PlaceOrder(ctx context.Context, venue exchange.MarketType, req exchange.OrderRequest) (exchange.OrderResult, error)
	CancelOrder(ctx context.Context, venue exchange.MarketType, symbol, orderID string) error
	CancelAllOpenOrders(ctx context.Context, venue exchange.MarketType, symbol string) error
	Position(ctx context.Context, venue exchange.MarketType, symbol, baseAsset string) (decimal.Decimal, error)
}

// Config tunes timeouts, retries and exit-leg fan-out.
type Config struct {
	Timeout         time.Duration // per attempt
	MaxRetries      int           // retries after the first attempt, transient errors only
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	ExitParallelism int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryBaseDelay:  200 * time.Millisecond,
		RetryMaxDelay:   2 * time.Second,
		ExitParallelism: 4,
	}
}

// LegObserver is notified after every leg submission (metrics).
type LegObserver func(venue exchange.MarketType, role Role, state LegState, took time.Duration)

// Service is the bracket order orchestrator. It holds no per-bracket state;
// concurrent calls share only the filter validators.
type Service struct {
	exchange Exchange
	rules    map[exchange.MarketType]*filters.Validator
	sink     events.Sink
	cfg      Config
	logger   *zap.Logger
	observe  LegObserver

	now   func() time.Time
	newID func() string
}

// NewService wires the orchestrator. rules holds one validator per enabled
// venue; a nil sink discards events.
func NewService(ex Exchange, rules map[exchange.MarketType]*filters.Validator, sink events.Sink, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.Nop
	}
	if cfg.ExitParallelism <= 0 {
		cfg.ExitParallelism = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Service{
		exchange: ex,
		rules:    rules,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "bracket")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Observe installs a leg observer.
func (s *Service) Observe(fn LegObserver) { s.observe = fn }

// Place validates, rounds and submits a bracket. The entry is acknowledged
// before any exit is sent. If the entry fails nothing else is attempted and
// the error is returned. If exits fail the entry is left alone and a
// *PartialBracketFailure is returned together with the bracket.
func (s *Service) Place(ctx context.Context, req Request) (*Bracket, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	v, err := s.validator(req.Venue)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := &Bracket{
		ID:        s.newID(),
		Request:   req,
		CreatedAt: now.UTC(),
		Timestamp: now.UnixMilli(),
	}
	if err := planLegs(b, v); err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("bracket_order_id", b.ID),
		zap.String("venue", string(req.Venue)),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)))

	if err := s.sendLeg(ctx, b, b.Main()); err != nil {
		s.publish(ctx, b.ID, req.Venue, req.Symbol, b.Main())
		log.Warn("entry rejected, bracket aborted", zap.Error(err))
		return b, fmt.Errorf("entry leg: %w", err)
	}

	// The entry is live. Its exits must go out even if the caller has gone
	// away, so they run under their own deadline instead of the request's.
	exits := b.Exits()
	exitCtx, cancel := s.exitContext(ctx, len(exits))
	defer cancel()
	s.submitExits(exitCtx, b, exits)

	// Sinks can be slow (webhook, journal), so transitions are published
	// only once every leg has been sent.
	for _, l := range b.Legs {
		s.publish(ctx, b.ID, req.Venue, req.Symbol, l)
	}

	if failed := b.Failed(); len(failed) > 0 {
		perr := &PartialBracketFailure{Bracket: b, Failed: failed}
		log.Error("bracket partially submitted", zap.Error(perr))
		return b, perr
	}
	log.Info("bracket submitted", zap.Int("legs", len(b.Legs)))
	return b, nil
}

// submitExits sends exit legs concurrently with bounded parallelism. Legs
// fail independently; one rejection does not stop the others.
func (s *Service) submitExits(ctx context.Context, b *Bracket, legs []*Leg) {
	var g errgroup.Group
	g.SetLimit(s.cfg.ExitParallelism)
	for _, l := range legs {
		g.Go(func() error {
			_ = s.sendLeg(ctx, b, l)
			return nil
		})
	}
	_ = g.Wait()
}

// exitContext detaches from the caller's cancellation and bounds the exit
// fan-out by the worst case of the retry policy: every attempt timing out,
// every backoff at its cap, legs queued behind the parallelism limit.
func (s *Service) exitContext(ctx context.Context, legs int) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(detached)
	}
	perLeg := s.cfg.Timeout*time.Duration(s.cfg.MaxRetries+1) +
		s.cfg.RetryMaxDelay*time.Duration(s.cfg.MaxRetries)
	rounds := (legs + s.cfg.ExitParallelism - 1) / s.cfg.ExitParallelism
	if rounds < 1 {
		rounds = 1
	}
	return context.WithTimeout(detached, perLeg*time.Duration(rounds))
}

// RetryLeg re-submits one rejected leg of a bracket returned by Place with
// its original client order id. Exit legs need an acknowledged entry.
func (s *Service) RetryLeg(ctx context.Context, b *Bracket, role Role) (*Leg, error) {
	l := b.Leg(role)
	if l == nil {
		return nil, fmt.Errorf("%w: bracket %s has no %s leg", ErrLegNotRetryable, b.ID, role)
	}
	if l.State == LegSubmitted {
		return l, fmt.Errorf("%w: %s already submitted", ErrLegNotRetryable, role)
	}
	if role != RoleMain {
		if m := b.Main(); m == nil || m.State != LegSubmitted {
			return l, fmt.Errorf("%w: entry not acknowledged", ErrLegNotRetryable)
		}
	}
	err := s.submitLeg(ctx, b, l)
	return l, err
}

// submitLeg sends a leg and publishes its transition.
func (s *Service) submitLeg(ctx context.Context, b *Bracket, l *Leg) error {
	err := s.sendLeg(ctx, b, l)
	s.publish(ctx, b.ID, b.Request.Venue, b.Request.Symbol, l)
	return err
}

// sendLeg places a leg and records the outcome on it without publishing.
func (s *Service) sendLeg(ctx context.Context, b *Bracket, l *Leg) error {
	req := l.request(b.Request.Symbol)
	// A leg that was tried before may already be live on the exchange.
	resubmit := l.Attempts > 0
	start := time.Now()

	var res exchange.OrderResult
	attempts, err := s.retry(ctx, "place "+string(l.Role), func(ctx context.Context, attempt int) error {
		r, err := s.exchange.PlaceOrder(ctx, b.Request.Venue, req)
		if err != nil && (attempt > 0 || resubmit) && exchange.IsDuplicateOrder(err) {
			res = exchange.OrderResult{ClientID: req.ClientID, Status: exchange.StatusUnknown}
			return nil
		}
		res = r
		return err
	})
	l.Attempts += attempts
	if err != nil {
		l.reject(err)
	} else {
		l.accept(res)
	}

	if s.observe != nil {
		s.observe(b.Request.Venue, l.Role, l.State, time.Since(start))
	}
	return err
}

// Cancel cancels one order by exchange id.
func (s *Service) Cancel(ctx context.Context, venue exchange.MarketType, symbol, orderID string) error {
	if symbol == "" {
		return invalid("symbol is required")
	}
	if orderID == "" {
		return invalid("order id is required")
	}
	_, err := s.retry(ctx, "cancel", func(ctx context.Context, _ int) error {
		return s.exchange.CancelOrder(ctx, venue, symbol, orderID)
	})
	if err == nil {
		s.logger.Info("order cancelled",
			zap.String("venue", string(venue)),
			zap.String("symbol", symbol),
			zap.String("order_id", orderID))
	}
	return err
}

// CloseAll flattens the position in symbol with an opposite-side market
// order: reduce-only on futures, a sale of the free base asset on spot.
// Futures open orders are cancelled first so leftover bracket legs cannot
// reopen the position.
func (s *Service) CloseAll(ctx context.Context, venue exchange.MarketType, symbol string) (*CloseResult, error) {
	if symbol == "" {
		return nil, invalid("symbol is required")
	}
	v, err := s.validator(venue)
	if err != nil {
		return nil, err
	}
	sf, ok := v.Symbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", filters.ErrUnknownSymbol, symbol)
	}

	if venue.IsFutures() {
		if _, err := s.retry(ctx, "cancel all", func(ctx context.Context, _ int) error {
			return s.exchange.CancelAllOpenOrders(ctx, venue, symbol)
		}); err != nil {
			return nil, fmt.Errorf("cancel open orders: %w", err)
		}
	}

	var pos decimal.Decimal
	if _, err := s.retry(ctx, "position", func(ctx context.Context, _ int) error {
		var err error
		pos, err = s.exchange.Position(ctx, venue, symbol, sf.BaseAsset)
		return err
	}); err != nil {
		return nil, fmt.Errorf("read position: %w", err)
	}
	if pos.IsZero() || (!venue.IsFutures() && pos.IsNegative()) {
		return nil, fmt.Errorf("%w: %s %s", ErrNothingToClose, venue, symbol)
	}

	side := exchange.SideSell
	if pos.IsNegative() {
		side = exchange.SideBuy
	}
	qty, err := v.RoundMarketQuantity(symbol, pos.Abs())
	if err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: position %s below lot step", ErrNothingToClose, pos)
	}

	now := s.now()
	id := s.newID()
	l := &Leg{
		Role:          RoleClose,
		ClientOrderID: ClientOrderID(id, RoleClose, now.UnixMilli()),
		Side:          side,
		Type:          exchange.OrderTypeMarket,
		Quantity:      qty,
		ReduceOnly:    venue.IsFutures(),
		State:         LegPending,
	}
	if err := checkLeg(v, symbol, l); err != nil {
		return nil, err
	}

	b := &Bracket{
		ID:        id,
		Request:   Request{Symbol: symbol, Side: side, Quantity: qty, Venue: venue},
		CreatedAt: now.UTC(),
		Timestamp: now.UnixMilli(),
		Legs:      []*Leg{l},
	}
	if err := s.submitLeg(ctx, b, l); err != nil {
		return nil, fmt.Errorf("close %s %s: %w", venue, symbol, err)
	}
	s.logger.Info("position closed",
		zap.String("venue", string(venue)),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("quantity", qty.String()),
		zap.String("order_id", l.OrderID))

	return &CloseResult{
		Venue:         venue,
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		OrderID:       l.OrderID,
		ClientOrderID: l.ClientOrderID,
		Status:        l.Status,
	}, nil
}

// Validator returns the filter validator for venue.
func (s *Service) Validator(venue exchange.MarketType) (*filters.Validator, bool) {
	v, ok := s.rules[venue]
	return v, ok && v != nil
}

func (s *Service) validator(venue exchange.MarketType) (*filters.Validator, error) {
	v, ok := s.Validator(venue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVenueDisabled, venue)
	}
	return v, nil
}

// publish forwards a leg transition to the sink. Sink failures are logged
// and never fail the bracket.
func (s *Service) publish(ctx context.Context, bracketID string, venue exchange.MarketType, symbol string, l *Leg) {
	price := l.Price
	if price.IsZero() {
		price = l.StopPrice
	}
	u := events.Stamp(events.OrderUpdate{
		BracketOrderID: bracketID,
		Role:           string(l.Role),
		Venue:          string(venue),
		Symbol:         symbol,
		OrderID:        l.OrderID,
		ClientOrderID:  l.ClientOrderID,
		Status:         string(l.Status),
		Side:           string(l.Side),
		OrderType:      string(l.Type),
		Price:          price,
		Quantity:       l.Quantity,
		ExecutedQty:    l.ExecutedQty,
		UpdateTime:     l.UpdateTime,
		Reason:         l.Reason,
	}, events.SourceGateway)

	if err := s.sink.Publish(context.WithoutCancel(ctx), u); err != nil {
		s.logger.Warn("publish order update failed",
			zap.String("client_order_id", l.ClientOrderID),
			zap.Error(err))
	}
}
