package events

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/pkg/db"
)

// Sink receives order updates. Implementations must be safe for concurrent
// use; exit legs publish from several goroutines.
type Sink interface {
	Publish(ctx context.Context, u OrderUpdate) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, u OrderUpdate) error

func (f SinkFunc) Publish(ctx context.Context, u OrderUpdate) error { return f(ctx, u) }

// Nop discards every update.
var Nop Sink = SinkFunc(func(context.Context, OrderUpdate) error { return nil })

// LogSink writes updates to a structured logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Publish(_ context.Context, u OrderUpdate) error {
	fields := []zap.Field{
		zap.String("event_type", u.EventType),
		zap.String("bracket_order_id", u.BracketOrderID),
		zap.String("role", u.Role),
		zap.String("venue", u.Venue),
		zap.String("symbol", u.Symbol),
		zap.String("order_id", u.OrderID),
		zap.String("client_order_id", u.ClientOrderID),
		zap.String("status", u.Status),
		zap.String("side", u.Side),
		zap.String("order_type", u.OrderType),
		zap.String("price", u.Price.String()),
		zap.String("quantity", u.Quantity.String()),
		zap.String("executed_qty", u.ExecutedQty.String()),
		zap.String("source", u.Source),
	}
	if u.Reason != "" {
		fields = append(fields, zap.String("reason", u.Reason))
		s.Logger.Warn("order update", fields...)
		return nil
	}
	s.Logger.Info("order update", fields...)
	return nil
}

// BusSink forwards updates to in-process subscribers such as websocket
// clients.
type BusSink struct {
	Bus *Bus
}

func (s BusSink) Publish(_ context.Context, u OrderUpdate) error {
	s.Bus.Publish(EventOrderUpdate, u)
	return nil
}

// JournalSink appends updates to the sqlite journal.
type JournalSink struct {
	Journal *db.Journal
}

func (s JournalSink) Publish(ctx context.Context, u OrderUpdate) error {
	_, err := s.Journal.Insert(ctx, db.OrderUpdate{
		BracketOrderID: u.BracketOrderID,
		Role:           u.Role,
		Venue:          u.Venue,
		Symbol:         u.Symbol,
		OrderID:        u.OrderID,
		ClientOrderID:  u.ClientOrderID,
		Status:         u.Status,
		Side:           u.Side,
		OrderType:      u.OrderType,
		Price:          u.Price.String(),
		Quantity:       u.Quantity.String(),
		ExecutedQty:    u.ExecutedQty.String(),
		UpdateTime:     u.UpdateTime,
		Reason:         u.Reason,
		Source:         u.Source,
	})
	return err
}

// MultiSink publishes to every sink and combines their errors. One failing
// sink does not stop the others.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, u OrderUpdate) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Publish(ctx, u))
	}
	return err
}

// Stamp fills the envelope fields that every update carries.
func Stamp(u OrderUpdate, source string) OrderUpdate {
	u.EventType = EventTypeOrderUpdate
	u.Source = source
	if u.UpdateTime == 0 {
		u.UpdateTime = time.Now().UnixMilli()
	}
	return u
}
