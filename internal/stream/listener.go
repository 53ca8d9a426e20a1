// Package stream relays Binance user data stream order updates to the event
// sink, so fills and cancels of bracket legs show up next to the gateway's own
// submission events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/internal/events"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

// ListenKeyClient manages a user data stream listen key. The spot and USDT-M
// futures clients implement it.
type ListenKeyClient interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, listenKey string) error
	CloseListenKey(ctx context.Context, listenKey string) error
	StreamURL(listenKey string) string
}

// Listener keeps one user data stream open and forwards order updates.
type Listener struct {
	Venue          exchange.MarketType
	Client         ListenKeyClient
	Sink           events.Sink
	Logger         *zap.Logger
	Dialer         *websocket.Dialer
	KeepAlive      time.Duration // listen key refresh, default 30m
	ReconnectDelay time.Duration // default 5s
}

// Run connects and reconnects until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	if l.Client == nil || l.Sink == nil {
		return errors.New("stream: client or sink not set")
	}
	log := l.logger()
	delay := l.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("user stream disconnected, reconnecting", zap.Error(err), zap.Duration("in", delay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (l *Listener) session(ctx context.Context) error {
	listenKey, err := l.Client.CreateListenKey(ctx)
	if err != nil {
		return fmt.Errorf("create listen key: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.Client.CloseListenKey(closeCtx, listenKey)
	}()

	dialer := l.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, l.Client.StreamURL(listenKey), nil)
	if err != nil {
		return fmt.Errorf("dial user stream: %w", err)
	}
	defer conn.Close()
	l.logger().Info("user stream connected")

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.keepAlive(sessCtx, listenKey)
	go func() {
		<-sessCtx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read user stream: %w", err)
		}
		l.Handle(ctx, msg)
	}
}

func (l *Listener) keepAlive(ctx context.Context, listenKey string) {
	every := l.KeepAlive
	if every <= 0 {
		every = 30 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Client.KeepAliveListenKey(ctx, listenKey); err != nil {
				l.logger().Warn("listen key keepalive failed", zap.Error(err))
			}
		}
	}
}

// Handle decodes one stream message and publishes it when it is an order
// update. Other events are ignored.
func (l *Listener) Handle(ctx context.Context, msg []byte) {
	u, ok, err := Decode(l.Venue, msg)
	if err != nil {
		l.logger().Warn("user stream message not understood", zap.Error(err), zap.ByteString("payload", msg))
		return
	}
	if !ok {
		return
	}
	if err := l.Sink.Publish(ctx, u); err != nil {
		l.logger().Warn("publish stream update failed", zap.String("client_order_id", u.ClientOrderID), zap.Error(err))
	}
}

func (l *Listener) logger() *zap.Logger {
	lg := l.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return lg.With(zap.String("component", "user_stream"), zap.String("venue", string(l.Venue)))
}
