package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/internal/events"
)

// Monitor watches the bus and raises alerts: filter refresh failures, and
// rejected order updates relayed from the exchange.
type Monitor struct {
	Bus     *events.Bus
	Alerts  AlertSink
	Metrics *Metrics
	Logger  *zap.Logger
}

// Start subscribes and returns immediately; the watcher stops with ctx.
func (m *Monitor) Start(ctx context.Context) {
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if m.Bus == nil || m.Alerts == nil {
		log.Warn("monitor not fully configured; skipping")
		return
	}
	reloads, unsubReloads := m.Bus.Subscribe(events.EventFilterReload, 16)
	updates, unsubUpdates := m.Bus.Subscribe(events.EventOrderUpdate, 256)
	go func() {
		defer unsubReloads()
		defer unsubUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-reloads:
				if !ok {
					return
				}
				m.handle(msg, log)
			case msg, ok := <-updates:
				if !ok {
					return
				}
				m.handle(msg, log)
			}
		}
	}()
}

func (m *Monitor) handle(msg any, log *zap.Logger) {
	var text string
	switch v := msg.(type) {
	case events.FilterReload:
		if v.Error == "" {
			return
		}
		text = fmt.Sprintf("filter refresh failed for %s: %s", v.Venue, v.Error)
	case events.OrderUpdate:
		if v.Source == events.SourceExchange && m.Metrics != nil {
			m.Metrics.ObserveStreamUpdate(v.Venue, v.Status)
		}
		if v.Status != "REJECTED" && v.Status != "EXPIRED" {
			return
		}
		text = fmt.Sprintf("%s %s order %s %s: %s", v.Venue, v.Symbol, v.ClientOrderID, v.Status, v.Reason)
	default:
		return
	}
	if err := m.Alerts.Send(formatAlert(text)); err != nil {
		log.Warn("alert delivery failed", zap.Error(err))
	}
}

func formatAlert(msg string) string {
	return "[" + time.Now().UTC().Format(time.RFC3339) + "] " + msg
}
