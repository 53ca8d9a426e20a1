package monitor

import "go.uber.org/zap"

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogAlertSink writes alerts to the structured logger at error level.
type LogAlertSink struct {
	Logger *zap.Logger
}

func (s LogAlertSink) Send(message string) error {
	s.Logger.Error("alert", zap.String("message", message))
	return nil
}
