package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSink POSTs each update as JSON to a fixed URL.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

// NewWebhookSink returns a sink with its own client timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSink) Publish(ctx context.Context, u OrderUpdate) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode order update: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", u.EventType)

	res, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook post: status %d", res.StatusCode)
	}
	return nil
}
