package spot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// CreateListenKey creates a new user data stream listen key.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	body, err := c.Keyed(ctx, http.MethodPost, "/api/v3/userDataStream", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode listen key: %w", err)
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends the validity of a listen key.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.Keyed(ctx, http.MethodPut, "/api/v3/userDataStream", params)
	return err
}

// CloseListenKey closes a user data stream.
func (c *Client) CloseListenKey(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.Keyed(ctx, http.MethodDelete, "/api/v3/userDataStream", params)
	return err
}

// StreamURL returns the websocket endpoint for a listen key.
func (c *Client) StreamURL(listenKey string) string {
	if c.BaseURL == "https://testnet.binance.vision" {
		return "wss://stream.testnet.binance.vision/ws/" + listenKey
	}
	return "wss://stream.binance.com:9443/ws/" + listenKey
}
