package futures_usdt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/binance"
	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	BaseURL    string // overrides the production/testnet host
	RecvWindow int64  // ms
}

// Client handles Binance USDT-M futures.
type Client struct {
	*binance.REST
}

// NewClient creates a new USDT-M futures client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	// 2400 weight/min for futures
	rest := binance.NewREST(common.MarketUSDTFut, base, cfg.APIKey, cfg.APISecret, 2400, "/fapi/v1/time", logger)
	if cfg.RecvWindow > 0 {
		rest.RecvWindow = cfg.RecvWindow
	}
	return &Client{REST: rest}
}

func (c *Client) Market() common.MarketType { return common.MarketUSDTFut }

// SubmitOrder places an order. Stops default to triggering on mark price.
func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	ordType := req.Type
	if ordType == "" {
		ordType = common.OrderTypeLimit
	}
	switch ordType {
	case common.OrderTypeMarket, common.OrderTypeLimit, common.OrderTypeStopMarket:
	default:
		return common.OrderResult{}, fmt.Errorf("binance usdt futures: order type %s not supported", ordType)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("type", string(ordType))
	params.Set("quantity", binance.FormatDecimal(req.Qty))
	params.Set("newOrderRespType", "RESULT")

	if ordType.Priced() {
		params.Set("price", binance.FormatDecimal(req.Price))
		params.Set("timeInForce", string(toBinanceTIF(req.TimeInForce)))
	}
	if ordType.Triggered() {
		params.Set("stopPrice", binance.FormatDecimal(req.StopPrice))
		workingType := req.WorkingType
		if workingType == "" {
			workingType = common.WorkingMarkPrice
		}
		params.Set("workingType", workingType)
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	if req.PositionSide != "" {
		params.Set("positionSide", req.PositionSide)
	}
	// Binance rejects reduceOnly in hedge mode; positionSide carries intent there.
	if req.ReduceOnly && req.PositionSide == "" {
		params.Set("reduceOnly", "true")
	}

	body, err := c.Signed(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return common.OrderResult{}, err
	}
	return binance.DecodeOrder(body)
}

// CancelOrder cancels an order by symbol and ID.
func (c *Client) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	if exchangeOrderID != "" {
		params.Set("orderId", exchangeOrderID)
	}
	_, err := c.Signed(ctx, http.MethodDelete, "/fapi/v1/order", params)
	return err
}

// CancelAllOpenOrders cancels all open orders for a symbol.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	_, err := c.Signed(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	return err
}

// ExchangeInfo returns trading rules for every USDT-M contract.
func (c *Client) ExchangeInfo(ctx context.Context) ([]filters.SymbolFilter, error) {
	body, err := c.Public(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	return binance.ParseExchangeInfo(body)
}

// Position returns the net signed position amount for symbol. In hedge mode
// the LONG and SHORT legs are summed.
func (c *Client) Position(ctx context.Context, symbol, _ string) (decimal.Decimal, error) {
	positions, err := c.GetPositions(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range positions {
		if p.Symbol == symbol {
			total = total.Add(p.PositionAmt)
		}
	}
	return total, nil
}

// GetPositions returns position risk view.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]PositionRisk, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	body, err := c.Signed(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}
	var pos []PositionRisk
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return pos, nil
}

// CreateListenKey creates a listen key for user data stream.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	body, err := c.Keyed(ctx, http.MethodPost, "/fapi/v1/listenKey", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode listen key: %w", err)
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends listen key life.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.Keyed(ctx, http.MethodPut, "/fapi/v1/listenKey", params)
	return err
}

// CloseListenKey closes the user data stream.
func (c *Client) CloseListenKey(ctx context.Context, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.Keyed(ctx, http.MethodDelete, "/fapi/v1/listenKey", params)
	return err
}

// StreamURL returns the websocket endpoint for a listen key.
func (c *Client) StreamURL(listenKey string) string {
	if c.BaseURL == "https://testnet.binancefuture.com" {
		return "wss://stream.binancefuture.com/ws/" + listenKey
	}
	return "wss://fstream.binance.com/ws/" + listenKey
}

type PositionRisk struct {
	Symbol           string          `json:"symbol"`
	PositionSide     string          `json:"positionSide"`
	PositionAmt      decimal.Decimal `json:"positionAmt"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	UnRealizedProfit decimal.Decimal `json:"unRealizedProfit"`
	Leverage         string          `json:"leverage"`
}

func toBinanceTIF(tif common.TimeInForce) common.TimeInForce {
	if tif == "" {
		return common.TIFGTC
	}
	return tif
}
