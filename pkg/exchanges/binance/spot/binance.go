package spot

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

// Config holds Binance credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	BaseURL    string // overrides the production/testnet host
	RecvWindow int64  // ms
}

// Client is a Binance spot trading client.
type Client struct {
	*binance.REST
}

func New(cfg Config, logger *zap.Logger) *Client {
	base := "https://api.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binance.vision"
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	// 6000 weight/min for spot
	rest := binance.NewREST(common.MarketSpot, base, cfg.APIKey, cfg.APISecret, 6000, "/api/v3/time", logger)
	if cfg.RecvWindow > 0 {
		rest.RecvWindow = cfg.RecvWindow
	}
	return &Client{REST: rest}
}

func (c *Client) Market() common.MarketType { return common.MarketSpot }

func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	ordType := req.Type
	if ordType == "" {
		ordType = common.OrderTypeLimit
	}
	if ordType == common.OrderTypeStopMarket {
		return common.OrderResult{}, fmt.Errorf("binance spot: order type %s not supported", ordType)
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
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}

	body, err := c.Signed(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return common.OrderResult{}, err
	}
	return binance.DecodeOrder(body)
}

func (c *Client) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	if exchangeOrderID != "" {
		params.Set("orderId", exchangeOrderID)
	}
	_, err := c.Signed(ctx, http.MethodDelete, "/api/v3/order", params)
	return err
}

// CancelAllOpenOrders cancels all open orders for a symbol.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	_, err := c.Signed(ctx, http.MethodDelete, "/api/v3/openOrders", params)
	return err
}

// ExchangeInfo returns trading rules for every spot symbol.
func (c *Client) ExchangeInfo(ctx context.Context) ([]filters.SymbolFilter, error) {
	body, err := c.Public(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	return binance.ParseExchangeInfo(body)
}

// Position reports the free balance of the base asset. Spot has no short
// positions, so the result is never negative.
func (c *Client) Position(ctx context.Context, symbol, baseAsset string) (decimal.Decimal, error) {
	if baseAsset == "" {
		return decimal.Zero, fmt.Errorf("binance spot: base asset unknown for %s", symbol)
	}
	info, err := c.GetAccountInfo(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, bal := range info.Balances {
		if bal.Asset == baseAsset {
			return bal.Free, nil
		}
	}
	return decimal.Zero, nil
}

// AccountInfo holds balances and permissions.
type AccountInfo struct {
	CanTrade   bool      `json:"canTrade"`
	UpdateTime int64     `json:"updateTime"`
	Balances   []Balance `json:"balances"`
}

// Balance represents an asset balance.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// GetAccountInfo returns account balances and basic flags.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	params := url.Values{}
	params.Set("omitZeroBalances", "true")
	body, err := c.Signed(ctx, http.MethodGet, "/api/v3/account", params)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode account info: %w", err)
	}
	return &info, nil
}

func toBinanceTIF(tif common.TimeInForce) common.TimeInForce {
	if tif == "" {
		return common.TIFGTC
	}
	return tif
}
