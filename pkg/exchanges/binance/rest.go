// Package binance holds the wire plumbing shared by the Binance spot and
// USDT-M futures clients: request signing, error decoding and exchangeInfo
// parsing.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

// REST is a minimal Binance REST transport. Venue clients embed it and add
// their own endpoints.
type REST struct {
	Venue      common.MarketType
	BaseURL    string
	APIKey     string
	APISecret  string
	RecvWindow int64 // ms
	HTTP       *http.Client
	Logger     *zap.Logger

	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

// NewREST wires a transport with time sync and weight tracking.
// serverTimePath is the venue's unauthenticated time endpoint.
func NewREST(venue common.MarketType, baseURL, apiKey, apiSecret string, weightLimit int, serverTimePath string, logger *zap.Logger) *REST {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &REST{
		Venue:      venue,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		APISecret:  apiSecret,
		RecvWindow: 5000,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
	r.timeSync = common.NewTimeSync(func(ctx context.Context) (int64, error) {
		return r.ServerTime(ctx, serverTimePath)
	}, logger)
	r.rateLimiter = common.NewRateLimiter(weightLimit, time.Minute, logger)
	return r
}

// HasCredentials reports whether signed endpoints can be called.
func (r *REST) HasCredentials() bool { return r.APIKey != "" && r.APISecret != "" }

// TimeSync exposes the clock offset tracker so callers can start it.
func (r *REST) TimeSync() *common.TimeSync { return r.timeSync }

// Weights exposes the used-weight tracker.
func (r *REST) Weights() *common.RateLimiter { return r.rateLimiter }

func (r *REST) now() int64 {
	if r.timeSync != nil && r.timeSync.Offset() != 0 {
		return r.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// Signed adds timestamp, recvWindow and signature to params and performs the
// request.
func (r *REST) Signed(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if !r.HasCredentials() {
		return nil, fmt.Errorf("binance %s: %w", r.Venue, common.ErrCredentialsMissing)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(r.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(r.RecvWindow, 10))
	params.Set("signature", Sign(params.Encode(), r.APISecret))
	return r.do(ctx, method, path, params, true)
}

// Public performs an unauthenticated request.
func (r *REST) Public(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	return r.do(ctx, method, path, params, false)
}

// Keyed sends only the API key header, as listen key endpoints expect.
func (r *REST) Keyed(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if r.APIKey == "" {
		return nil, fmt.Errorf("binance %s: %w", r.Venue, common.ErrCredentialsMissing)
	}
	return r.do(ctx, method, path, params, true)
}

func (r *REST) do(ctx context.Context, method, path string, params url.Values, withKey bool) ([]byte, error) {
	endpoint := r.BaseURL + path
	encoded := ""
	if params != nil {
		encoded = params.Encode()
	}

	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodPut:
		// Binance expects these params in the query string.
		if encoded != "" {
			endpoint += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	if withKey {
		req.Header.Set("X-MBX-APIKEY", r.APIKey)
	}

	if r.rateLimiter != nil {
		if err := r.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("binance %s %s %s: %w", r.Venue, method, path, err)
		}
	}
	res, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance %s %s %s: %w", r.Venue, method, path, err)
	}
	defer res.Body.Close()

	if r.rateLimiter != nil {
		r.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("binance %s %s %s: read body: %w", r.Venue, method, path, err)
	}
	if res.StatusCode >= 300 {
		return nil, ParseError(r.Venue, res.StatusCode, body)
	}
	return body, nil
}

// ServerTime fetches server time (ms).
func (r *REST) ServerTime(ctx context.Context, path string) (int64, error) {
	body, err := r.Public(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}
	return res.ServerTime, nil
}

// ParseError decodes Binance's {"code":..,"msg":..} error body. Bodies that
// are not JSON are kept verbatim as the message.
func ParseError(venue common.MarketType, status int, body []byte) *common.ExchangeError {
	xe := &common.ExchangeError{Venue: venue, HTTPStatus: status}
	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Code != 0 || payload.Msg != "") {
		xe.Code = payload.Code
		xe.Msg = payload.Msg
		return xe
	}
	xe.Msg = strings.TrimSpace(string(body))
	if xe.Msg == "" {
		xe.Msg = http.StatusText(status)
	}
	return xe
}

// Sign returns the HMAC-SHA256 signature of data.
func Sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
