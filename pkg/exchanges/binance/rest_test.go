package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

func TestSignedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-MBX-APIKEY"); got != "key" {
			t.Errorf("api key header=%q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		sig := r.Form.Get("signature")
		if sig == "" || r.Form.Get("timestamp") == "" || r.Form.Get("recvWindow") != "5000" {
			t.Errorf("missing signing params: %v", r.Form)
		}
		// Recompute over everything but the signature.
		unsigned := url.Values{}
		for k, v := range r.PostForm {
			if k != "signature" {
				unsigned[k] = v
			}
		}
		if want := Sign(unsigned.Encode(), "secret"); sig != want {
			t.Errorf("signature=%s, expected %s", sig, want)
		}
		w.Header().Set("X-MBX-USED-WEIGHT-1M", "12")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	r := NewREST(common.MarketSpot, srv.URL, "key", "secret", 6000, "/api/v3/time", nil)
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	if _, err := r.Signed(context.Background(), http.MethodPost, "/api/v3/order", params); err != nil {
		t.Fatalf("Signed: %v", err)
	}
	if used, _, _ := r.Weights().GetUsage(); used != 12 {
		t.Fatalf("used weight=%d, expected 12", used)
	}
}

func TestSignedWithoutCredentials(t *testing.T) {
	r := NewREST(common.MarketSpot, "http://127.0.0.1:0", "", "", 6000, "/api/v3/time", nil)
	_, err := r.Signed(context.Background(), http.MethodGet, "/api/v3/account", nil)
	if !errors.Is(err, common.ErrCredentialsMissing) {
		t.Fatalf("err=%v, expected ErrCredentialsMissing", err)
	}
}

func TestErrorBodyDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	r := NewREST(common.MarketSpot, srv.URL, "key", "secret", 6000, "/api/v3/time", nil)
	_, err := r.Signed(context.Background(), http.MethodPost, "/api/v3/order", nil)
	var xe *common.ExchangeError
	if !errors.As(err, &xe) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	if xe.HTTPStatus != 400 || xe.Code != -2010 || !xe.InsufficientBalance() {
		t.Fatalf("unexpected error %+v", xe)
	}
}

func TestParseErrorNonJSON(t *testing.T) {
	xe := ParseError(common.MarketUSDTFut, http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	if xe.Code != 0 || xe.Msg != "<html>bad gateway</html>" || !xe.Transient() {
		t.Fatalf("unexpected error %+v", xe)
	}
	xe = ParseError(common.MarketUSDTFut, http.StatusServiceUnavailable, nil)
	if xe.Msg != "Service Unavailable" {
		t.Fatalf("msg=%q", xe.Msg)
	}
}

const spotExchangeInfo = `{
  "timezone": "UTC",
  "symbols": [{
    "symbol": "BTCUSDT",
    "status": "TRADING",
    "baseAsset": "BTC",
    "quoteAsset": "USDT",
    "filters": [
      {"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "1000000.00000000", "tickSize": "0.01000000"},
      {"filterType": "LOT_SIZE", "minQty": "0.00001000", "maxQty": "9000.00000000", "stepSize": "0.00001000"},
      {"filterType": "ICEBERG_PARTS", "limit": 10},
      {"filterType": "MARKET_LOT_SIZE", "minQty": "0.00000000", "maxQty": "107.55", "stepSize": "0.00000000"},
      {"filterType": "NOTIONAL", "minNotional": "5.00000000", "applyMinToMarket": true, "maxNotional": "9000000.00000000", "applyMaxToMarket": false, "avgPriceMins": 5}
    ]
  }]
}`

const futuresExchangeInfo = `{
  "symbols": [{
    "symbol": "ETHUSDT",
    "status": "TRADING",
    "baseAsset": "ETH",
    "quoteAsset": "USDT",
    "filters": [
      {"filterType": "PRICE_FILTER", "minPrice": "39.86", "maxPrice": "306177", "tickSize": "0.01"},
      {"filterType": "LOT_SIZE", "minQty": "0.001", "maxQty": "10000", "stepSize": "0.001"},
      {"filterType": "MARKET_LOT_SIZE", "minQty": "0.001", "maxQty": "2000", "stepSize": "0.001"},
      {"filterType": "MAX_NUM_ORDERS", "limit": 200},
      {"filterType": "MIN_NOTIONAL", "notional": "20"}
    ]
  }]
}`

func TestParseExchangeInfo(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		symbol      string
		wantTypes   []string
		minNotional string
	}{
		{"spot", spotExchangeInfo, "BTCUSDT", []string{filters.TypePrice, filters.TypeLotSize, filters.TypeMarketLotSize, filters.TypeMinNotional}, "5"},
		{"futures", futuresExchangeInfo, "ETHUSDT", []string{filters.TypePrice, filters.TypeLotSize, filters.TypeMarketLotSize, filters.TypeMinNotional}, "20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sfs, err := ParseExchangeInfo([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseExchangeInfo: %v", err)
			}
			if len(sfs) != 1 || sfs[0].Symbol != tt.symbol {
				t.Fatalf("symbols=%+v", sfs)
			}
			got := sfs[0].Filters
			if len(got) != len(tt.wantTypes) {
				t.Fatalf("filters=%d, expected %d", len(got), len(tt.wantTypes))
			}
			for i, f := range got {
				if f.Type() != tt.wantTypes[i] {
					t.Fatalf("filter[%d]=%s, expected %s", i, f.Type(), tt.wantTypes[i])
				}
			}
			mn := got[3].(filters.MinNotionalFilter)
			if mn.MinNotional.String() != tt.minNotional || !mn.ApplyToMarket {
				t.Fatalf("min notional=%+v", mn)
			}
		})
	}
}

func TestDecodeOrder(t *testing.T) {
	res, err := DecodeOrder([]byte(`{"symbol":"BTCUSDT","orderId":28,"clientOrderId":"abc","transactTime":1507725176595,"status":"PARTIALLY_FILLED","executedQty":"0.5"}`))
	if err != nil {
		t.Fatalf("DecodeOrder: %v", err)
	}
	if res.ExchangeOrderID != "28" || res.ClientID != "abc" || res.Status != common.StatusPartial {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ExecutedQty.String() != "0.5" || res.UpdateTime != 1507725176595 {
		t.Fatalf("unexpected result %+v", res)
	}
}
