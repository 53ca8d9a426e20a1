package futures_usdt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "key", APISecret: "secret", BaseURL: srv.URL}, nil)
}

func TestSubmitStopMarketReduceOnly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/order" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		want := map[string]string{
			"type":        "STOP_MARKET",
			"side":        "SELL",
			"stopPrice":   "2900.5",
			"workingType": "MARK_PRICE",
			"reduceOnly":  "true",
			"quantity":    "0.25",
		}
		for k, v := range want {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("%s=%q, expected %q", k, got, v)
			}
		}
		if r.PostForm.Has("price") || r.PostForm.Has("timeInForce") {
			t.Errorf("stop market must not carry a limit price: %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"orderId":99,"clientOrderId":"cid_SL","status":"NEW","updateTime":1700000000000}`))
	})
	res, err := c.SubmitOrder(context.Background(), common.OrderRequest{
		Symbol:     "ETHUSDT",
		Side:       common.SideSell,
		Type:       common.OrderTypeStopMarket,
		Qty:        decimal.RequireFromString("0.25"),
		StopPrice:  decimal.RequireFromString("2900.5"),
		ReduceOnly: true,
		ClientID:   "cid_SL",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.ExchangeOrderID != "99" || res.UpdateTime != 1700000000000 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitRejectsSpotOnlyTypes(t *testing.T) {
	c := NewClient(Config{APIKey: "key", APISecret: "secret", BaseURL: "http://127.0.0.1:0"}, nil)
	_, err := c.SubmitOrder(context.Background(), common.OrderRequest{Symbol: "ETHUSDT", Type: common.OrderTypeStopLossLimit})
	if err == nil {
		t.Fatalf("expected error for STOP_LOSS_LIMIT on futures")
	}
}

func TestPositionSumsSides(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v2/positionRisk" || r.URL.Query().Get("symbol") != "ETHUSDT" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"symbol":"ETHUSDT","positionSide":"LONG","positionAmt":"1.5"},
			{"symbol":"ETHUSDT","positionSide":"SHORT","positionAmt":"-0.5"}
		]`))
	})
	pos, err := c.Position(context.Background(), "ETHUSDT", "")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if !pos.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("position=%s, expected 1", pos)
	}
}
