package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

var q = decimal.RequireFromString

func TestSpotMarketFillAndDuplicate(t *testing.T) {
	ex := New(Config{
		Market:  common.MarketSpot,
		Filters: []filters.SymbolFilter{{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"}},
	}, nil)
	ctx := context.Background()

	req := common.OrderRequest{Symbol: "BTCUSDT", Side: common.SideBuy, Type: common.OrderTypeMarket, Qty: q("0.01"), ClientID: "a_MAIN"}
	res, err := ex.SubmitOrder(ctx, req)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.Status != common.StatusFilled || !res.ExecutedQty.Equal(q("0.01")) {
		t.Fatalf("unexpected ack %+v", res)
	}

	if _, err := ex.SubmitOrder(ctx, req); !common.IsDuplicateOrder(err) {
		t.Fatalf("err=%v, expected duplicate rejection", err)
	}

	pos, _ := ex.Position(ctx, "BTCUSDT", "BTC")
	if !pos.Equal(q("0.01")) {
		t.Fatalf("position=%s, expected 0.01", pos)
	}

	_, err = ex.SubmitOrder(ctx, common.OrderRequest{Symbol: "BTCUSDT", Side: common.SideSell, Type: common.OrderTypeMarket, Qty: q("1")})
	if !common.IsInsufficientBalance(err) {
		t.Fatalf("err=%v, expected insufficient balance", err)
	}
}

func TestFuturesReduceOnlyAndCancel(t *testing.T) {
	ex := New(Config{Market: common.MarketUSDTFut}, nil)
	ctx := context.Background()

	if _, err := ex.SubmitOrder(ctx, common.OrderRequest{Symbol: "ETHUSDT", Side: common.SideSell, Type: common.OrderTypeMarket, Qty: q("1"), ReduceOnly: true}); err == nil {
		t.Fatalf("reduce-only order on flat position should be rejected")
	}
	if _, err := ex.SubmitOrder(ctx, common.OrderRequest{Symbol: "ETHUSDT", Side: common.SideSell, Type: common.OrderTypeMarket, Qty: q("2")}); err != nil {
		t.Fatalf("open short: %v", err)
	}
	pos, _ := ex.Position(ctx, "ETHUSDT", "")
	if !pos.Equal(q("-2")) {
		t.Fatalf("position=%s, expected -2", pos)
	}

	tp, err := ex.SubmitOrder(ctx, common.OrderRequest{Symbol: "ETHUSDT", Side: common.SideBuy, Type: common.OrderTypeLimit, Qty: q("2"), Price: q("2500"), ReduceOnly: true})
	if err != nil || tp.Status != common.StatusNew {
		t.Fatalf("tp ack=%+v err=%v", tp, err)
	}
	if err := ex.CancelOrder(ctx, "ETHUSDT", tp.ExchangeOrderID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if err := ex.CancelOrder(ctx, "ETHUSDT", tp.ExchangeOrderID); err == nil {
		t.Fatalf("second cancel should fail")
	}

	if _, err := ex.SubmitOrder(ctx, common.OrderRequest{Symbol: "ETHUSDT", Side: common.SideBuy, Type: common.OrderTypeStopMarket, Qty: q("2"), StopPrice: q("3100"), ReduceOnly: true}); err != nil {
		t.Fatalf("sl: %v", err)
	}
	if err := ex.CancelAllOpenOrders(ctx, "ETHUSDT"); err != nil {
		t.Fatalf("CancelAllOpenOrders: %v", err)
	}
	for _, o := range ex.Orders() {
		if o.Status == common.StatusNew {
			t.Fatalf("order %d still open", o.ID)
		}
	}
}
