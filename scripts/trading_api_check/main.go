package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/internal/gateway"
	"github.com/SubhajL/online-trading-sub002/pkg/config"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// trading_api_check exercises the signed Binance calls the gateway depends
// on, one enabled venue at a time.
//
// Usage (use testnet or an empty account first):
//
//   go run ./scripts/trading_api_check
//
// Keys and venue switches are the gateway's own (.env):
//   BINANCE_API_KEY / BINANCE_API_SECRET
//   BINANCE_USDT_KEY / BINANCE_USDT_SECRET
//   ENABLE_SPOT / ENABLE_USDT_FUTURES / BINANCE_TESTNET
//
// Script switches:
//   TRADING_CHECK_PLACE_ORDERS  (default "false")
//        false: exchangeInfo, position and cancel-all only
//        true : also rests a LIMIT BUY at CHECK_LIMIT_PRICE and cancels it
//   CHECK_SYMBOL                (default "BTCUSDT")
//   CHECK_LIMIT_PRICE           price far below market, required to place
//   CHECK_QTY                   (default: smallest quantity meeting the filters)

func main() {
	log.Println("=== Trading API check starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.DryRun {
		log.Fatal("DRY_RUN=true: nothing to check against Binance")
	}

	placeOrders := getenv("TRADING_CHECK_PLACE_ORDERS", "false") == "true"
	symbol := getenv("CHECK_SYMBOL", "BTCUSDT")
	log.Printf("Config: testnet=%v placeOrders=%v symbol=%s", cfg.BinanceTestnet, placeOrders, symbol)

	logger := zap.NewNop()
	gateways, err := gateway.Build(cfg, logger)
	if err != nil {
		log.Fatalf("build gateways: %v", err)
	}
	for _, gw := range gateways {
		if ts, ok := gw.(interface{ TimeSync() *exchange.TimeSync }); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := ts.TimeSync().Sync(ctx); err != nil {
				log.Printf("[%s] time sync error: %v", gw.Market(), err)
			} else {
				log.Printf("[%s] server time offset=%dms", gw.Market(), ts.TimeSync().Offset())
			}
			cancel()
		}
		check(gw, symbol, placeOrders)
	}

	log.Println("=== Trading API check finished ===")
}

func check(gw exchange.Gateway, symbol string, placeOrders bool) {
	venue := gw.Market()
	log.Printf("---- [%s] Checking trading API ----", venue)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info, err := gw.ExchangeInfo(ctx)
	if err != nil {
		log.Printf("[%s] ExchangeInfo error: %v", venue, err)
		return
	}
	v := filters.NewValidator(string(venue), nil)
	warnings := v.Replace(info)
	log.Printf("[%s] ExchangeInfo OK symbols=%d warnings=%d", venue, v.Len(), len(warnings))

	sf, ok := v.Symbol(symbol)
	if !ok {
		log.Printf("[%s] %s is not listed, skipping symbol checks", venue, symbol)
		return
	}
	for _, f := range sf.Filters {
		log.Printf("[%s] %s %s %+v", venue, symbol, f.Type(), f)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	pos, err := gw.Position(ctx2, symbol, sf.BaseAsset)
	if err != nil {
		log.Printf("[%s] Position error: %v", venue, err)
	} else {
		log.Printf("[%s] Position %s=%s", venue, symbol, pos)
	}

	ctx3, cancel3 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel3()
	if err := gw.CancelAllOpenOrders(ctx3, symbol); err != nil {
		log.Printf("[%s] CancelAllOpenOrders error: %v", venue, err)
	} else {
		log.Printf("[%s] CancelAllOpenOrders OK", venue)
	}

	if !placeOrders {
		log.Printf("[%s] Skip placing/canceling orders (TRADING_CHECK_PLACE_ORDERS=false)", venue)
		return
	}
	price, err := decimal.NewFromString(os.Getenv("CHECK_LIMIT_PRICE"))
	if err != nil || !price.IsPositive() {
		log.Printf("[%s] CHECK_LIMIT_PRICE not set, skipping order placement", venue)
		return
	}
	price, _ = v.RoundPrice(symbol, price)
	qty := testQuantity(v, sf, price)

	order := filters.Order{Symbol: symbol, Side: string(exchange.SideBuy), Type: string(exchange.OrderTypeLimit), Price: price, Quantity: qty}
	if err := v.ValidateOrder(order); err != nil {
		log.Printf("[%s] test order fails local filters, not sending: %v", venue, err)
		return
	}

	ctx4, cancel4 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel4()
	req := exchange.OrderRequest{
		Symbol:      symbol,
		Side:        exchange.SideBuy,
		Type:        exchange.OrderTypeLimit,
		Qty:         qty,
		Price:       price,
		TimeInForce: exchange.TIFGTC,
	}
	log.Printf("[%s] Submitting test LIMIT BUY %s qty=%s price=%s", venue, symbol, qty, price)
	res, err := gw.SubmitOrder(ctx4, req)
	if err != nil {
		log.Printf("[%s] SubmitOrder returned error (acceptable for test, e.g. insufficient balance): %v", venue, err)
		return
	}
	log.Printf("[%s] SubmitOrder OK exch_id=%s client_id=%s status=%s", venue, res.ExchangeOrderID, res.ClientID, res.Status)

	ctx5, cancel5 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel5()
	if err := gw.CancelOrder(ctx5, symbol, res.ExchangeOrderID); err != nil {
		log.Printf("[%s] CancelOrder error (may be filled already): %v", venue, err)
	} else {
		log.Printf("[%s] CancelOrder OK", venue)
	}
}

// testQuantity honors CHECK_QTY when set; otherwise it picks the smallest
// lot that clears the minimum notional at price.
func testQuantity(v *filters.Validator, sf filters.SymbolFilter, price decimal.Decimal) decimal.Decimal {
	if q, err := decimal.NewFromString(os.Getenv("CHECK_QTY")); err == nil && q.IsPositive() {
		rounded, _ := v.RoundQuantity(sf.Symbol, q)
		return rounded
	}
	var qty, step, notional decimal.Decimal
	for _, f := range sf.Filters {
		switch f := f.(type) {
		case filters.LotSizeFilter:
			qty, step = f.MinQty, f.StepSize
		case filters.MinNotionalFilter:
			notional = f.MinNotional
		}
	}
	if notional.IsPositive() && price.IsPositive() {
		need := notional.Div(price)
		if step.IsPositive() {
			need = need.Div(step).Ceil().Mul(step)
		}
		if need.GreaterThan(qty) {
			qty = need
		}
	}
	return qty
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
