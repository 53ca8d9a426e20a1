package main

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/internal/bracket"
	"github.com/SubhajL/online-trading-sub002/internal/events"
	"github.com/SubhajL/online-trading-sub002/internal/gateway"
	"github.com/SubhajL/online-trading-sub002/pkg/config"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/paper"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// dry_run_demo walks a few bracket flows through the orchestrator against
// paper venues. It never talks to Binance and writes nothing to disk.
//
// Usage:
//   go run ./scripts/dry_run_demo
//
// Filters come from FILTER_SEED_FILE, falling back to filters.example.yaml.
// It will:
//   1) Place a spot LIMIT bracket with two take profits.
//   2) Place a bracket whose quantity breaks LOT_SIZE and show the rejection.
//   3) Open a USDT-M short bracket, then flatten it with CloseAll.

func main() {
	log.Println("=== DRY-RUN demo starting ===")

	seedPath := "filters.example.yaml"
	if cfg, err := config.Load(); err == nil && cfg.FilterSeedFile != "" {
		seedPath = cfg.FilterSeedFile
	}
	seed, err := filters.LoadSeedFile(seedPath)
	if err != nil {
		log.Fatalf("load filter seed: %v", err)
	}

	logger := zap.NewNop()
	ctx := context.Background()

	spot := paper.New(paper.Config{
		Market:          exchange.MarketSpot,
		Filters:         seed,
		InitialBalances: map[string]decimal.Decimal{"USDT": decimal.NewFromInt(10000)},
	}, logger)
	futures := paper.New(paper.Config{Market: exchange.MarketUSDTFut, Filters: seed}, logger)

	router := gateway.NewRouter(gateway.DefaultConfig(), logger)
	router.Register(spot)
	router.Register(futures)

	rules := make(map[exchange.MarketType]*filters.Validator)
	for _, venue := range router.Venues() {
		v := filters.NewValidator(string(venue), logger)
		if warnings := v.Replace(seed); len(warnings) > 0 {
			log.Printf("[%s] %d filter warnings, first: %s", venue, len(warnings), warnings[0])
		}
		rules[venue] = v
	}

	bus := events.NewBus()
	updates, unsubscribe := bus.Subscribe(events.EventOrderUpdate, 256)
	defer unsubscribe()
	go func() {
		for msg := range updates {
			if u, ok := msg.(events.OrderUpdate); ok {
				log.Printf("  [EVENT] %-8s %-24s %s", u.Role, u.ClientOrderID, u.Status)
			}
		}
	}()

	svc := bracket.NewService(router, rules, events.BusSink{Bus: bus}, bracket.DefaultConfig(), logger)

	log.Println("[SCENARIO 1] Spot LIMIT bracket on BTCUSDT")
	place(ctx, svc, bracket.Request{
		Symbol:      "BTCUSDT",
		Side:        exchange.SideBuy,
		Quantity:    decimal.RequireFromString("0.01"),
		EntryPrice:  decimal.RequireFromString("60000"),
		TakeProfits: []decimal.Decimal{decimal.RequireFromString("61500.005"), decimal.RequireFromString("63000")},
		StopLoss:    decimal.RequireFromString("58800"),
		Venue:       exchange.MarketSpot,
	})

	log.Println("[SCENARIO 2] Quantity below LOT_SIZE minimum")
	place(ctx, svc, bracket.Request{
		Symbol:      "BTCUSDT",
		Side:        exchange.SideBuy,
		Quantity:    decimal.RequireFromString("0.000001"),
		EntryPrice:  decimal.RequireFromString("60000"),
		TakeProfits: []decimal.Decimal{decimal.RequireFromString("61000")},
		StopLoss:    decimal.RequireFromString("59000"),
		Venue:       exchange.MarketSpot,
	})

	log.Println("[SCENARIO 3] USDT-M short on ETHUSDT, then CloseAll")
	place(ctx, svc, bracket.Request{
		Symbol:      "ETHUSDT",
		Side:        exchange.SideSell,
		Quantity:    decimal.RequireFromString("0.5"),
		TakeProfits: []decimal.Decimal{decimal.RequireFromString("2900")},
		StopLoss:    decimal.RequireFromString("3300"),
		Venue:       exchange.MarketUSDTFut,
	})
	res, err := svc.CloseAll(ctx, exchange.MarketUSDTFut, "ETHUSDT")
	if err != nil {
		log.Printf("  close all failed: %v", err)
	} else {
		log.Printf("  flattened with %s %s (order %s, %s)", res.Side, res.Quantity, res.OrderID, res.Status)
	}

	// Let the event printer drain.
	time.Sleep(100 * time.Millisecond)

	for _, ex := range []*paper.Exchange{spot, futures} {
		log.Printf("[%s] paper orders:", ex.Market())
		for _, o := range ex.Orders() {
			log.Printf("  #%d %-24s %-4s %-17s qty=%s %s",
				o.ID, o.Request.ClientID, o.Request.Side, o.Request.Type, o.Request.Qty, o.Status)
		}
	}
	log.Println("=== DRY-RUN demo finished ===")
}

func place(ctx context.Context, svc *bracket.Service, req bracket.Request) {
	b, err := svc.Place(ctx, req)
	if err != nil {
		log.Printf("  result: %v", err)
	}
	if b == nil {
		return
	}
	log.Printf("  bracket %s", b.ID)
	for _, l := range b.Legs {
		line := "  " + string(l.Role) + " " + string(l.State) + " " + l.ClientOrderID + " qty=" + l.Quantity.String()
		if !l.Price.IsZero() {
			line += " price=" + l.Price.String()
		}
		if !l.StopPrice.IsZero() {
			line += " stop=" + l.StopPrice.String()
		}
		if l.Reason != "" {
			line += " (" + l.Reason + ")"
		}
		log.Println(line)
	}
}
