package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/internal/api"
	"github.com/SubhajL/online-trading-sub002/internal/bracket"
	"github.com/SubhajL/online-trading-sub002/internal/events"
	"github.com/SubhajL/online-trading-sub002/internal/gateway"
	"github.com/SubhajL/online-trading-sub002/internal/monitor"
	"github.com/SubhajL/online-trading-sub002/internal/stream"
	"github.com/SubhajL/online-trading-sub002/pkg/config"
	"github.com/SubhajL/online-trading-sub002/pkg/db"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
	"github.com/SubhajL/online-trading-sub002/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
	logger.Info("gateway stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bracket gateway",
		zap.String("version", version),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Bool("testnet", cfg.BinanceTestnet),
		zap.Strings("event_sinks", cfg.EventSinks))

	bus := events.NewBus()
	metrics := monitor.NewMetrics(bus.Dropped)

	// Venues
	gateways, err := gateway.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("build gateways: %w", err)
	}
	routerCfg := gateway.DefaultConfig()
	routerCfg.Timeout = cfg.ExchangeTimeout
	routerCfg.RPS = cfg.ExchangeRPS
	router := gateway.NewRouter(routerCfg, logger)
	router.Observe(func(venue exchange.MarketType, op string, took time.Duration, err error) {
		metrics.ObserveCall(string(venue), op, took, err)
	})
	for _, gw := range gateways {
		router.Register(gw)
		if ts, ok := gw.(interface{ TimeSync() *exchange.TimeSync }); ok && !cfg.DryRun {
			ts.TimeSync().Start(ctx)
		}
	}

	// Symbol filters: the gateway refuses to start without rules.
	rules := make(map[exchange.MarketType]*filters.Validator)
	for _, venue := range router.Venues() {
		v := filters.NewValidator(string(venue), logger)
		refresher := &filters.Refresher{
			Validator: v,
			Source:    router.FilterSource(venue),
			Interval:  cfg.FilterRefreshInterval,
			Timeout:   cfg.ExchangeTimeout,
			Logger:    logger.With(zap.String("component", "filters")),
			Observe: func(venue string, symbols int, err error) {
				metrics.ObserveRefresh(venue, symbols, err)
				ev := events.FilterReload{Venue: venue, Symbols: symbols}
				if err != nil {
					ev.Error = err.Error()
				}
				bus.Publish(events.EventFilterReload, ev)
			},
		}
		if err := refresher.Start(ctx); err != nil {
			return err
		}
		rules[venue] = v
	}

	// Event sinks
	sink, journal, closeSinks, err := buildSinks(cfg, bus, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	// Orchestrator
	svc := bracket.NewService(router, rules, sink, bracket.Config{
		Timeout:         cfg.ExchangeTimeout,
		MaxRetries:      cfg.ExchangeMaxRetries,
		RetryBaseDelay:  cfg.ExchangeRetryBaseDelay,
		RetryMaxDelay:   cfg.ExchangeRetryMaxDelay,
		ExitParallelism: cfg.ExitLegParallelism,
	}, logger)
	svc.Observe(func(venue exchange.MarketType, role bracket.Role, state bracket.LegState, took time.Duration) {
		metrics.ObserveLeg(string(venue), string(role), string(state), took)
	})

	// Exchange-side order updates
	if cfg.EnableUserStream && !cfg.DryRun {
		for _, venue := range router.Venues() {
			gw, err := router.Gateway(venue)
			if err != nil {
				return err
			}
			client, ok := gw.(stream.ListenKeyClient)
			if !ok {
				continue
			}
			l := &stream.Listener{Venue: venue, Client: client, Sink: sink, Logger: logger}
			go func() {
				if err := l.Run(ctx); err != nil {
					logger.Error("user stream stopped", zap.String("venue", string(venue)), zap.Error(err))
				}
			}()
		}
	}

	(&monitor.Monitor{
		Bus:     bus,
		Alerts:  monitor.LogAlertSink{Logger: logger.With(zap.String("component", "alerts"))},
		Metrics: metrics,
		Logger:  logger,
	}).Start(ctx)

	venues := make([]string, 0, len(rules))
	for _, venue := range router.Venues() {
		venues = append(venues, string(venue))
	}
	server := api.NewServer(api.Options{
		Orders:         svc,
		Validators:     rules,
		Bus:            bus,
		Journal:        journal,
		Metrics:        metrics,
		Logger:         logger,
		Meta:           api.SystemMeta{DryRun: cfg.DryRun, Venues: venues, Version: version},
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err := server.Start(ctx, ":"+cfg.Port); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

// buildSinks assembles the sinks named in EVENT_SINK. The journal is returned
// separately for the lookup endpoint; it is nil unless "journal" is listed.
func buildSinks(cfg *config.Config, bus *events.Bus, logger *zap.Logger) (events.Sink, *db.Journal, func(), error) {
	var (
		sinks    events.MultiSink
		journal  *db.Journal
		database *db.Database
	)
	for _, name := range cfg.EventSinks {
		switch name {
		case "log":
			sinks = append(sinks, events.LogSink{Logger: logger.With(zap.String("component", "events"))})
		case "bus":
			sinks = append(sinks, events.BusSink{Bus: bus})
		case "webhook":
			sinks = append(sinks, events.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout))
		case "journal":
			var err error
			database, err = db.New(cfg.JournalDBPath)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("open journal: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				_ = database.Close()
				return nil, nil, nil, fmt.Errorf("migrate journal: %w", err)
			}
			journal = database.Journal()
			sinks = append(sinks, events.JournalSink{Journal: journal})
		}
	}
	closeFn := func() {
		if database != nil {
			_ = database.Close()
		}
	}
	if len(sinks) == 0 {
		return events.Nop, journal, closeFn, nil
	}
	return sinks, journal, closeFn, nil
}
