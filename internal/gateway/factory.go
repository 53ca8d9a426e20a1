package gateway

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/SubhajL/online-trading-sub002/pkg/config"
	exfutusdt "github.com/SubhajL/online-trading-sub002/pkg/exchanges/binance/futures_usdt"
	exspot "github.com/SubhajL/online-trading-sub002/pkg/exchanges/binance/spot"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/exchanges/paper"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// Build creates a Gateway for every enabled venue. In dry-run mode each
// venue is a paper exchange fed from the seed file.
func Build(cfg *config.Config, logger *zap.Logger) ([]exchange.Gateway, error) {
	var seed []filters.SymbolFilter
	if cfg.DryRun {
		var err error
		seed, err = filters.LoadSeedFile(cfg.FilterSeedFile)
		if err != nil {
			return nil, err
		}
	}

	var out []exchange.Gateway
	if cfg.EnableSpot {
		out = append(out, buildVenue(cfg, exchange.MarketSpot, seed, logger))
	}
	if cfg.EnableUSDTFutures {
		out = append(out, buildVenue(cfg, exchange.MarketUSDTFut, seed, logger))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no venue enabled")
	}
	return out, nil
}

func buildVenue(cfg *config.Config, venue exchange.MarketType, seed []filters.SymbolFilter, logger *zap.Logger) exchange.Gateway {
	log := logger.With(zap.String("venue", string(venue)))
	if cfg.DryRun {
		return paper.New(paper.Config{
			Market:       venue,
			Filters:      seed,
			LatencyMinMs: cfg.DryRunGwLatencyMinMs,
			LatencyMaxMs: cfg.DryRunGwLatencyMaxMs,
		}, log)
	}
	switch venue {
	case exchange.MarketUSDTFut:
		return exfutusdt.NewClient(exfutusdt.Config{
			APIKey:    cfg.BinanceUSDTKey,
			APISecret: cfg.BinanceUSDTSecret,
			Testnet:   cfg.BinanceTestnet,
		}, log)
	default:
		return exspot.New(exspot.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.BinanceTestnet,
		}, log)
	}
}
