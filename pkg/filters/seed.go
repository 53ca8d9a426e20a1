package filters

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a static filter set:
//
//	symbols:
//	  - symbol: BTCUSDT
//	    base_asset: BTC
//	    quote_asset: USDT
//	    price: {min: "0.01", max: "1000000", tick: "0.01"}
//	    lot_size: {min: "0.00001", max: "9000", step: "0.00001"}
//	    market_lot_size: {min: "0", max: "100", step: "0.00001"}
//	    min_notional: {value: "5", apply_to_market: true}
type seedFile struct {
	Symbols []seedSymbol `yaml:"symbols"`
}

type seedSymbol struct {
	Symbol        string     `yaml:"symbol"`
	BaseAsset     string     `yaml:"base_asset"`
	QuoteAsset    string     `yaml:"quote_asset"`
	Price         *seedRange `yaml:"price"`
	LotSize       *seedRange `yaml:"lot_size"`
	MarketLotSize *seedRange `yaml:"market_lot_size"`
	MinNotional   *struct {
		Value         string `yaml:"value"`
		ApplyToMarket bool   `yaml:"apply_to_market"`
		AvgPriceMins  int    `yaml:"avg_price_mins"`
	} `yaml:"min_notional"`
}

type seedRange struct {
	Min  string `yaml:"min"`
	Max  string `yaml:"max"`
	Tick string `yaml:"tick"`
	Step string `yaml:"step"`
}

// LoadSeedFile reads a YAML filter set from disk.
func LoadSeedFile(path string) ([]SymbolFilter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter seed: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes a YAML filter set. Filters are registered in the order
// price, lot size, market lot size, min notional.
func ParseSeed(raw []byte) ([]SymbolFilter, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse filter seed: %w", err)
	}
	out := make([]SymbolFilter, 0, len(f.Symbols))
	for _, s := range f.Symbols {
		if s.Symbol == "" {
			return nil, fmt.Errorf("parse filter seed: entry without symbol")
		}
		sf := SymbolFilter{Symbol: s.Symbol, BaseAsset: s.BaseAsset, QuoteAsset: s.QuoteAsset}
		if s.Price != nil {
			min, max, tick, err := s.Price.parse(s.Symbol, "price", s.Price.Tick)
			if err != nil {
				return nil, err
			}
			sf.Filters = append(sf.Filters, PriceFilter{MinPrice: min, MaxPrice: max, TickSize: tick})
		}
		if s.LotSize != nil {
			min, max, step, err := s.LotSize.parse(s.Symbol, "lot_size", s.LotSize.Step)
			if err != nil {
				return nil, err
			}
			sf.Filters = append(sf.Filters, LotSizeFilter{MinQty: min, MaxQty: max, StepSize: step})
		}
		if s.MarketLotSize != nil {
			min, max, step, err := s.MarketLotSize.parse(s.Symbol, "market_lot_size", s.MarketLotSize.Step)
			if err != nil {
				return nil, err
			}
			sf.Filters = append(sf.Filters, MarketLotSizeFilter{MinQty: min, MaxQty: max, StepSize: step})
		}
		if s.MinNotional != nil {
			v, err := parseDecimal(s.MinNotional.Value)
			if err != nil {
				return nil, fmt.Errorf("parse filter seed %s min_notional: %w", s.Symbol, err)
			}
			sf.Filters = append(sf.Filters, MinNotionalFilter{
				MinNotional:   v,
				ApplyToMarket: s.MinNotional.ApplyToMarket,
				AvgPriceMins:  s.MinNotional.AvgPriceMins,
			})
		}
		out = append(out, sf)
	}
	return out, nil
}

func (r *seedRange) parse(symbol, name, increment string) (min, max, inc decimal.Decimal, err error) {
	if min, err = parseDecimal(r.Min); err != nil {
		return min, max, inc, fmt.Errorf("parse filter seed %s %s.min: %w", symbol, name, err)
	}
	if max, err = parseDecimal(r.Max); err != nil {
		return min, max, inc, fmt.Errorf("parse filter seed %s %s.max: %w", symbol, name, err)
	}
	if inc, err = parseDecimal(increment); err != nil {
		return min, max, inc, fmt.Errorf("parse filter seed %s %s increment: %w", symbol, name, err)
	}
	return min, max, inc, nil
}

// parseDecimal treats an empty string as zero (bound disabled).
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
