package filters

import (
	"os"
	"path/filepath"
	"testing"
)

const seedYAML = `
symbols:
  - symbol: BTCUSDT
    base_asset: BTC
    quote_asset: USDT
    price: {min: "0.01", max: "1000000", tick: "0.01"}
    lot_size: {min: "0.00001", max: "9000", step: "0.00001"}
    market_lot_size: {max: "100", step: "0.00001"}
    min_notional: {value: "5", apply_to_market: true, avg_price_mins: 5}
  - symbol: ETHUSDT
    lot_size: {step: "0.0001"}
`

func TestParseSeed(t *testing.T) {
	sfs, err := ParseSeed([]byte(seedYAML))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(sfs) != 2 {
		t.Fatalf("len=%d, expected 2", len(sfs))
	}

	btc := sfs[0]
	if btc.BaseAsset != "BTC" || btc.QuoteAsset != "USDT" {
		t.Fatalf("assets=%s/%s", btc.BaseAsset, btc.QuoteAsset)
	}
	wantTypes := []string{TypePrice, TypeLotSize, TypeMarketLotSize, TypeMinNotional}
	if len(btc.Filters) != len(wantTypes) {
		t.Fatalf("filters=%d, expected %d", len(btc.Filters), len(wantTypes))
	}
	for i, f := range btc.Filters {
		if f.Type() != wantTypes[i] {
			t.Fatalf("filter[%d]=%s, expected %s", i, f.Type(), wantTypes[i])
		}
	}
	mls := btc.Filters[2].(MarketLotSizeFilter)
	if !mls.MinQty.IsZero() || !mls.MaxQty.Equal(d("100")) {
		t.Fatalf("market lot size=%+v", mls)
	}
	mn := btc.Filters[3].(MinNotionalFilter)
	if !mn.MinNotional.Equal(d("5")) || !mn.ApplyToMarket || mn.AvgPriceMins != 5 {
		t.Fatalf("min notional=%+v", mn)
	}

	if len(sfs[1].Filters) != 1 || sfs[1].Filters[0].Type() != TypeLotSize {
		t.Fatalf("ETHUSDT filters=%+v", sfs[1].Filters)
	}
}

func TestParseSeedErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed yaml", "symbols: [\n"},
		{"missing symbol", "symbols:\n  - price: {tick: \"0.01\"}\n"},
		{"bad decimal", "symbols:\n  - symbol: X\n    price: {tick: \"abc\"}\n"},
		{"bad notional", "symbols:\n  - symbol: X\n    min_notional: {value: \"1.2.3\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSeed([]byte(tt.raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	sfs, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(sfs) != 2 {
		t.Fatalf("len=%d, expected 2", len(sfs))
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
