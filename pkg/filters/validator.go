package filters

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Warning describes an internally inconsistent filter found while building a
// snapshot. The filter is still installed.
type Warning struct {
	Symbol     string
	FilterType string
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Symbol, w.FilterType, w.Message)
}

// Snapshot is an immutable symbol -> filters index. It is never mutated after
// Build returns, so readers can hold it without locking.
type Snapshot struct {
	symbols  map[string]SymbolFilter
	loadedAt time.Time
}

// Build indexes the filters by symbol and reports min/max inconsistencies as
// warnings. Later entries for the same symbol replace earlier ones.
func Build(symbolFilters []SymbolFilter) (*Snapshot, []Warning) {
	snap := &Snapshot{
		symbols:  make(map[string]SymbolFilter, len(symbolFilters)),
		loadedAt: time.Now(),
	}
	var warnings []Warning
	for _, sf := range symbolFilters {
		if sf.Symbol == "" {
			continue
		}
		for _, f := range sf.Filters {
			if msg := consistency(f); msg != "" {
				warnings = append(warnings, Warning{Symbol: sf.Symbol, FilterType: f.Type(), Message: msg})
			}
		}
		snap.symbols[sf.Symbol] = sf
	}
	return snap, warnings
}

func consistency(f Filter) string {
	switch v := f.(type) {
	case PriceFilter:
		if v.MaxPrice.IsPositive() && v.MinPrice.GreaterThan(v.MaxPrice) {
			return fmt.Sprintf("minPrice %s > maxPrice %s", v.MinPrice, v.MaxPrice)
		}
	case LotSizeFilter:
		if v.MaxQty.IsPositive() && v.MinQty.GreaterThan(v.MaxQty) {
			return fmt.Sprintf("minQty %s > maxQty %s", v.MinQty, v.MaxQty)
		}
	case MarketLotSizeFilter:
		if v.MaxQty.IsPositive() && v.MinQty.GreaterThan(v.MaxQty) {
			return fmt.Sprintf("minQty %s > maxQty %s", v.MinQty, v.MaxQty)
		}
	}
	return ""
}

// Validator enforces and applies trading rules for one venue. The current
// snapshot sits behind an atomic pointer; Replace swaps in a fresh one.
type Validator struct {
	venue  string
	logger *zap.Logger
	snap   atomic.Pointer[Snapshot]
}

// NewValidator returns an empty validator. Every lookup fails with
// ErrUnknownSymbol until Replace is called.
func NewValidator(venue string, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{venue: venue, logger: logger}
	v.snap.Store(&Snapshot{symbols: map[string]SymbolFilter{}})
	return v
}

// Venue returns the venue this validator serves.
func (v *Validator) Venue() string { return v.venue }

// Replace builds a new snapshot and swaps it in. Consistency warnings are
// logged and returned, never fatal.
func (v *Validator) Replace(symbolFilters []SymbolFilter) []Warning {
	snap, warnings := Build(symbolFilters)
	for _, w := range warnings {
		v.logger.Warn("inconsistent exchange filter",
			zap.String("venue", v.venue),
			zap.String("symbol", w.Symbol),
			zap.String("filter", w.FilterType),
			zap.String("detail", w.Message))
	}
	v.snap.Store(snap)
	return warnings
}

// Len returns the number of symbols in the current snapshot.
func (v *Validator) Len() int { return len(v.snap.Load().symbols) }

// LoadedAt returns when the current snapshot was built; zero before the
// first Replace.
func (v *Validator) LoadedAt() time.Time { return v.snap.Load().loadedAt }

// Symbol returns the filter set registered for symbol.
func (v *Validator) Symbol(symbol string) (SymbolFilter, bool) {
	sf, ok := v.snap.Load().symbols[symbol]
	return sf, ok
}

// ValidateOrder runs every filter for the order's symbol in registration
// order and returns the first violation.
func (v *Validator) ValidateOrder(o Order) error {
	sf, ok := v.Symbol(o.Symbol)
	if !ok {
		return unknownSymbol(o.Symbol)
	}
	for _, f := range sf.Filters {
		if err := f.Validate(o); err != nil {
			return &FilterViolation{Symbol: o.Symbol, FilterType: f.Type(), Detail: err.Error()}
		}
	}
	return nil
}

// RoundPrice floors price to the symbol's tick size. Without a tick size the
// price passes through unchanged.
func (v *Validator) RoundPrice(symbol string, price decimal.Decimal) (decimal.Decimal, error) {
	sf, ok := v.Symbol(symbol)
	if !ok {
		return decimal.Zero, unknownSymbol(symbol)
	}
	for _, f := range sf.Filters {
		if pf, ok := f.(PriceFilter); ok {
			return floorTo(price, pf.TickSize), nil
		}
	}
	return price, nil
}

// RoundQuantity floors qty to the symbol's LOT_SIZE step.
func (v *Validator) RoundQuantity(symbol string, qty decimal.Decimal) (decimal.Decimal, error) {
	sf, ok := v.Symbol(symbol)
	if !ok {
		return decimal.Zero, unknownSymbol(symbol)
	}
	for _, f := range sf.Filters {
		if lf, ok := f.(LotSizeFilter); ok {
			return floorTo(qty, lf.StepSize), nil
		}
	}
	return qty, nil
}

// RoundMarketQuantity floors qty to the least common multiple of the
// MARKET_LOT_SIZE and LOT_SIZE steps so the result is legal for both filters.
func (v *Validator) RoundMarketQuantity(symbol string, qty decimal.Decimal) (decimal.Decimal, error) {
	sf, ok := v.Symbol(symbol)
	if !ok {
		return decimal.Zero, unknownSymbol(symbol)
	}
	var step decimal.Decimal
	for _, f := range sf.Filters {
		switch lf := f.(type) {
		case MarketLotSizeFilter:
			step = lcmStep(step, lf.StepSize)
		case LotSizeFilter:
			step = lcmStep(step, lf.StepSize)
		}
	}
	return floorTo(qty, step), nil
}

// lcmStep returns the smallest positive multiple of both steps. A
// non-positive step means "no constraint" and yields the other one.
func lcmStep(a, b decimal.Decimal) decimal.Decimal {
	if !a.IsPositive() {
		return b
	}
	if !b.IsPositive() {
		return a
	}
	exp := min(a.Exponent(), b.Exponent())
	ai := a.Shift(-exp).BigInt()
	bi := b.Shift(-exp).BigInt()
	g := new(big.Int).GCD(nil, nil, ai, bi)
	l := new(big.Int).Mul(new(big.Int).Quo(ai, g), bi)
	return decimal.NewFromBigInt(l, exp)
}

// floorTo rounds a non-negative value down to a multiple of step. Negative
// values and non-positive steps pass through.
func floorTo(value, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() || value.IsNegative() {
		return value
	}
	return value.Sub(value.Mod(step))
}
