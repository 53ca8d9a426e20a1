package filters

import (
	"errors"
	"fmt"
)

// ErrUnknownSymbol is returned when no filter set is registered for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// FilterViolation is the first filter an order failed, tagged with the
// filter type.
type FilterViolation struct {
	Symbol     string
	FilterType string
	Detail     string
}

func (v *FilterViolation) Error() string {
	return fmt.Sprintf("%s violation for %s: %s", v.FilterType, v.Symbol, v.Detail)
}

func unknownSymbol(symbol string) error {
	return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
}
