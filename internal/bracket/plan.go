package bracket

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// planLegs rounds every leg through the venue's filters, derives client ids
// and validates the rounded values. Nothing is sent.
func planLegs(b *Bracket, v *filters.Validator) error {
	r := b.Request
	futures := r.Venue.IsFutures()
	entryType := r.EntryType()
	exitSide := r.Side.Opposite()

	main := &Leg{Role: RoleMain, Side: r.Side, Type: entryType}
	var err error
	if entryType == exchange.OrderTypeMarket {
		main.Quantity, err = v.RoundMarketQuantity(r.Symbol, r.Quantity)
	} else {
		main.Quantity, err = v.RoundQuantity(r.Symbol, r.Quantity)
		if err == nil {
			main.Price, err = v.RoundPrice(r.Symbol, r.EntryPrice)
			main.TimeInForce = exchange.TIFGTC
		}
	}
	if err != nil {
		return err
	}
	legs := []*Leg{main}

	tpQty, err := splitQuantity(v, r.Symbol, main.Quantity, len(r.TakeProfits))
	if err != nil {
		return err
	}
	for i, tp := range r.TakeProfits {
		price, err := v.RoundPrice(r.Symbol, tp)
		if err != nil {
			return err
		}
		legs = append(legs, &Leg{
			Role:        TakeProfitRole(i + 1),
			Side:        exitSide,
			Type:        exchange.OrderTypeLimit,
			Price:       price,
			Quantity:    tpQty[i],
			ReduceOnly:  futures,
			TimeInForce: exchange.TIFGTC,
		})
	}

	stop, err := v.RoundPrice(r.Symbol, r.StopLoss)
	if err != nil {
		return err
	}
	sl := &Leg{Role: RoleSL, Side: exitSide, StopPrice: stop, Quantity: main.Quantity}
	if futures {
		sl.Type = exchange.OrderTypeStopMarket
		sl.ReduceOnly = true
		sl.WorkingType = exchange.WorkingMarkPrice
		if sl.Quantity, err = v.RoundMarketQuantity(r.Symbol, main.Quantity); err != nil {
			return err
		}
	} else {
		// No native OCO: a standalone stop-limit resting at the stop price.
		sl.Type = exchange.OrderTypeStopLossLimit
		sl.Price = stop
		sl.TimeInForce = exchange.TIFGTC
	}
	legs = append(legs, sl)

	if err := checkRoundedOrdering(r, main, legs[1:len(legs)-1], sl); err != nil {
		return err
	}
	for _, l := range legs {
		l.ClientOrderID = ClientOrderID(b.ID, l.Role, b.Timestamp)
		l.State = LegPending
		if err := checkLeg(v, r.Symbol, l); err != nil {
			return err
		}
	}
	b.Legs = legs
	return nil
}

// splitQuantity spreads total evenly across n take-profit legs, floored to
// the lot step. The last leg takes the remainder so the legs sum to total.
func splitQuantity(v *filters.Validator, symbol string, total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, n)
	if n == 1 {
		out[0] = total
		return out, nil
	}
	per, err := v.RoundQuantity(symbol, total.Div(decimal.NewFromInt(int64(n))))
	if err != nil {
		return nil, err
	}
	for i := 0; i < n-1; i++ {
		out[i] = per
	}
	out[n-1] = total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	return out, nil
}

// checkRoundedOrdering re-applies the price ordering to rounded prices; a
// coarse tick can collapse a take-profit onto the entry.
func checkRoundedOrdering(r Request, main *Leg, tps []*Leg, sl *Leg) error {
	rounded := Request{Side: r.Side, EntryPrice: main.Price, StopLoss: sl.StopPrice}
	for _, tp := range tps {
		rounded.TakeProfits = append(rounded.TakeProfits, tp.Price)
	}
	if err := validateOrdering(rounded); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: after rounding: %s", ErrFilterRejected, ve.Msg)
		}
		return err
	}
	return nil
}

func checkLeg(v *filters.Validator, symbol string, l *Leg) error {
	if !l.Quantity.IsPositive() {
		fv := &filters.FilterViolation{Symbol: symbol, FilterType: filters.TypeLotSize, Detail: "quantity rounds to zero"}
		return fmt.Errorf("%w: %s leg: %w", ErrFilterRejected, l.Role, fv)
	}
	err := v.ValidateOrder(filters.Order{
		Symbol:   symbol,
		Side:     string(l.Side),
		Type:     string(l.Type),
		Price:    l.Price,
		Quantity: l.Quantity,
		RefPrice: l.StopPrice,
	})
	var fv *filters.FilterViolation
	if errors.As(err, &fv) {
		return fmt.Errorf("%w: %s leg: %w", ErrFilterRejected, l.Role, err)
	}
	return err
}
