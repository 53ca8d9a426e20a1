package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SubhajL/online-trading-sub002/internal/bracket"
	"github.com/SubhajL/online-trading-sub002/internal/gateway"
	"github.com/SubhajL/online-trading-sub002/pkg/db"
	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

type placeBracketRequest struct {
	Symbol           string            `json:"symbol"`
	Side             string            `json:"side"`
	Quantity         decimal.Decimal   `json:"quantity"`
	EntryPrice       decimal.Decimal   `json:"entry_price"`
	OrderType        string            `json:"order_type"`
	TakeProfitPrices []decimal.Decimal `json:"take_profit_prices"`
	StopLossPrice    decimal.Decimal   `json:"stop_loss_price"`
	IsFutures        bool              `json:"is_futures"`
	Venue            string            `json:"venue"` // overrides is_futures when set
}

type cancelRequest struct {
	Symbol    string  `json:"symbol"`
	OrderID   orderID `json:"order_id"`
	IsFutures bool    `json:"is_futures"`
	Venue     string  `json:"venue"`
}

type closeAllRequest struct {
	Symbol    string `json:"symbol"`
	IsFutures bool   `json:"is_futures"`
	Venue     string `json:"venue"`
}

// orderID accepts the exchange order id as a JSON string or number.
type orderID string

func (o *orderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = orderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order_id must be a string or integer")
	}
	*o = orderID(n.String())
	return nil
}

type clientOrderIDs struct {
	Main        string   `json:"main"`
	TakeProfits []string `json:"take_profits"`
	StopLoss    string   `json:"stop_loss"`
}

type bracketResponse struct {
	BracketOrderID string          `json:"bracket_order_id"`
	ClientOrderIDs clientOrderIDs  `json:"client_order_ids"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	CreatedAt      time.Time       `json:"created_at"`
	Legs           []*bracket.Leg  `json:"legs"`
	Error          string          `json:"error,omitempty"`
	FailedLegs     []bracket.Role  `json:"failed_legs,omitempty"`
}

func newBracketResponse(b *bracket.Bracket) bracketResponse {
	resp := bracketResponse{
		BracketOrderID: b.ID,
		Symbol:         b.Request.Symbol,
		Side:           string(b.Request.Side),
		Quantity:       b.Request.Quantity,
		CreatedAt:      b.CreatedAt,
		Legs:           b.Legs,
	}
	if m := b.Main(); m != nil {
		resp.ClientOrderIDs.Main = m.ClientOrderID
		resp.Quantity = m.Quantity
	}
	resp.ClientOrderIDs.TakeProfits = make([]string, 0, len(b.Legs))
	for _, tp := range b.TakeProfits() {
		resp.ClientOrderIDs.TakeProfits = append(resp.ClientOrderIDs.TakeProfits, tp.ClientOrderID)
	}
	if sl := b.StopLoss(); sl != nil {
		resp.ClientOrderIDs.StopLoss = sl.ClientOrderID
	}
	return resp
}

// journalEntry is the wire form of a journaled order update.
type journalEntry struct {
	BracketOrderID string    `json:"bracket_order_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	Venue          string    `json:"venue"`
	Symbol         string    `json:"symbol"`
	OrderID        string    `json:"order_id,omitempty"`
	ClientOrderID  string    `json:"client_order_id"`
	Status         string    `json:"status"`
	Side           string    `json:"side"`
	OrderType      string    `json:"order_type"`
	Price          string    `json:"price"`
	Quantity       string    `json:"quantity"`
	ExecutedQty    string    `json:"executed_qty"`
	UpdateTime     int64     `json:"update_time"`
	Reason         string    `json:"reason,omitempty"`
	Source         string    `json:"source"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// classify maps an orchestrator error to an HTTP status and error code.
// Anything unrecognised came back from a venue and is reported as 502.
func classify(err error) (int, string) {
	var (
		verr    *bracket.ValidationError
		terr    *bracket.TimeoutError
		fv      *filters.FilterViolation
		partial *bracket.PartialBracketFailure
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.As(err, &partial):
		return http.StatusMultiStatus, "PARTIAL_BRACKET"
	case exchange.IsInsufficientBalance(err):
		return http.StatusBadRequest, "INSUFFICIENT_BALANCE"
	case errors.Is(err, bracket.ErrFilterRejected), errors.As(err, &fv):
		return http.StatusBadRequest, "FILTER_REJECTED"
	case errors.Is(err, filters.ErrUnknownSymbol):
		return http.StatusBadRequest, "UNKNOWN_SYMBOL"
	case errors.Is(err, bracket.ErrVenueDisabled), errors.Is(err, gateway.ErrVenueNotConfigured):
		return http.StatusBadRequest, "VENUE_DISABLED"
	case errors.Is(err, bracket.ErrNothingToClose):
		return http.StatusConflict, "NOTHING_TO_CLOSE"
	case errors.As(err, &terr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, gateway.ErrGatewayUnhealthy):
		return http.StatusServiceUnavailable, "VENUE_UNAVAILABLE"
	default:
		return http.StatusBadGateway, "EXCHANGE_ERROR"
	}
}

// resolveVenue prefers an explicit venue name over the is_futures flag.
func resolveVenue(name string, isFutures bool) (exchange.MarketType, error) {
	if name != "" {
		v, ok := bracket.ParseVenue(name)
		if !ok {
			return "", &bracket.ValidationError{Msg: "unsupported venue: " + name}
		}
		return v, nil
	}
	if isFutures {
		return exchange.MarketUSDTFut, nil
	}
	return exchange.MarketSpot, nil
}

func (r placeBracketRequest) toRequest() (bracket.Request, error) {
	venue, err := resolveVenue(r.Venue, r.IsFutures)
	if err != nil {
		return bracket.Request{}, err
	}
	return bracket.Request{
		Symbol:      strings.ToUpper(strings.TrimSpace(r.Symbol)),
		Side:        exchange.Side(strings.ToUpper(strings.TrimSpace(r.Side))),
		Quantity:    r.Quantity,
		EntryPrice:  r.EntryPrice,
		OrderType:   exchange.OrderType(strings.ToUpper(strings.TrimSpace(r.OrderType))),
		TakeProfits: r.TakeProfitPrices,
		StopLoss:    r.StopLossPrice,
		Venue:       venue,
	}, nil
}

func bindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid bracket request: "+err.Error())
}

// placeBracket handles POST /place_bracket.
func (s *Server) placeBracket(c *gin.Context) {
	var body placeBracketRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	start := time.Now()
	b, err := s.orders.Place(c.Request.Context(), req)
	status, code := http.StatusOK, ""
	if err != nil {
		status, code = classify(err)
	}
	s.observeBracket(req.Venue, status, time.Since(start))

	var partial *bracket.PartialBracketFailure
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newBracketResponse(b))
	case errors.As(err, &partial):
		resp := newBracketResponse(partial.Bracket)
		resp.Error = err.Error()
		resp.FailedLegs = partial.Failed
		c.JSON(http.StatusMultiStatus, resp)
	default:
		_ = c.Error(err)
		msg := err.Error()
		if code == "INSUFFICIENT_BALANCE" {
			msg = "insufficient balance for quantity: " + req.Quantity.String()
		}
		out := gin.H{"code": code, "error": msg}
		if b != nil {
			out["bracket_order_id"] = b.ID
		}
		c.JSON(status, out)
	}
}

func (s *Server) observeBracket(venue exchange.MarketType, status int, took time.Duration) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case status == http.StatusMultiStatus:
		result = "partial"
	case status >= 500:
		result = "error"
	case status >= 400:
		result = "rejected"
	}
	s.metrics.ObserveBracket(string(venue), result, took)
}

// cancelOrder handles POST /cancel.
func (s *Server) cancelOrder(c *gin.Context) {
	var body cancelRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	venue, err := resolveVenue(body.Venue, body.IsFutures)
	if err == nil {
		err = s.orders.Cancel(c.Request.Context(), venue, strings.ToUpper(strings.TrimSpace(body.Symbol)), string(body.OrderID))
	}
	if err != nil {
		_ = c.Error(err)
		status, code := classify(err)
		respondError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// closeAll handles POST /close_all.
func (s *Server) closeAll(c *gin.Context) {
	var body closeAllRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	venue, err := resolveVenue(body.Venue, body.IsFutures)
	var res *bracket.CloseResult
	if err == nil {
		res, err = s.orders.CloseAll(c.Request.Context(), venue, strings.ToUpper(strings.TrimSpace(body.Symbol)))
	}
	if err != nil {
		_ = c.Error(err)
		status, code := classify(err)
		respondError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"order_id":        res.OrderID,
		"client_order_id": res.ClientOrderID,
		"side":            res.Side,
		"quantity":        res.Quantity,
	})
}

// bracketEvents handles GET /brackets/:id/events. Gateway events carry the
// bracket id; relayed exchange events only carry the client order id, so
// they are matched on its bracket prefix.
func (s *Server) bracketEvents(c *gin.Context) {
	if s.journal == nil {
		respondError(c, http.StatusNotFound, "JOURNAL_DISABLED", "order journal is not enabled")
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "bracket id must be a UUID")
		return
	}
	rows, err := s.journal.ListByBracket(c.Request.Context(), id, bracket.BracketKey(id)+"_")
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "no events recorded for bracket "+id)
		return
	}
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	out := make([]journalEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toJournalEntry(r))
	}
	c.JSON(http.StatusOK, gin.H{"bracket_order_id": id, "events": out})
}

func toJournalEntry(r db.OrderUpdate) journalEntry {
	return journalEntry{
		BracketOrderID: r.BracketOrderID,
		Role:           r.Role,
		Venue:          r.Venue,
		Symbol:         r.Symbol,
		OrderID:        r.OrderID,
		ClientOrderID:  r.ClientOrderID,
		Status:         r.Status,
		Side:           r.Side,
		OrderType:      r.OrderType,
		Price:          r.Price,
		Quantity:       r.Quantity,
		ExecutedQty:    r.ExecutedQty,
		UpdateTime:     r.UpdateTime,
		Reason:         r.Reason,
		Source:         r.Source,
		RecordedAt:     r.CreatedAt,
	}
}
