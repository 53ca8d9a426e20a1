package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// ErrCredentialsMissing is returned by live venues without an API key pair.
var ErrCredentialsMissing = errors.New("API key/secret required")

// Binance error codes the gateway classifies.
const (
	CodeDisconnected        = -1001
	CodeTooManyRequests     = -1003
	CodeTimeout             = -1007
	CodeTimestampOutside    = -1021
	CodeNewOrderRejected    = -2010
	CodeMarginInsufficient  = -2019
	CodeDuplicateClientID   = -4116 // futures
)

// ExchangeError is a non-2xx answer from a venue.
type ExchangeError struct {
	Venue      MarketType
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s exchange error (http %d, code %d): %s", e.Venue, e.HTTPStatus, e.Code, e.Msg)
}

// Transient reports whether the same request may succeed if retried.
func (e *ExchangeError) Transient() bool {
	switch e.HTTPStatus {
	case http.StatusTooManyRequests, http.StatusTeapot:
		return true
	}
	if e.HTTPStatus >= 500 {
		return true
	}
	switch e.Code {
	case CodeDisconnected, CodeTooManyRequests, CodeTimeout, CodeTimestampOutside:
		return true
	}
	return false
}

// InsufficientBalance reports a rejection for lack of funds or margin.
func (e *ExchangeError) InsufficientBalance() bool {
	if e.Code == CodeMarginInsufficient {
		return true
	}
	return e.Code == CodeNewOrderRejected && strings.Contains(strings.ToLower(e.Msg), "insufficient balance")
}

// DuplicateOrder reports a rejection of an already used client order id.
func (e *ExchangeError) DuplicateOrder() bool {
	if e.Code == CodeDuplicateClientID {
		return true
	}
	return e.Code == CodeNewOrderRejected && strings.Contains(strings.ToLower(e.Msg), "duplicate")
}

// IsTransient classifies any error returned by a Gateway call. Network
// failures and per-attempt deadlines are transient; cancellation is not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var xe *ExchangeError
	if errors.As(err, &xe) {
		return xe.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// IsInsufficientBalance unwraps err looking for a funds rejection.
func IsInsufficientBalance(err error) bool {
	var xe *ExchangeError
	return errors.As(err, &xe) && xe.InsufficientBalance()
}

// IsDuplicateOrder unwraps err looking for a duplicate client id rejection.
func IsDuplicateOrder(err error) bool {
	var xe *ExchangeError
	return errors.As(err, &xe) && xe.DuplicateOrder()
}
