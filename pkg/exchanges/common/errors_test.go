package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestExchangeErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          *ExchangeError
		transient    bool
		insufficient bool
		duplicate    bool
	}{
		{"server error", &ExchangeError{HTTPStatus: 503, Code: 0}, true, false, false},
		{"too many requests", &ExchangeError{HTTPStatus: 429, Code: CodeTooManyRequests}, true, false, false},
		{"ip banned", &ExchangeError{HTTPStatus: 418}, true, false, false},
		{"timestamp drift", &ExchangeError{HTTPStatus: 400, Code: CodeTimestampOutside}, true, false, false},
		{"spot insufficient", &ExchangeError{HTTPStatus: 400, Code: CodeNewOrderRejected, Msg: "Account has insufficient balance for requested action."}, false, true, false},
		{"futures margin", &ExchangeError{HTTPStatus: 400, Code: CodeMarginInsufficient, Msg: "Margin is insufficient."}, false, true, false},
		{"spot duplicate", &ExchangeError{HTTPStatus: 400, Code: CodeNewOrderRejected, Msg: "Duplicate order sent."}, false, false, true},
		{"futures duplicate", &ExchangeError{HTTPStatus: 400, Code: CodeDuplicateClientID}, false, false, true},
		{"bad precision", &ExchangeError{HTTPStatus: 400, Code: -1111, Msg: "Precision is over the maximum defined for this asset."}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("submit: %w", tt.err)
			if got := IsTransient(wrapped); got != tt.transient {
				t.Fatalf("IsTransient=%v, expected %v", got, tt.transient)
			}
			if got := IsInsufficientBalance(wrapped); got != tt.insufficient {
				t.Fatalf("IsInsufficientBalance=%v, expected %v", got, tt.insufficient)
			}
			if got := IsDuplicateOrder(wrapped); got != tt.duplicate {
				t.Fatalf("IsDuplicateOrder=%v, expected %v", got, tt.duplicate)
			}
		})
	}
}

func TestIsTransientNonExchangeErrors(t *testing.T) {
	if !IsTransient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}) {
		t.Fatalf("network error should be transient")
	}
	if !IsTransient(fmt.Errorf("attempt: %w", context.DeadlineExceeded)) {
		t.Fatalf("deadline should be transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatalf("cancellation should not be transient")
	}
	if IsTransient(errors.New("decode order response")) {
		t.Fatalf("plain error should not be transient")
	}
}
