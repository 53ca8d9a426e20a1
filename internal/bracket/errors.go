package bracket

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFilterRejected wraps a *filters.FilterViolation found after rounding.
	ErrFilterRejected = errors.New("order rejected by symbol filters")
	// ErrNothingToClose is returned by CloseAll when there is no position.
	ErrNothingToClose = errors.New("no open position to close")
	// ErrVenueDisabled means the venue is known but not enabled.
	ErrVenueDisabled = errors.New("venue not enabled")
	// ErrLegNotRetryable is returned by RetryLeg for legs that were not rejected.
	ErrLegNotRetryable = errors.New("leg is not retryable")
)

// ValidationError is a malformed or semantically invalid request. Nothing
// has been sent to the exchange.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "invalid bracket request: " + e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TimeoutError is returned when retries ran out without an acknowledgment.
type TimeoutError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no acknowledgment after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// PartialBracketFailure means the entry was acknowledged but at least one
// exit leg was rejected. Bracket carries every leg's outcome; the failed legs
// can be retried with RetryLeg.
type PartialBracketFailure struct {
	Bracket *Bracket
	Failed  []Role
}

func (e *PartialBracketFailure) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		reason := ""
		if l := e.Bracket.Leg(r); l != nil {
			reason = l.Reason
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", r, reason))
	}
	return fmt.Sprintf("bracket %s partially submitted, failed legs: %s", e.Bracket.ID, strings.Join(parts, ", "))
}
