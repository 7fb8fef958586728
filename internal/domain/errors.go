package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for ledger and cycle operations.
var (
	ErrInsufficientCapital   = errors.New("insufficient capital")
	ErrNoSuchPosition        = errors.New("no such position")
	ErrPositionLimitExceeded = errors.New("position limit exceeded")
	ErrDataUnavailable       = errors.New("market data unavailable")
)

// ValidationError reports malformed input from a strategy or API client.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// RiskLimitBreach reports a hard risk limit violation found during plan
// validation. Limit and Value carry the breached threshold and the observed
// number for the cycle report.
type RiskLimitBreach struct {
	Limit    string
	Ticker   string
	Value    float64
	Maximum  float64
	Severity Severity
}

func (e *RiskLimitBreach) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("risk limit %s breached for %s: %.4f exceeds %.4f", e.Limit, e.Ticker, e.Value, e.Maximum)
	}
	return fmt.Sprintf("risk limit %s breached: %.4f exceeds %.4f", e.Limit, e.Value, e.Maximum)
}

// ExecutionFailure wraps a broker error for a single order. Failures are
// isolated per order; the rebalancer records them without aborting the cycle.
type ExecutionFailure struct {
	OrderID string
	Ticker  string
	Err     error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("execution failed for order %s (%s): %v", e.OrderID, e.Ticker, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }
