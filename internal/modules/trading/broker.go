// Package trading provides the paper broker and the persistent trade ledger.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
)

// FillFunc submits one order to the simulated venue. The default fill always
// succeeds; tests and fault injection replace it to exercise retries.
type FillFunc func(order domain.Order, price float64) error

// PaperBroker simulates order execution by filling at the quoted price.
// Transient venue errors are retried once with exponential backoff; a context
// deadline maps to an EXECUTION_TIMEOUT failure, never an error return.
type PaperBroker struct {
	guard   *ExecutionGuard
	fill    FillFunc
	timeout time.Duration
	log     zerolog.Logger
}

// NewPaperBroker creates a paper broker. timeout bounds one order's
// execution attempt, guard is optional.
func NewPaperBroker(timeout time.Duration, guard *ExecutionGuard, log zerolog.Logger) *PaperBroker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaperBroker{
		guard:   guard,
		fill:    func(domain.Order, float64) error { return nil },
		timeout: timeout,
		log:     log.With().Str("service", "paper_broker").Logger(),
	}
}

// SetFillFunc replaces the venue fill. Used for fault injection.
func (b *PaperBroker) SetFillFunc(fill FillFunc) { b.fill = fill }

// Execute fills one order at the quoted price. The result always reports the
// outcome; failures are carried in the Error field.
func (b *PaperBroker) Execute(ctx context.Context, order domain.Order, price float64) domain.ExecutionResult {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	result := domain.ExecutionResult{OrderID: order.ID, Ticker: order.Ticker}

	if order.Quantity == 0 {
		result.Error = "order quantity is zero"
		return result
	}
	if price <= 0 {
		result.Error = "quoted price is not positive"
		return result
	}
	if b.guard != nil {
		if err := b.guard.Check(order); err != nil {
			result.Error = err.Error()
			return result
		}
	}
	if !marketable(order, price) {
		result.Error = fmt.Sprintf("limit price %.2f not marketable at %.2f", *order.LimitPrice, price)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return b.fill(order, price)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result.Error = "EXECUTION_TIMEOUT"
		} else {
			result.Error = err.Error()
		}
		b.log.Warn().Err(err).Str("ticker", order.Ticker).Msg("Order execution failed")
		return result
	}

	result.Filled = true
	result.FillPrice = price
	result.FilledQuantity = order.Quantity
	b.log.Debug().
		Str("ticker", order.Ticker).
		Int64("quantity", order.Quantity).
		Float64("fill_price", price).
		Msg("Order filled")
	return result
}

// marketable reports whether a limit order can fill at the quote. Market
// orders always fill.
func marketable(order domain.Order, price float64) bool {
	if order.LimitPrice == nil {
		return true
	}
	if order.Quantity > 0 {
		return price <= *order.LimitPrice
	}
	return price >= *order.LimitPrice
}
