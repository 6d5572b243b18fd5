package integration

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Order source errors
// ---------------------------------------------------------------------------

var (
	ErrOrderSourceRequestFailed   = errors.New("integration: order source request failed")
	ErrOrderSourceInvalidResponse = errors.New("integration: invalid order source response")
	ErrOrderSourceAuthFailed      = errors.New("integration: order source authentication failed")
	ErrOrderNotFound              = errors.New("integration: order not found")
	ErrInvalidOrderQuery          = errors.New("integration: invalid order query")
)

// ---------------------------------------------------------------------------
// OrderSource port
// ---------------------------------------------------------------------------

// PaidOrdersQuery selects paid orders by creation time.
type PaidOrdersQuery struct {
	// CreatedFrom and CreatedTo bound the order creation time, both inclusive.
	CreatedFrom time.Time
	CreatedTo   time.Time
	// IncludePayments asks for the orders' payments in the included pool.
	IncludePayments bool
}

// Validate validates the query
func (q PaidOrdersQuery) Validate() error {
	if q.CreatedFrom.IsZero() || q.CreatedTo.IsZero() {
		return ErrInvalidOrderQuery
	}
	if q.CreatedTo.Before(q.CreatedFrom) {
		return ErrInvalidOrderQuery
	}
	return nil
}

// DayQuery returns the query covering the UTC calendar day of day, from
// 00:00:00 to 23:59:59, with payments included.
func DayQuery(day time.Time) PaidOrdersQuery {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return PaidOrdersQuery{
		CreatedFrom:     start,
		CreatedTo:       start.Add(24*time.Hour - time.Second),
		IncludePayments: true,
	}
}

// OrderSource is the port to the rental platform.
type OrderSource interface {
	// ListPaidOrders returns orders whose payment status is paid and whose
	// creation time falls within the query window.
	ListPaidOrders(ctx context.Context, q PaidOrdersQuery) (*Document, error)

	// GetOrder returns one order with its payments, lines, customer and the
	// customer's properties in the included pool.
	GetOrder(ctx context.Context, orderID string) (*Document, error)
}
