package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/booking"
	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// PaidOrderSelector picks the orders that were paid on a given day and turns
// them into bookings.
type PaidOrderSelector struct {
	source      integration.OrderSource
	transformer *OrderToBookingTransformer
	logger      *zap.Logger
}

// NewPaidOrderSelector creates a new PaidOrderSelector
func NewPaidOrderSelector(source integration.OrderSource, transformer *OrderToBookingTransformer, logger *zap.Logger) *PaidOrderSelector {
	if transformer == nil {
		transformer = NewOrderToBookingTransformer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaidOrderSelector{
		source:      source,
		transformer: transformer,
		logger:      logger.Named("paid_order_selector"),
	}
}

// SelectPaidOn returns bookings for orders created on day (UTC) that have a
// payment which succeeded on that same day. Orders keep their listing order.
// An order whose details cannot be fetched is skipped.
func (s *PaidOrderSelector) SelectPaidOn(ctx context.Context, day time.Time) ([]booking.Booking, error) {
	dayStr := day.UTC().Format(dayLayout)

	listing, err := s.source.ListPaidOrders(ctx, integration.DayQuery(day))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderListingFailed, err)
	}

	paidOrders := paidOrderIDs(listing.Pool(), dayStr)

	s.logger.Info("Listed paid orders",
		zap.String("day", dayStr),
		zap.Int("listed", len(listing.Data)),
		zap.Int("paid_on_day", len(paidOrders)),
	)

	bookings := make([]booking.Booking, 0, len(paidOrders))
	for _, order := range listing.Data {
		if !paidOrders[order.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return bookings, err
		}

		detail, err := s.source.GetOrder(ctx, order.ID)
		if err != nil {
			s.logger.Warn("Skipping order, detail fetch failed",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}
		full, ok := detail.Primary()
		if !ok {
			s.logger.Warn("Skipping order, empty detail response", zap.String("order_id", order.ID))
			continue
		}

		b := s.transformer.Transform(full, detail.Pool())
		s.logger.Debug("Order converted to booking",
			zap.String("order_id", order.ID),
			zap.String("order_reference", b.OrderReference),
			zap.Int("lines", len(b.Lines)),
		)
		bookings = append(bookings, b)
	}

	return bookings, nil
}

// paidOrderIDs returns the ids of orders that have a payment whose
// succeeded_at timestamp falls on day.
func paidOrderIDs(pool *integration.ResourcePool, day string) map[string]bool {
	paid := make(map[string]bool)
	for _, payment := range pool.OfType(integration.ResourceTypePayments) {
		succeededAt, ok := payment.Attributes.String(attrSucceededAt)
		if !ok || !strings.HasPrefix(succeededAt, day) {
			continue
		}
		ref, ok := payment.RelatedOne(relOrder)
		if !ok {
			continue
		}
		paid[ref.ID] = true
	}
	return paid
}
