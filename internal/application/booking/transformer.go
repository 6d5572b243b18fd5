package booking

import (
	"github.com/bicicare/invoicebridge/internal/domain/booking"
	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// Attribute names on rental platform resources.
const (
	attrNumber       = "number"
	attrName         = "name"
	attrEmail        = "email"
	attrAddress1     = "address1"
	attrZipcode      = "zipcode"
	attrCity         = "city"
	attrCountry      = "country"
	attrTitle        = "title"
	attrQuantity     = "quantity"
	attrPriceInCents = "price_in_cents"
	attrSucceededAt  = "succeeded_at"
)

// OrderToBookingTransformer converts a rental order into a Booking.
type OrderToBookingTransformer struct {
	resolver *OrderGraphResolver
}

// NewOrderToBookingTransformer creates a new OrderToBookingTransformer
func NewOrderToBookingTransformer(resolver *OrderGraphResolver) *OrderToBookingTransformer {
	if resolver == nil {
		resolver = NewOrderGraphResolver()
	}
	return &OrderToBookingTransformer{resolver: resolver}
}

// Transform builds a Booking from order and the resources it refers to.
func (t *OrderToBookingTransformer) Transform(order integration.Resource, pool *integration.ResourcePool) booking.Booking {
	resolved := t.resolver.Resolve(order, pool)

	b := booking.Booking{
		OrderReference: order.Attributes.StringOr(attrNumber, ""),
	}

	if resolved.Customer != nil {
		b.Customer = booking.Customer{
			Name:  resolved.Customer.Attributes.StringOr(attrName, ""),
			Email: resolved.Customer.Attributes.StringOr(attrEmail, ""),
		}
	}

	if resolved.Address != nil {
		attrs := resolved.Address.Attributes
		street := booking.ParseStreetLine(attrs.StringOr(attrAddress1, ""))
		b.Address = &booking.Address{
			Street:     street.Street,
			Number:     street.Number,
			Extension:  street.Extension,
			PostalCode: attrs.StringOr(attrZipcode, ""),
			City:       attrs.StringOr(attrCity, ""),
			Country:    attrs.StringOr(attrCountry, ""),
		}
	}

	b.Lines = make([]booking.LineItem, 0, len(resolved.Lines))
	for _, line := range resolved.Lines {
		b.Lines = append(b.Lines, toLineItem(line.Attributes))
	}

	return b
}

func toLineItem(attrs integration.Attributes) booking.LineItem {
	item := booking.LineItem{
		Description: attrs.StringOr(attrTitle, booking.DefaultLineDescription),
		Quantity:    booking.DefaultLineQuantity,
		LinePrice:   decimal.Zero,
	}
	if qty, ok := attrs.Int64(attrQuantity); ok && qty >= 1 {
		item.Quantity = int(qty)
	}
	if cents, ok := attrs.Decimal(attrPriceInCents); ok {
		item.LinePrice = cents.Shift(-2)
	}
	return item
}
