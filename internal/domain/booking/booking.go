package booking

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultLineDescription is used when the source line carries no title.
const DefaultLineDescription = "Product"

// DefaultLineQuantity is used when the source line carries no usable quantity.
const DefaultLineQuantity = 1

// Booking is one paid rental order in platform-neutral form.
type Booking struct {
	// OrderReference is the human-facing order number on the rental platform.
	OrderReference string   `json:"order_reference" validate:"required"`
	Customer       Customer `json:"customer"`
	// Address is nil when the rental customer has no address on file.
	Address *Address   `json:"address,omitempty"`
	Lines   []LineItem `json:"lines" validate:"dive"`
}

// Customer identifies who is invoiced. Name and Email may be empty when the
// source order had no customer.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HasEmail reports whether the customer can be looked up by email.
func (c Customer) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

// Address is a postal address with the street line already split.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Extension  string `json:"extension"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	// Country is the free-form country name as entered on the rental platform.
	Country string `json:"country"`
}

// LineItem is one invoiceable line. LinePrice is the line total in major
// currency units, VAT included; it already reflects Quantity.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" validate:"min=1"`
	LinePrice   decimal.Decimal `json:"line_price"`
}

// Total returns the sum of the line prices.
func (b Booking) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Lines {
		total = total.Add(l.LinePrice)
	}
	return total
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that the booking can be invoiced: it needs an order
// reference and every line needs a positive quantity.
func (b Booking) Validate() error {
	if err := structValidator().Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %s", ErrInvalidBooking, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	return nil
}
