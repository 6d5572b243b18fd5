package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// SagaConfig holds the fixed accounting references and behaviour switches of
// the invoicing saga.
type SagaConfig struct {
	// HeaderPrefix is prepended to the order reference to form the invoice header.
	HeaderPrefix string
	// VATRate is the VAT fraction included in source prices, e.g. 0.21.
	VATRate decimal.Decimal
	// PaymentTermDays is the number of days between invoice date and due date.
	PaymentTermDays int
	// RevenueAccountID and TaxRateID are attached to every invoice line.
	RevenueAccountID string
	TaxRateID        string

	// FinalizeEnabled turns on the booking action after lines are populated.
	FinalizeEnabled bool
	// StrictLinePairing fails the saga when the number of allocated line ids
	// differs from the number of booking lines instead of pairing the prefix.
	StrictLinePairing bool
	// ExactMatch only accepts lookup results whose email or header equals the
	// searched value, ignoring case.
	ExactMatch bool
	// LockTTL bounds how long an order lock is held.
	LockTTL time.Duration
}

// DefaultSagaConfig returns the configuration used in production.
func DefaultSagaConfig() SagaConfig {
	return SagaConfig{
		HeaderPrefix:     "Booqable-",
		VATRate:          decimal.RequireFromString("0.21"),
		PaymentTermDays:  30,
		RevenueAccountID: "61f4ae1b-7700-4685-9930-ddfe71fb626e",
		TaxRateID:        "1e44993a-15f6-419f-87e5-3e31ac3d9383",
		LockTTL:          5 * time.Minute,
	}
}

func (c SagaConfig) withDefaults() SagaConfig {
	def := DefaultSagaConfig()
	if c.HeaderPrefix == "" {
		c.HeaderPrefix = def.HeaderPrefix
	}
	if c.VATRate.IsZero() {
		c.VATRate = def.VATRate
	}
	if c.PaymentTermDays <= 0 {
		c.PaymentTermDays = def.PaymentTermDays
	}
	if c.RevenueAccountID == "" {
		c.RevenueAccountID = def.RevenueAccountID
	}
	if c.TaxRateID == "" {
		c.TaxRateID = def.TaxRateID
	}
	if c.LockTTL <= 0 {
		c.LockTTL = def.LockTTL
	}
	return c
}
