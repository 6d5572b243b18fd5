package booking

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBooking_Validate(t *testing.T) {
	t.Run("valid booking", func(t *testing.T) {
		b := Booking{
			OrderReference: "1042",
			Lines:          []LineItem{{Description: "Bike rental", Quantity: 1, LinePrice: decimal.NewFromInt(242)}},
		}
		require.NoError(t, b.Validate())
	})

	t.Run("booking without lines is valid", func(t *testing.T) {
		require.NoError(t, Booking{OrderReference: "1"}.Validate())
	})

	t.Run("missing order reference", func(t *testing.T) {
		err := Booking{}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidBooking)
		assert.Contains(t, err.Error(), "OrderReference")
	})

	t.Run("zero quantity", func(t *testing.T) {
		b := Booking{OrderReference: "7", Lines: []LineItem{{Quantity: 0}}}
		err := b.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidBooking)
		assert.Contains(t, err.Error(), "Quantity")
	})
}

func TestBooking_Total(t *testing.T) {
	b := Booking{Lines: []LineItem{
		{Quantity: 2, LinePrice: decimal.RequireFromString("242.00")},
		{Quantity: 1, LinePrice: decimal.RequireFromString("0.99")},
	}}
	assert.True(t, b.Total().Equal(decimal.RequireFromString("242.99")), "quantity is already in the line price")
}

func TestCustomer_HasEmail(t *testing.T) {
	assert.True(t, Customer{Email: "jan@example.nl"}.HasEmail())
	assert.False(t, Customer{Email: "  "}.HasEmail())
	assert.False(t, Customer{}.HasEmail())
}
