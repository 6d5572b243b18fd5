package booking

import "errors"

// ErrInvalidBooking is returned by Booking.Validate.
var ErrInvalidBooking = errors.New("booking: invalid booking")
