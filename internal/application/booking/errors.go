package booking

import "errors"

var (
	// ErrOrderListingFailed is returned when the paid order listing cannot be fetched.
	ErrOrderListingFailed = errors.New("booking: paid order listing failed")
)
