// Package booking contains the Booking bounded context.
// A Booking is the platform-neutral form of one paid rental order, ready to be
// invoiced in the accounting system.
//
// Key concepts:
//   - Booking: order reference, customer, optional postal address and line items
//   - StreetAddress: a single-line street address split into street, number and extension
//   - InvoicingOutcome: the terminal result of running the invoicing saga for a booking
package booking
