package integration

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Accounting system errors
// ---------------------------------------------------------------------------

var (
	ErrAccountingRequestFailed   = errors.New("integration: accounting request failed")
	ErrAccountingInvalidResponse = errors.New("integration: invalid accounting response")
	ErrAccountingAuthFailed      = errors.New("integration: accounting authentication failed")
)

// ---------------------------------------------------------------------------
// Accounting value objects
// ---------------------------------------------------------------------------

// CustomerMatch is a customer found by email search.
type CustomerMatch struct {
	ID    string
	Name  string
	Email string
}

// NewCustomer is the data needed to create a customer.
type NewCustomer struct {
	Name  string
	Email string
}

// NewCustomerAddress is a postal address for an existing customer.
type NewCustomerAddress struct {
	Street      string
	Number      string
	Extension   string
	PostalCode  string
	City        string
	CountryCode string // ISO 3166-1 alpha-2
}

// InvoiceMatch is a sales invoice found by header search.
type InvoiceMatch struct {
	ID     string
	Header string
}

// NewInvoiceShell is an invoice header without lines.
type NewInvoiceShell struct {
	CustomerID  string
	InvoiceDate time.Time
	DueDate     time.Time
	Header      string
}

// InvoiceLine is one populated line of a sales invoice.
type InvoiceLine struct {
	ID          string
	Sequence    int
	Quantity    int
	Price       decimal.Decimal
	Description string
	AccountID   string
	TaxRateID   string
}

// InvoiceAction is a document action code understood by the accounting system.
type InvoiceAction int

// InvoiceActionBook books (finalizes) a sales invoice.
const InvoiceActionBook InvoiceAction = 17

// ---------------------------------------------------------------------------
// AccountingSystem port
// ---------------------------------------------------------------------------

// AccountingSystem is the port to the accounting platform.
type AccountingSystem interface {
	// FindCustomersByEmail returns customers whose email contains the given
	// text, case-insensitively.
	FindCustomersByEmail(ctx context.Context, email string) ([]CustomerMatch, error)
	// CreateCustomer creates a customer and returns its id.
	CreateCustomer(ctx context.Context, c NewCustomer) (string, error)
	// AddCustomerAddress attaches a postal address to a customer.
	AddCustomerAddress(ctx context.Context, customerID string, a NewCustomerAddress) error

	// FindInvoicesByHeader returns sales invoices whose header contains the
	// given text, case-insensitively.
	FindInvoicesByHeader(ctx context.Context, header string) ([]InvoiceMatch, error)
	// CreateInvoiceShell creates a sales invoice without lines and returns its id.
	CreateInvoiceShell(ctx context.Context, s NewInvoiceShell) (string, error)
	// AllocateInvoiceLines replaces the invoice's lines with count empty lines
	// and returns their ids in sequence order.
	AllocateInvoiceLines(ctx context.Context, invoiceID string, count int) ([]string, error)
	// UpdateInvoiceLines writes the given lines onto their placeholders.
	UpdateInvoiceLines(ctx context.Context, invoiceID string, lines []InvoiceLine) error
	// ExecuteInvoiceAction runs a document action on the invoice.
	ExecuteInvoiceAction(ctx context.Context, invoiceID string, action InvoiceAction) error
}

// CountryResolver maps a free-form country name to an ISO 3166-1 alpha-2 code.
type CountryResolver interface {
	Alpha2(country string) (string, bool)
}
