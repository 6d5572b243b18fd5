package booking

// SagaStep names a step of the invoicing saga.
type SagaStep string

const (
	StepValidate         SagaStep = "validate"
	StepAcquireLock      SagaStep = "acquire_lock"
	StepResolveCustomer  SagaStep = "resolve_customer"
	StepIdempotencyCheck SagaStep = "idempotency_check"
	StepCreateShell      SagaStep = "create_shell"
	StepAllocateLines    SagaStep = "allocate_lines"
	StepPopulateLines    SagaStep = "populate_lines"
	StepFinalize         SagaStep = "finalize"
	StepCompleted        SagaStep = "completed"
)

// String returns the string representation of SagaStep
func (s SagaStep) String() string {
	return string(s)
}

// InvoicingOutcome is the terminal result of invoicing one booking.
// A failed outcome never has Success set; InvoiceID may still be set when a
// shell was created before the failure.
type InvoicingOutcome struct {
	Success    bool   `json:"success"`
	CustomerID string `json:"customer_id,omitempty"`
	InvoiceID  string `json:"invoice_id,omitempty"`
	Message    string `json:"message"`
	// Step is the last step the saga reached.
	Step SagaStep `json:"step"`
	// AlreadyExisted is set when the idempotency check found an earlier invoice.
	AlreadyExisted bool `json:"already_existed,omitempty"`
}
