package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/booking"
	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"github.com/bicicare/invoicebridge/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoicingSaga turns one booking into a sales invoice in the accounting
// system. Each step feeds ids to the next; a failed step ends the run with a
// failed outcome and earlier remote writes are left in place.
type InvoicingSaga struct {
	accounting  integration.AccountingSystem
	countries   integration.CountryResolver
	checkpoints integration.CheckpointRepository
	lock        integration.OrderLock
	metrics     *telemetry.InvoicingMetrics
	logger      *zap.Logger
	now         func() time.Time
	cfg         SagaConfig
}

// SagaOption configures optional collaborators of the saga.
type SagaOption func(*InvoicingSaga)

// WithCheckpoints persists saga progress so a later run can resume a
// partially created invoice.
func WithCheckpoints(repo integration.CheckpointRepository) SagaOption {
	return func(s *InvoicingSaga) { s.checkpoints = repo }
}

// WithOrderLock serialises runs for the same order reference.
func WithOrderLock(lock integration.OrderLock) SagaOption {
	return func(s *InvoicingSaga) { s.lock = lock }
}

// WithMetrics records outcomes.
func WithMetrics(m *telemetry.InvoicingMetrics) SagaOption {
	return func(s *InvoicingSaga) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) SagaOption {
	return func(s *InvoicingSaga) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) SagaOption {
	return func(s *InvoicingSaga) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInvoicingSaga creates a new InvoicingSaga
func NewInvoicingSaga(
	accounting integration.AccountingSystem,
	countries integration.CountryResolver,
	cfg SagaConfig,
	opts ...SagaOption,
) *InvoicingSaga {
	s := &InvoicingSaga{
		accounting: accounting,
		countries:  countries,
		logger:     zap.NewNop(),
		now:        time.Now,
		cfg:        cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("invoicing_saga")
	return s
}

// sagaRun carries the state of one Process call between steps.
type sagaRun struct {
	booking    booking.Booking
	header     string
	customerID string
	invoiceID  string
	lineIDs    []string
	checkpoint *integration.SagaCheckpoint
	resumed    bool
	finalized  bool
	logger     *zap.Logger
}

// sagaStep is one named state of the saga. run returns a terminal outcome to
// stop, or nil to continue with the next step.
type sagaStep struct {
	name booking.SagaStep
	skip func(r *sagaRun) bool
	run  func(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome
}

func (s *InvoicingSaga) steps() []sagaStep {
	return []sagaStep{
		{
			name: booking.StepResolveCustomer,
			skip: func(r *sagaRun) bool { return r.resumed && r.customerID != "" },
			run:  s.resolveCustomer,
		},
		{
			name: booking.StepIdempotencyCheck,
			skip: func(r *sagaRun) bool { return r.resumed },
			run:  s.checkExistingInvoice,
		},
		{
			name: booking.StepCreateShell,
			skip: func(r *sagaRun) bool { return r.resumed },
			run:  s.createShell,
		},
		{
			name: booking.StepAllocateLines,
			skip: func(r *sagaRun) bool { return r.resumed && len(r.lineIDs) > 0 },
			run:  s.allocateLines,
		},
		{
			name: booking.StepPopulateLines,
			run:  s.populateLines,
		},
		{
			// Booking the invoice is a deliberate manual step unless enabled.
			name: booking.StepFinalize,
			skip: func(r *sagaRun) bool { return !s.cfg.FinalizeEnabled },
			run:  s.finalize,
		},
	}
}

// Process runs the saga for one booking. It never returns an error; every
// failure is reported through the outcome.
func (s *InvoicingSaga) Process(ctx context.Context, b booking.Booking) (outcome booking.InvoicingOutcome) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "process",
		telemetry.SpanAttrOrderReference, b.OrderReference,
		telemetry.SpanAttrLineCount, len(b.Lines),
	)
	defer func() {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrSagaStep, outcome.Step.String(),
			telemetry.SpanAttrCustomerID, outcome.CustomerID,
			telemetry.SpanAttrInvoiceID, outcome.InvoiceID,
		)
		if !outcome.Success {
			telemetry.RecordError(span, errors.New(outcome.Message))
		}
		span.End()
		s.metrics.RecordOutcome(ctx, resultOf(outcome), outcome.Step.String(), time.Since(start))
	}()

	log := s.logger.With(zap.String("order_reference", b.OrderReference))

	if err := b.Validate(); err != nil {
		log.Warn("Rejecting invalid booking", zap.Error(err))
		return failed(booking.StepValidate, "", "", fmt.Sprintf("Invalid booking %s: %v", b.OrderReference, err))
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, b.OrderReference, s.cfg.LockTTL)
		if err != nil {
			log.Error("Failed to acquire order lock", zap.Error(err))
			return failed(booking.StepAcquireLock, "", "", fmt.Sprintf("Failed to acquire processing lock for order %s", b.OrderReference))
		}
		if !acquired {
			log.Info("Order is being processed elsewhere")
			return failed(booking.StepAcquireLock, "", "", fmt.Sprintf("Order %s is already being processed", b.OrderReference))
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), b.OrderReference); err != nil {
				log.Warn("Failed to release order lock", zap.Error(err))
			}
		}()
	}

	run := &sagaRun{
		booking: b,
		header:  s.cfg.HeaderPrefix + b.OrderReference,
		logger:  log,
	}
	s.loadCheckpoint(ctx, run)

	for _, st := range s.steps() {
		if st.skip != nil && st.skip(run) {
			log.Debug("Skipping saga step", zap.String("step", st.name.String()))
			continue
		}
		if result := st.run(ctx, run); result != nil {
			return *result
		}
		telemetry.AddEvent(span, st.name.String(), telemetry.SpanAttrInvoiceID, run.invoiceID)
	}

	s.saveCheckpoint(ctx, run, integration.CheckpointCompleted)

	msg := fmt.Sprintf("Invoice %s created for customer %s", run.invoiceID, b.Customer.Name)
	if run.finalized {
		msg = fmt.Sprintf("Invoice %s created and booked for customer %s", run.invoiceID, b.Customer.Name)
	}
	log.Info("Invoice created",
		zap.String("customer_id", run.customerID),
		zap.String("invoice_id", run.invoiceID),
		zap.Int("lines", len(b.Lines)),
		zap.Bool("resumed", run.resumed),
		zap.Bool("finalized", run.finalized),
	)
	return booking.InvoicingOutcome{
		Success:    true,
		CustomerID: run.customerID,
		InvoiceID:  run.invoiceID,
		Message:    msg,
		Step:       booking.StepCompleted,
	}
}

// ---------------------------------------------------------------------------
// Steps
// ---------------------------------------------------------------------------

func (s *InvoicingSaga) resolveCustomer(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome {
	c := r.booking.Customer

	if c.HasEmail() {
		matches, err := s.accounting.FindCustomersByEmail(ctx, strings.ToLower(strings.TrimSpace(c.Email)))
		if err != nil {
			r.logger.Warn("Customer lookup failed, creating a new customer", zap.Error(err))
		} else if match, ok := s.pickCustomer(matches, c.Email); ok {
			r.customerID = match.ID
			r.logger.Debug("Reusing existing customer", zap.String("customer_id", match.ID))
			return nil
		}
	}

	id, err := s.accounting.CreateCustomer(ctx, integration.NewCustomer{Name: c.Name, Email: c.Email})
	if err != nil || id == "" {
		r.logger.Error("Failed to create customer", zap.String("customer_name", c.Name), zap.Error(err))
		return failedPtr(booking.StepResolveCustomer, "", "", fmt.Sprintf("Failed to create customer: %s", c.Name))
	}
	r.customerID = id
	r.logger.Info("Customer created", zap.String("customer_id", id))

	s.addAddress(ctx, r)
	return nil
}

// addAddress attaches the booking address to a new customer. Failures are
// logged and do not stop the saga.
func (s *InvoicingSaga) addAddress(ctx context.Context, r *sagaRun) {
	addr := r.booking.Address
	if addr == nil {
		return
	}

	code, ok := "", false
	if s.countries != nil {
		code, ok = s.countries.Alpha2(addr.Country)
	}
	if !ok {
		r.logger.Warn("Skipping customer address, unknown country", zap.String("country", addr.Country))
		return
	}

	err := s.accounting.AddCustomerAddress(ctx, r.customerID, integration.NewCustomerAddress{
		Street:      addr.Street,
		Number:      addr.Number,
		Extension:   addr.Extension,
		PostalCode:  addr.PostalCode,
		City:        addr.City,
		CountryCode: code,
	})
	if err != nil {
		r.logger.Warn("Failed to add customer address", zap.String("customer_id", r.customerID), zap.Error(err))
	}
}

func (s *InvoicingSaga) checkExistingInvoice(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome {
	matches, err := s.accounting.FindInvoicesByHeader(ctx, strings.ToLower(r.header))
	if err != nil {
		r.logger.Warn("Invoice lookup failed, treating as not found", zap.Error(err))
		return nil
	}
	match, ok := s.pickInvoice(matches, r.header)
	if !ok {
		return nil
	}

	r.logger.Info("Invoice already exists", zap.String("invoice_id", match.ID))
	return &booking.InvoicingOutcome{
		Success:        true,
		CustomerID:     r.customerID,
		InvoiceID:      match.ID,
		Message:        fmt.Sprintf("Invoice %s already exists for customer %s", match.ID, r.booking.Customer.Name),
		Step:           booking.StepIdempotencyCheck,
		AlreadyExisted: true,
	}
}

func (s *InvoicingSaga) createShell(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome {
	today := s.today()
	id, err := s.accounting.CreateInvoiceShell(ctx, integration.NewInvoiceShell{
		CustomerID:  r.customerID,
		InvoiceDate: today,
		DueDate:     today.AddDate(0, 0, s.cfg.PaymentTermDays),
		Header:      r.header,
	})
	if err != nil || id == "" {
		r.logger.Error("Failed to create invoice shell", zap.String("customer_id", r.customerID), zap.Error(err))
		return failedPtr(booking.StepCreateShell, r.customerID, "", fmt.Sprintf("Failed to create invoice shell for %s", r.booking.Customer.Name))
	}
	r.invoiceID = id
	r.logger.Info("Invoice shell created", zap.String("invoice_id", id), zap.String("header", r.header))

	s.saveCheckpoint(ctx, r, integration.CheckpointShellCreated)
	return nil
}

func (s *InvoicingSaga) allocateLines(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome {
	ids, err := s.accounting.AllocateInvoiceLines(ctx, r.invoiceID, len(r.booking.Lines))
	if err != nil || len(ids) == 0 {
		r.logger.Error("Failed to allocate invoice lines",
			zap.String("invoice_id", r.invoiceID),
			zap.Int("requested", len(r.booking.Lines)),
			zap.Error(err),
		)
		return failedPtr(booking.StepAllocateLines, r.customerID, r.invoiceID, fmt.Sprintf("Failed to add lines to invoice %s", r.invoiceID))
	}
	r.lineIDs = ids

	s.saveCheckpoint(ctx, r, integration.CheckpointLinesAllocated)
	return nil
}

func (s *InvoicingSaga) populateLines(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome {
	ids, items := r.lineIDs, r.booking.Lines
	if len(ids) != len(items) {
		if s.cfg.StrictLinePairing {
			r.logger.Error("Line count mismatch",
				zap.String("invoice_id", r.invoiceID),
				zap.Int("allocated", len(ids)),
				zap.Int("booking_lines", len(items)),
			)
			return failedPtr(booking.StepPopulateLines, r.customerID, r.invoiceID,
				fmt.Sprintf("Line count mismatch for invoice %s: %d allocated, %d expected", r.invoiceID, len(ids), len(items)))
		}
		r.logger.Warn("Line count mismatch, pairing common prefix",
			zap.String("invoice_id", r.invoiceID),
			zap.Int("allocated", len(ids)),
			zap.Int("booking_lines", len(items)),
		)
	}

	n := min(len(ids), len(items))
	lines := make([]integration.InvoiceLine, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, integration.InvoiceLine{
			ID:          ids[i],
			Sequence:    i + 1,
			Quantity:    items[i].Quantity,
			Price:       s.netPrice(items[i].LinePrice),
			Description: items[i].Description,
			AccountID:   s.cfg.RevenueAccountID,
			TaxRateID:   s.cfg.TaxRateID,
		})
	}

	if err := s.accounting.UpdateInvoiceLines(ctx, r.invoiceID, lines); err != nil {
		r.logger.Error("Failed to update invoice lines", zap.String("invoice_id", r.invoiceID), zap.Error(err))
		return failedPtr(booking.StepPopulateLines, r.customerID, r.invoiceID, fmt.Sprintf("Failed to update lines for invoice %s", r.invoiceID))
	}
	return nil
}

func (s *InvoicingSaga) finalize(ctx context.Context, r *sagaRun) *booking.InvoicingOutcome {
	if err := s.accounting.ExecuteInvoiceAction(ctx, r.invoiceID, integration.InvoiceActionBook); err != nil {
		r.logger.Error("Failed to book invoice", zap.String("invoice_id", r.invoiceID), zap.Error(err))
		return failedPtr(booking.StepFinalize, r.customerID, r.invoiceID, fmt.Sprintf("Failed to finalize invoice %s", r.invoiceID))
	}
	r.finalized = true
	return nil
}

// ---------------------------------------------------------------------------
// Checkpoints
// ---------------------------------------------------------------------------

func (s *InvoicingSaga) loadCheckpoint(ctx context.Context, r *sagaRun) {
	if s.checkpoints == nil {
		return
	}
	cp, err := s.checkpoints.FindByOrderReference(ctx, r.booking.OrderReference)
	if err != nil {
		if !errors.Is(err, integration.ErrCheckpointNotFound) {
			r.logger.Warn("Failed to load saga checkpoint", zap.Error(err))
		}
		return
	}
	r.checkpoint = cp
	if !cp.Stage.Resumable() || cp.InvoiceID == "" {
		return
	}

	r.resumed = true
	r.customerID = cp.CustomerID
	r.invoiceID = cp.InvoiceID
	if cp.Stage == integration.CheckpointLinesAllocated && len(cp.LineIDs) == len(r.booking.Lines) {
		r.lineIDs = append([]string(nil), cp.LineIDs...)
	}
	r.logger.Info("Resuming invoicing from checkpoint",
		zap.String("stage", string(cp.Stage)),
		zap.String("invoice_id", cp.InvoiceID),
	)
}

func (s *InvoicingSaga) saveCheckpoint(ctx context.Context, r *sagaRun, stage integration.CheckpointStage) {
	if s.checkpoints == nil {
		return
	}
	if r.checkpoint == nil {
		r.checkpoint = integration.NewSagaCheckpoint(r.booking.OrderReference, stage, r.customerID, r.invoiceID)
		r.checkpoint.LineIDs = append([]string(nil), r.lineIDs...)
	} else {
		r.checkpoint.CustomerID = r.customerID
		r.checkpoint.InvoiceID = r.invoiceID
		r.checkpoint.Advance(stage, r.lineIDs)
	}
	if err := s.checkpoints.Save(ctx, r.checkpoint); err != nil {
		r.logger.Warn("Failed to save saga checkpoint", zap.String("stage", string(stage)), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// netPrice removes the included VAT and rounds to cents.
func (s *InvoicingSaga) netPrice(gross decimal.Decimal) decimal.Decimal {
	return gross.Div(decimal.NewFromInt(1).Add(s.cfg.VATRate)).Round(2)
}

func (s *InvoicingSaga) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

func (s *InvoicingSaga) pickCustomer(matches []integration.CustomerMatch, email string) (integration.CustomerMatch, bool) {
	for _, m := range matches {
		if !s.cfg.ExactMatch || strings.EqualFold(strings.TrimSpace(m.Email), strings.TrimSpace(email)) {
			return m, true
		}
	}
	return integration.CustomerMatch{}, false
}

func (s *InvoicingSaga) pickInvoice(matches []integration.InvoiceMatch, header string) (integration.InvoiceMatch, bool) {
	for _, m := range matches {
		if !s.cfg.ExactMatch || strings.EqualFold(strings.TrimSpace(m.Header), header) {
			return m, true
		}
	}
	return integration.InvoiceMatch{}, false
}

func failed(step booking.SagaStep, customerID, invoiceID, msg string) booking.InvoicingOutcome {
	return booking.InvoicingOutcome{
		Success:    false,
		CustomerID: customerID,
		InvoiceID:  invoiceID,
		Message:    msg,
		Step:       step,
	}
}

func failedPtr(step booking.SagaStep, customerID, invoiceID, msg string) *booking.InvoicingOutcome {
	o := failed(step, customerID, invoiceID, msg)
	return &o
}

func resultOf(o booking.InvoicingOutcome) string {
	switch {
	case !o.Success:
		return telemetry.ResultFailed
	case o.AlreadyExisted:
		return telemetry.ResultExisting
	default:
		return telemetry.ResultCreated
	}
}
