package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

var errRemote = errors.New("remote returned 500")

type fakeInvoice struct {
	shell   integration.NewInvoiceShell
	lineIDs []string
	lines   []integration.InvoiceLine
	actions []integration.InvoiceAction
}

// fakeAccounting is an in-memory accounting system that performs the same
// contains-matching the real API does.
type fakeAccounting struct {
	mu sync.Mutex

	customers map[string]integration.CustomerMatch
	addresses map[string][]integration.NewCustomerAddress
	invoices  map[string]*fakeInvoice
	order     []string
	seq       int
	calls     []string

	failFindCustomers bool
	failCreateCust    bool
	failAddress       bool
	failFindInvoices  bool
	failShell         bool
	failAllocate      bool
	allocateShort     int // return this many fewer ids than requested
	failUpdate        bool
	failAction        bool
}

func newFakeAccounting() *fakeAccounting {
	return &fakeAccounting{
		customers: map[string]integration.CustomerMatch{},
		addresses: map[string][]integration.NewCustomerAddress{},
		invoices:  map[string]*fakeInvoice{},
	}
}

func (f *fakeAccounting) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeAccounting) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAccounting) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAccounting) FindCustomersByEmail(_ context.Context, email string) ([]integration.CustomerMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindCustomersByEmail")
	if f.failFindCustomers {
		return nil, errRemote
	}
	var out []integration.CustomerMatch
	for _, c := range f.customers {
		if strings.Contains(strings.ToLower(c.Email), email) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAccounting) CreateCustomer(_ context.Context, c integration.NewCustomer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateCustomer")
	if f.failCreateCust {
		return "", errRemote
	}
	id := f.nextID("cust")
	f.customers[id] = integration.CustomerMatch{ID: id, Name: c.Name, Email: c.Email}
	return id, nil
}

func (f *fakeAccounting) AddCustomerAddress(_ context.Context, customerID string, a integration.NewCustomerAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddCustomerAddress")
	if f.failAddress {
		return errRemote
	}
	f.addresses[customerID] = append(f.addresses[customerID], a)
	return nil
}

func (f *fakeAccounting) FindInvoicesByHeader(_ context.Context, header string) ([]integration.InvoiceMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindInvoicesByHeader")
	if f.failFindInvoices {
		return nil, errRemote
	}
	var out []integration.InvoiceMatch
	for _, id := range f.order {
		inv := f.invoices[id]
		if strings.Contains(strings.ToLower(inv.shell.Header), header) {
			out = append(out, integration.InvoiceMatch{ID: id, Header: inv.shell.Header})
		}
	}
	return out, nil
}

func (f *fakeAccounting) CreateInvoiceShell(_ context.Context, s integration.NewInvoiceShell) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateInvoiceShell")
	if f.failShell {
		return "", errRemote
	}
	id := f.nextID("inv")
	f.invoices[id] = &fakeInvoice{shell: s}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeAccounting) AllocateInvoiceLines(_ context.Context, invoiceID string, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AllocateInvoiceLines")
	if f.failAllocate {
		return nil, errRemote
	}
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, errRemote
	}
	inv.lineIDs = nil
	for i := 0; i < count-f.allocateShort; i++ {
		inv.lineIDs = append(inv.lineIDs, f.nextID("line"))
	}
	return append([]string(nil), inv.lineIDs...), nil
}

func (f *fakeAccounting) UpdateInvoiceLines(_ context.Context, invoiceID string, lines []integration.InvoiceLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateInvoiceLines")
	if f.failUpdate {
		return errRemote
	}
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return errRemote
	}
	inv.lines = append([]integration.InvoiceLine(nil), lines...)
	return nil
}

func (f *fakeAccounting) ExecuteInvoiceAction(_ context.Context, invoiceID string, action integration.InvoiceAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ExecuteInvoiceAction")
	if f.failAction {
		return errRemote
	}
	f.invoices[invoiceID].actions = append(f.invoices[invoiceID].actions, action)
	return nil
}

func (f *fakeAccounting) invoice(id string) *fakeInvoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invoices[id]
}

// fakeCountries resolves a fixed set of names.
type fakeCountries map[string]string

func (c fakeCountries) Alpha2(country string) (string, bool) {
	code, ok := c[strings.ToLower(strings.TrimSpace(country))]
	return code, ok
}

// memoryCheckpoints is an in-memory CheckpointRepository.
type memoryCheckpoints struct {
	mu    sync.Mutex
	items map[string]integration.SagaCheckpoint
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{items: map[string]integration.SagaCheckpoint{}}
}

func (m *memoryCheckpoints) FindByOrderReference(_ context.Context, ref string) (*integration.SagaCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.items[ref]
	if !ok {
		return nil, integration.ErrCheckpointNotFound
	}
	return &cp, nil
}

func (m *memoryCheckpoints) Save(_ context.Context, cp *integration.SagaCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cp.OrderReference] = *cp
	return nil
}

// stubLock is an OrderLock with a fixed answer.
type stubLock struct {
	acquired bool
	err      error
	released []string
}

func (l *stubLock) Acquire(context.Context, string, time.Duration) (bool, error) {
	return l.acquired, l.err
}

func (l *stubLock) Release(_ context.Context, ref string) error {
	l.released = append(l.released, ref)
	return nil
}
