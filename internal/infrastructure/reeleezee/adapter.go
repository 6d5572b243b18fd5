// Package reeleezee implements the accounting system port against the
// Reeleezee OData API.
package reeleezee

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Adapter implements integration.AccountingSystem for Reeleezee.
type Adapter struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.AccountingSystem = (*Adapter)(nil)

// NewAdapter creates a new Reeleezee adapter with the given configuration
func NewAdapter(config Config, logger *zap.Logger) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger.Named("reeleezee"),
	}, nil
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// FindCustomersByEmail searches customers whose email contains email.
func (a *Adapter) FindCustomersByEmail(ctx context.Context, email string) ([]integration.CustomerMatch, error) {
	params := a.searchParams("EMail", email, "id,Name,EMail")

	var resp listResponse[customerDTO]
	if err := a.do(ctx, http.MethodGet, "Customers", params, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}

	matches := make([]integration.CustomerMatch, 0, len(resp.Value))
	for _, c := range resp.Value {
		matches = append(matches, integration.CustomerMatch{ID: c.ID, Name: c.Name, Email: c.EMail})
	}
	return matches, nil
}

// CreateCustomer creates a customer with a single email channel.
func (a *Adapter) CreateCustomer(ctx context.Context, c integration.NewCustomer) (string, error) {
	payload := createCustomerRequest{
		Name:       c.Name,
		SearchName: c.Name,
		CommunicationChannelList: []communicationChannel{
			{CommunicationType: communicationTypeEmail, FormattedValue: c.Email},
		},
		EntityType: reference{ID: a.config.CustomerEntityTypeID},
	}

	var created reference
	if err := a.do(ctx, http.MethodPost, "Customers", nil, payload, &created, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: customer created without id", integration.ErrAccountingInvalidResponse)
	}
	a.logger.Info("Customer created", zap.String("customer_id", created.ID))
	return created.ID, nil
}

// AddCustomerAddress posts a postal invoice address for the customer.
func (a *Adapter) AddCustomerAddress(ctx context.Context, customerID string, addr integration.NewCustomerAddress) error {
	payload := createAddressRequest{
		Street:          addr.Street,
		Number:          addr.Number,
		NumberExtension: addr.Extension,
		City:            addr.City,
		Postcode:        addr.PostalCode,
		Country:         reference{ID: addr.CountryCode},
		Type:            addressTypeInvoice,
		IsPostal:        true,
	}
	path := "Customers/" + url.PathEscape(customerID) + "/Addresses"
	return a.do(ctx, http.MethodPost, path, nil, payload, nil, http.StatusOK, http.StatusCreated)
}

// ---------------------------------------------------------------------------
// Sales invoices
// ---------------------------------------------------------------------------

// FindInvoicesByHeader searches sales invoices whose header contains header.
func (a *Adapter) FindInvoicesByHeader(ctx context.Context, header string) ([]integration.InvoiceMatch, error) {
	params := a.searchParams("Header", header, "id,Header,InvoiceNumber")

	var resp listResponse[invoiceDTO]
	if err := a.do(ctx, http.MethodGet, "SalesInvoices", params, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}

	matches := make([]integration.InvoiceMatch, 0, len(resp.Value))
	for _, inv := range resp.Value {
		matches = append(matches, integration.InvoiceMatch{ID: inv.ID, Header: inv.Header})
	}
	return matches, nil
}

// CreateInvoiceShell creates a sales invoice header without lines.
func (a *Adapter) CreateInvoiceShell(ctx context.Context, s integration.NewInvoiceShell) (string, error) {
	payload := createInvoiceRequest{
		Entity:       reference{ID: s.CustomerID},
		DocumentType: documentTypeSalesInvoice,
		Origin:       documentOriginAPI,
		Type:         documentTypeDefault,
		InvoiceDate:  s.InvoiceDate.Format(dateLayout),
		DueDate:      s.DueDate.Format(dateLayout),
		Header:       s.Header,
	}

	var created reference
	if err := a.do(ctx, http.MethodPost, "SalesInvoices", nil, payload, &created, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: invoice created without id", integration.ErrAccountingInvalidResponse)
	}
	a.logger.Info("Invoice shell created", zap.String("invoice_id", created.ID), zap.String("header", s.Header))
	return created.ID, nil
}

// AllocateInvoiceLines replaces the invoice's lines with count placeholders
// and reads back the ids the server assigned.
func (a *Adapter) AllocateInvoiceLines(ctx context.Context, invoiceID string, count int) ([]string, error) {
	lines := make([]placeholderLine, count)
	for i := range lines {
		lines[i] = placeholderLine{Sequence: i + 1, Quantity: 1}
	}
	payload := allocateLinesRequest{
		ID:               invoiceID,
		DocumentType:     documentTypeSalesInvoice,
		Type:             documentTypeDefault,
		Origin:           documentOriginAPI,
		DocumentLineList: lines,
	}
	params := url.Values{}
	params.Set("$expand", "DocumentLineList")

	var doc invoiceWithLines
	path := "SalesInvoices/" + url.PathEscape(invoiceID)
	if err := a.do(ctx, http.MethodPut, path, params, payload, &doc, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}

	slices.SortStableFunc(doc.DocumentLineList, func(x, y documentLineRef) int {
		return cmp.Compare(x.Sequence, y.Sequence)
	})
	ids := make([]string, 0, len(doc.DocumentLineList))
	for _, l := range doc.DocumentLineList {
		ids = append(ids, l.ID)
	}
	a.logger.Debug("Invoice lines allocated", zap.String("invoice_id", invoiceID), zap.Strings("line_ids", ids))
	return ids, nil
}

// UpdateInvoiceLines writes descriptions, quantities and prices onto the
// allocated lines.
func (a *Adapter) UpdateInvoiceLines(ctx context.Context, invoiceID string, lines []integration.InvoiceLine) error {
	payload := updateLinesRequest{ID: invoiceID, DocumentLineList: make([]documentLine, 0, len(lines))}
	for _, l := range lines {
		payload.DocumentLineList = append(payload.DocumentLineList, documentLine{
			ID:                      l.ID,
			Sequence:                l.Sequence,
			Quantity:                l.Quantity,
			Price:                   json.Number(l.Price.StringFixed(2)),
			Description:             l.Description,
			DocumentCategoryAccount: reference{ID: l.AccountID},
			TaxRate:                 reference{ID: l.TaxRateID},
		})
	}
	path := "SalesInvoices/" + url.PathEscape(invoiceID)
	return a.do(ctx, http.MethodPut, path, nil, payload, nil, http.StatusOK, http.StatusCreated)
}

// ExecuteInvoiceAction runs a document action such as booking.
func (a *Adapter) ExecuteInvoiceAction(ctx context.Context, invoiceID string, action integration.InvoiceAction) error {
	payload := actionRequest{ID: invoiceID, Type: int(action)}
	path := "SalesInvoices/" + url.PathEscape(invoiceID) + "/Actions"
	return a.do(ctx, http.MethodPost, path, nil, payload, nil, http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// searchParams builds a case-insensitive contains filter on field.
func (a *Adapter) searchParams(field, text, sel string) url.Values {
	needle := strings.ReplaceAll(strings.ToLower(text), "'", "''")
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("(contains(tolower(%s),'%s'))", field, needle))
	params.Set("$select", sel)
	params.Set("$top", strconv.Itoa(a.config.SearchLimit))
	return params
}

func (a *Adapter) do(ctx context.Context, method, path string, params url.Values, payload, out any, accept ...int) error {
	endpoint := a.config.AdministrationURL() + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("reeleezee: failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("reeleezee: failed to create request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrAccountingRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reeleezee: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: HTTP %d", integration.ErrAccountingAuthFailed, resp.StatusCode)
	}
	if !slices.Contains(accept, resp.StatusCode) {
		a.logger.Warn("Unexpected response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(respBody, 512)),
		)
		return fmt.Errorf("%w: %s %s returned HTTP %d", integration.ErrAccountingRequestFailed, method, path, resp.StatusCode)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		if out != nil {
			return fmt.Errorf("%w: empty body from %s %s", integration.ErrAccountingInvalidResponse, method, path)
		}
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrAccountingInvalidResponse, err)
	}
	return nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.SetBasicAuth(a.config.Username, a.config.Password)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "nl-NL")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Prefer", "return=representation")
	req.Header.Set("x-client", a.config.ClientVersion)
	req.Header.Set("x-serialization-options", "preserve-references-implicit")
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
