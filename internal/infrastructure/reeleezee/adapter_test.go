package reeleezee

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{"valid", Config{Username: "u", Password: "p", AdminID: "adm"}, nil},
		{"missing username", Config{Password: "p", AdminID: "adm"}, ErrConfigMissingUsername},
		{"missing password", Config{Username: "u", AdminID: "adm"}, ErrConfigMissingPassword},
		{"missing admin", Config{Username: "u", Password: "p"}, ErrConfigMissingAdminID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		c := Config{Username: "u", Password: "p", AdminID: "adm"}
		require.NoError(t, c.Validate())
		assert.Equal(t, DefaultBaseURL, c.BaseURL)
		assert.Equal(t, DefaultClientVersion, c.ClientVersion)
		assert.Equal(t, 30, c.TimeoutSeconds)
		assert.Equal(t, 10, c.SearchLimit)
		assert.Equal(t, "https://apps.reeleezee.nl/api/v1/adm/", c.AdministrationURL())
	})
}

// ---------------------------------------------------------------------------
// Adapter Tests
// ---------------------------------------------------------------------------

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewAdapter(Config{
		BaseURL:  server.URL + "/api/v1",
		Username: "user",
		Password: "pass",
		AdminID:  "adm-1",
	}, nil)
	require.NoError(t, err)
	return a
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestAdapter_Headers(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)
		assert.Equal(t, "application/json, text/plain, */*", r.Header.Get("Accept"))
		assert.Equal(t, "nl-NL", r.Header.Get("Accept-Language"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, DefaultClientVersion, r.Header.Get("x-client"))
		assert.Equal(t, "preserve-references-implicit", r.Header.Get("x-serialization-options"))
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	_, err := a.FindCustomersByEmail(context.Background(), "x@example.com")
	require.NoError(t, err)
}

func TestAdapter_FindCustomersByEmail(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/adm-1/Customers", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "(contains(tolower(EMail),'jan@example.com'))", q.Get("$filter"))
		assert.Equal(t, "10", q.Get("$top"))
		_, _ = w.Write([]byte(`{"value":[{"id":"c-1","Name":"Jan","EMail":"jan@example.com"}]}`))
	})

	matches, err := a.FindCustomersByEmail(context.Background(), "Jan@Example.com")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, integration.CustomerMatch{ID: "c-1", Name: "Jan", Email: "jan@example.com"}, matches[0])
}

func TestAdapter_FindInvoicesByHeader_EscapesQuotes(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/adm-1/SalesInvoices", r.URL.Path)
		assert.Equal(t, "(contains(tolower(Header),'o''brien'))", r.URL.Query().Get("$filter"))
		_, _ = w.Write([]byte(`{"value":[{"id":"i-1","Header":"O'Brien"}]}`))
	})

	matches, err := a.FindInvoicesByHeader(context.Background(), "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, []integration.InvoiceMatch{{ID: "i-1", Header: "O'Brien"}}, matches)
}

func TestAdapter_CreateCustomer(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/adm-1/Customers", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "Jan Jansen", body["Name"])
		assert.Equal(t, "Jan Jansen", body["SearchName"])
		channels := body["CommunicationChannelList"].([]any)
		require.Len(t, channels, 1)
		ch := channels[0].(map[string]any)
		assert.EqualValues(t, 10, ch["CommunicationType"])
		assert.Equal(t, "jan@example.com", ch["FormattedValue"])
		assert.Equal(t, "83b1d717-a669-4687-ace0-4de08ee58f93", body["EntityType"].(map[string]any)["id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c-9"}`))
	})

	id, err := a.CreateCustomer(context.Background(), integration.NewCustomer{Name: "Jan Jansen", Email: "jan@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "c-9", id)
}

func TestAdapter_CreateCustomer_MissingID(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := a.CreateCustomer(context.Background(), integration.NewCustomer{Name: "x"})
	assert.ErrorIs(t, err, integration.ErrAccountingInvalidResponse)
}

func TestAdapter_AddCustomerAddress(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/adm-1/Customers/c-1/Addresses", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "Kerkstraat", body["Street"])
		assert.Equal(t, "12", body["Number"])
		assert.Equal(t, "B", body["NumberExtension"])
		assert.Equal(t, "1234AB", body["Postcode"])
		assert.Equal(t, "Utrecht", body["City"])
		assert.Equal(t, "NL", body["Country"].(map[string]any)["id"])
		assert.EqualValues(t, 2, body["Type"])
		assert.Equal(t, true, body["IsPostal"])
		w.WriteHeader(http.StatusCreated)
	})

	err := a.AddCustomerAddress(context.Background(), "c-1", integration.NewCustomerAddress{
		Street: "Kerkstraat", Number: "12", Extension: "B", PostalCode: "1234AB", City: "Utrecht", CountryCode: "NL",
	})
	require.NoError(t, err)
}

func TestAdapter_CreateInvoiceShell(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/adm-1/SalesInvoices", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "c-1", body["Entity"].(map[string]any)["id"])
		assert.EqualValues(t, 10, body["DocumentType"])
		assert.EqualValues(t, 2, body["Origin"])
		assert.EqualValues(t, 1, body["Type"])
		assert.Equal(t, "2024-05-02", body["InvoiceDate"])
		assert.Equal(t, "2024-06-01", body["DueDate"])
		assert.Equal(t, "Booqable-1042", body["Header"])
		_, _ = w.Write([]byte(`{"id":"inv-1"}`))
	})

	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	id, err := a.CreateInvoiceShell(context.Background(), integration.NewInvoiceShell{
		CustomerID: "c-1", InvoiceDate: day, DueDate: day.AddDate(0, 0, 30), Header: "Booqable-1042",
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", id)
}

func TestAdapter_AllocateInvoiceLines(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/adm-1/SalesInvoices/inv-1", r.URL.Path)
		assert.Equal(t, "DocumentLineList", r.URL.Query().Get("$expand"))
		body := decodeBody(t, r)
		lines := body["DocumentLineList"].([]any)
		require.Len(t, lines, 2)
		assert.EqualValues(t, 2, lines[1].(map[string]any)["Sequence"])
		assert.EqualValues(t, 1, lines[1].(map[string]any)["Quantity"])
		_, _ = w.Write([]byte(`{"id":"inv-1","DocumentLineList":[{"id":"l-b","Sequence":2},{"id":"l-a","Sequence":1}]}`))
	})

	ids, err := a.AllocateInvoiceLines(context.Background(), "inv-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"l-a", "l-b"}, ids)
}

func TestAdapter_UpdateInvoiceLines(t *testing.T) {
	var raw []byte
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/adm-1/SalesInvoices/inv-1", r.URL.Path)
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	err := a.UpdateInvoiceLines(context.Background(), "inv-1", []integration.InvoiceLine{{
		ID: "l-a", Sequence: 1, Quantity: 2, Price: decimal.RequireFromString("100"),
		Description: "E-bike", AccountID: "acc", TaxRateID: "tax",
	}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Price":100.00`)
	assert.Contains(t, string(raw), `"DocumentCategoryAccount":{"id":"acc"}`)
	assert.Contains(t, string(raw), `"TaxRate":{"id":"tax"}`)
}

func TestAdapter_ExecuteInvoiceAction(t *testing.T) {
	t.Run("no content is success", func(t *testing.T) {
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/adm-1/SalesInvoices/inv-1/Actions", r.URL.Path)
			body := decodeBody(t, r)
			assert.EqualValues(t, 17, body["Type"])
			w.WriteHeader(http.StatusNoContent)
		})
		require.NoError(t, a.ExecuteInvoiceAction(context.Background(), "inv-1", integration.InvoiceActionBook))
	})

	t.Run("ok is not success", func(t *testing.T) {
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		err := a.ExecuteInvoiceAction(context.Background(), "inv-1", integration.InvoiceActionBook)
		assert.ErrorIs(t, err, integration.ErrAccountingRequestFailed)
	})
}

func TestAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, "", integration.ErrAccountingAuthFailed},
		{"forbidden", http.StatusForbidden, "", integration.ErrAccountingAuthFailed},
		{"server error", http.StatusInternalServerError, "boom", integration.ErrAccountingRequestFailed},
		{"bad json", http.StatusOK, "{not json", integration.ErrAccountingInvalidResponse},
		{"empty body", http.StatusOK, "", integration.ErrAccountingInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := a.FindInvoicesByHeader(context.Background(), "booqable-1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
