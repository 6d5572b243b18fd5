package booqable

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

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
		{"valid", Config{APIKey: "k", BaseURL: DefaultBaseURL}, nil},
		{"missing key", Config{BaseURL: DefaultBaseURL}, ErrConfigMissingAPIKey},
		{"missing url", Config{APIKey: "k"}, ErrConfigMissingBaseURL},
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
		c := Config{APIKey: "k", BaseURL: "http://localhost/api"}
		require.NoError(t, c.Validate())
		assert.Equal(t, "http://localhost/api/", c.BaseURL)
		assert.Equal(t, 30, c.TimeoutSeconds)
		assert.Equal(t, 100, c.PageSize)
		assert.Equal(t, 50, c.MaxPages)
	})
}

// ---------------------------------------------------------------------------
// Adapter Tests
// ---------------------------------------------------------------------------

func createMockBooqableServer(_ *testing.T, handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func newTestAdapter(t *testing.T, server *httptest.Server, pageSize int) *Adapter {
	t.Helper()
	a, err := NewAdapter(Config{APIKey: "secret", BaseURL: server.URL + "/api/boomerang/", PageSize: pageSize, MaxPages: 5}, nil)
	require.NoError(t, err)
	return a
}

func TestAdapter_ListPaidOrders(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("builds the filter query", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/boomerang/orders", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			q := r.URL.Query()
			assert.Equal(t, "paid", q.Get("filter[payment_status]"))
			assert.Equal(t, "2024-05-01T00:00:00+00:00", q.Get("filter[created_at][gte]"))
			assert.Equal(t, "2024-05-01T23:59:59+00:00", q.Get("filter[created_at][lte]"))
			assert.Equal(t, "payments", q.Get("include"))
			assert.Equal(t, "1", q.Get("page[number]"))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[{"id":"o1","type":"orders","attributes":{"number":1}}],
				"included":[{"id":"p1","type":"payments","attributes":{"succeeded_at":"2024-05-01T10:00:00+00:00"},
				"relationships":{"order":{"data":{"id":"o1","type":"orders"}}}}]}`)
		})
		defer server.Close()

		doc, err := newTestAdapter(t, server, 10).ListPaidOrders(context.Background(), integration.DayQuery(day))
		require.NoError(t, err)
		require.Len(t, doc.Data, 1)
		assert.Equal(t, "o1", doc.Data[0].ID)
		require.Len(t, doc.Included, 1)
		assert.Equal(t, "payments", doc.Included[0].Type)
	})

	t.Run("follows pages", func(t *testing.T) {
		var calls int32
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			page, _ := strconv.Atoi(r.URL.Query().Get("page[number]"))
			switch page {
			case 1:
				fmt.Fprint(w, `{"data":[{"id":"o1","type":"orders"},{"id":"o2","type":"orders"}],"included":[{"id":"p1","type":"payments"}]}`)
			case 2:
				fmt.Fprint(w, `{"data":[{"id":"o3","type":"orders"}],"included":[{"id":"p3","type":"payments"}]}`)
			default:
				t.Errorf("unexpected page %d", page)
			}
		})
		defer server.Close()

		doc, err := newTestAdapter(t, server, 2).ListPaidOrders(context.Background(), integration.DayQuery(day))
		require.NoError(t, err)
		assert.Len(t, doc.Data, 3)
		assert.Len(t, doc.Included, 2)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("stops when pagination is ignored", func(t *testing.T) {
		var calls int32
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			fmt.Fprint(w, `{"data":[{"id":"o1","type":"orders"},{"id":"o2","type":"orders"}]}`)
		})
		defer server.Close()

		doc, err := newTestAdapter(t, server, 2).ListPaidOrders(context.Background(), integration.DayQuery(day))
		require.NoError(t, err)
		assert.Len(t, doc.Data, 2)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("http error", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		defer server.Close()

		_, err := newTestAdapter(t, server, 10).ListPaidOrders(context.Background(), integration.DayQuery(day))
		assert.ErrorIs(t, err, integration.ErrOrderSourceRequestFailed)
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		defer server.Close()

		_, err := newTestAdapter(t, server, 10).ListPaidOrders(context.Background(), integration.DayQuery(day))
		assert.ErrorIs(t, err, integration.ErrOrderSourceAuthFailed)
	})

	t.Run("invalid json", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		})
		defer server.Close()

		_, err := newTestAdapter(t, server, 10).ListPaidOrders(context.Background(), integration.DayQuery(day))
		assert.ErrorIs(t, err, integration.ErrOrderSourceInvalidResponse)
	})

	t.Run("invalid query", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		defer server.Close()

		_, err := newTestAdapter(t, server, 10).ListPaidOrders(context.Background(), integration.PaidOrdersQuery{})
		assert.ErrorIs(t, err, integration.ErrInvalidOrderQuery)
	})
}

func TestAdapter_GetOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/boomerang/orders/ord-1042", r.URL.Path)
			assert.Equal(t, "payments,lines,customer,customer.properties", r.URL.Query().Get("include"))
			fmt.Fprint(w, `{"data":{"id":"ord-1042","type":"orders","attributes":{"number":1042},
				"relationships":{"customer":{"data":{"id":"c1","type":"customers"}}}},
				"included":[{"id":"c1","type":"customers","attributes":{"name":"Jan"}}]}`)
		})
		defer server.Close()

		doc, err := newTestAdapter(t, server, 10).GetOrder(context.Background(), "ord-1042")
		require.NoError(t, err)
		order, ok := doc.Primary()
		require.True(t, ok)
		assert.Equal(t, "ord-1042", order.ID)
		ref, ok := order.RelatedOne("customer")
		require.True(t, ok)
		c, ok := doc.Pool().Resolve(ref)
		require.True(t, ok)
		assert.Equal(t, "Jan", c.Attributes.StringOr("name", ""))
	})

	t.Run("not found", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		defer server.Close()

		_, err := newTestAdapter(t, server, 10).GetOrder(context.Background(), "missing")
		assert.ErrorIs(t, err, integration.ErrOrderNotFound)
	})

	t.Run("null data", func(t *testing.T) {
		server := createMockBooqableServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":null}`)
		})
		defer server.Close()

		_, err := newTestAdapter(t, server, 10).GetOrder(context.Background(), "x")
		assert.ErrorIs(t, err, integration.ErrOrderNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		a, err := NewAdapter(Config{APIKey: "k", BaseURL: DefaultBaseURL}, nil)
		require.NoError(t, err)
		_, err = a.GetOrder(context.Background(), "")
		assert.ErrorIs(t, err, integration.ErrOrderNotFound)
	})
}
