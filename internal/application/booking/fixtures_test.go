package booking

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// order1042Detail is an order detail response as returned with
// include=payments,lines,customer,customer.properties.
const order1042Detail = `{
  "data": {
    "id": "ord-1042",
    "type": "orders",
    "attributes": {"number": 1042, "payment_status": "paid"},
    "relationships": {
      "customer": {"data": {"id": "cus-1", "type": "customers"}},
      "lines": {"data": [{"id": "line-1", "type": "lines"}]},
      "payments": {"data": [{"id": "pay-1", "type": "payments"}]}
    }
  },
  "included": [
    {
      "id": "cus-1", "type": "customers",
      "attributes": {"name": "Jan Jansen", "email": "jan@example.nl"},
      "relationships": {"properties": {"data": [{"id": "prop-1", "type": "properties"}]}}
    },
    {
      "id": "prop-1", "type": "properties",
      "attributes": {"address1": "Hoofdstraat 12A", "zipcode": "1234 AB", "city": "Utrecht", "country": "Netherlands"}
    },
    {
      "id": "line-1", "type": "lines",
      "attributes": {"title": "Bike rental", "quantity": 1, "price_in_cents": 24200}
    },
    {
      "id": "pay-1", "type": "payments",
      "attributes": {"succeeded_at": "2024-05-01T10:00:00+00:00"},
      "relationships": {"order": {"data": {"id": "ord-1042", "type": "orders"}}}
    }
  ]
}`

func decodeDocument(t *testing.T, raw string) *integration.Document {
	t.Helper()
	var doc integration.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return &doc
}

// MockOrderSource is a mock implementation of integration.OrderSource
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) ListPaidOrders(ctx context.Context, q integration.PaidOrdersQuery) (*integration.Document, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Document), args.Error(1)
}

func (m *MockOrderSource) GetOrder(ctx context.Context, orderID string) (*integration.Document, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Document), args.Error(1)
}
