package booking

import (
	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

// Relationship names on rental platform resources.
const (
	relCustomer   = "customer"
	relProperties = "properties"
	relLines      = "lines"
	relOrder      = "order"
)

// ResolvedOrder holds the resources an order refers to.
type ResolvedOrder struct {
	// Customer is nil when the order has no customer or it is not in the pool.
	Customer *integration.Resource
	// Address is the customer's first property, nil when there is none.
	Address *integration.Resource
	// Lines are the order's line resources in relationship order.
	Lines []integration.Resource
}

// OrderGraphResolver follows an order's relationships through a resource pool.
type OrderGraphResolver struct{}

// NewOrderGraphResolver creates a new OrderGraphResolver
func NewOrderGraphResolver() *OrderGraphResolver {
	return &OrderGraphResolver{}
}

// Resolve finds the customer, address and line resources of order in pool.
// References that cannot be resolved are left out.
func (r *OrderGraphResolver) Resolve(order integration.Resource, pool *integration.ResourcePool) ResolvedOrder {
	var out ResolvedOrder

	if ref, ok := order.RelatedOne(relCustomer); ok {
		if customer, found := pool.Resolve(ref); found {
			out.Customer = customer
		}
	}

	if out.Customer != nil {
		if ref, ok := out.Customer.RelatedOne(relProperties); ok {
			if address, found := pool.Resolve(ref); found {
				out.Address = address
			}
		}
	}

	for _, ref := range order.Related(relLines) {
		line, found := pool.Resolve(ref)
		if !found || line.Type != integration.ResourceTypeLines {
			continue
		}
		out.Lines = append(out.Lines, *line)
	}

	return out
}
