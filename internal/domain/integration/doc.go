// Package integration contains the Integration bounded context.
// This context covers the two external systems a booking travels between:
// the rental platform that owns orders and the accounting system that owns
// customers and sales invoices.
//
// Key concepts:
//   - Resource: a JSON:API resource as returned by the rental platform
//   - ResourcePool: an index of related resources keyed by (type, id)
//   - OrderSource: port for listing and fetching rental orders
//   - AccountingSystem: port for customer and sales invoice operations
//   - SagaCheckpoint: persisted progress of the invoicing saga for one order
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
