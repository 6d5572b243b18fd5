package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for an order.
var ErrCheckpointNotFound = errors.New("integration: saga checkpoint not found")

// CheckpointStage is the last invoicing stage that completed for an order.
type CheckpointStage string

const (
	CheckpointShellCreated   CheckpointStage = "shell_created"
	CheckpointLinesAllocated CheckpointStage = "lines_allocated"
	CheckpointCompleted      CheckpointStage = "completed"
)

// IsValid returns true if the stage is known
func (s CheckpointStage) IsValid() bool {
	switch s {
	case CheckpointShellCreated, CheckpointLinesAllocated, CheckpointCompleted:
		return true
	default:
		return false
	}
}

// Resumable reports whether a saga can continue from this stage.
func (s CheckpointStage) Resumable() bool {
	return s == CheckpointShellCreated || s == CheckpointLinesAllocated
}

// SagaCheckpoint records how far the invoicing saga got for one order, with
// the remote ids obtained so far.
type SagaCheckpoint struct {
	ID             uuid.UUID
	OrderReference string
	Stage          CheckpointStage
	CustomerID     string
	InvoiceID      string
	LineIDs        []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSagaCheckpoint creates a checkpoint for an order at the given stage.
func NewSagaCheckpoint(orderReference string, stage CheckpointStage, customerID, invoiceID string) *SagaCheckpoint {
	now := time.Now().UTC()
	return &SagaCheckpoint{
		ID:             uuid.New(),
		OrderReference: orderReference,
		Stage:          stage,
		CustomerID:     customerID,
		InvoiceID:      invoiceID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Advance moves the checkpoint to a later stage.
func (c *SagaCheckpoint) Advance(stage CheckpointStage, lineIDs []string) {
	c.Stage = stage
	if lineIDs != nil {
		c.LineIDs = append([]string(nil), lineIDs...)
	}
	c.UpdatedAt = time.Now().UTC()
}

// CheckpointRepository persists saga checkpoints keyed by order reference.
type CheckpointRepository interface {
	// FindByOrderReference returns ErrCheckpointNotFound when none exists.
	FindByOrderReference(ctx context.Context, orderReference string) (*SagaCheckpoint, error)
	// Save inserts or replaces the checkpoint for its order reference.
	Save(ctx context.Context, cp *SagaCheckpoint) error
}

// OrderLock guards against two workers invoicing the same order at once.
type OrderLock interface {
	// Acquire returns false when another holder owns the lock.
	Acquire(ctx context.Context, orderReference string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, orderReference string) error
}
