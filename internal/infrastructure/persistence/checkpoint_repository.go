package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"github.com/bicicare/invoicebridge/internal/infrastructure/persistence/models"
)

// GormCheckpointRepository implements integration.CheckpointRepository using GORM
type GormCheckpointRepository struct {
	db *gorm.DB
}

var _ integration.CheckpointRepository = (*GormCheckpointRepository)(nil)

// NewGormCheckpointRepository creates a new GormCheckpointRepository
func NewGormCheckpointRepository(db *gorm.DB) *GormCheckpointRepository {
	return &GormCheckpointRepository{db: db}
}

// FindByOrderReference loads the checkpoint for an order reference.
func (r *GormCheckpointRepository) FindByOrderReference(ctx context.Context, orderReference string) (*integration.SagaCheckpoint, error) {
	var model models.SagaCheckpointModel
	err := r.db.WithContext(ctx).
		Where("order_reference = ?", orderReference).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint for %s: %w", orderReference, err)
	}
	return model.ToDomain(), nil
}

// Save upserts the checkpoint on order_reference. The row's id and
// created_at are kept when it already exists.
func (r *GormCheckpointRepository) Save(ctx context.Context, cp *integration.SagaCheckpoint) error {
	if cp == nil || cp.OrderReference == "" {
		return fmt.Errorf("checkpoint requires an order reference")
	}
	if !cp.Stage.IsValid() {
		return fmt.Errorf("invalid checkpoint stage %q", cp.Stage)
	}
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}

	model := models.SagaCheckpointModelFromDomain(cp)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_reference"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage", "customer_id", "invoice_id", "line_ids", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", cp.OrderReference, err)
	}
	return nil
}

// DeleteCompletedBefore removes completed checkpoints last updated before
// cutoff and returns how many were removed.
func (r *GormCheckpointRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("stage = ? AND updated_at < ?", integration.CheckpointCompleted, cutoff).
		Delete(&models.SagaCheckpointModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", result.Error)
	}
	return result.RowsAffected, nil
}
