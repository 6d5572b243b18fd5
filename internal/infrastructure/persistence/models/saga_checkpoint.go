package models

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

// SagaCheckpointModel is the persistence model for integration.SagaCheckpoint.
type SagaCheckpointModel struct {
	BaseModel
	OrderReference string                      `gorm:"type:varchar(64);not null;uniqueIndex"`
	Stage          integration.CheckpointStage `gorm:"type:varchar(32);not null;index"`
	CustomerID     string                      `gorm:"type:varchar(64)"`
	InvoiceID      string                      `gorm:"type:varchar(64)"`
	LineIDsJSON    string                      `gorm:"column:line_ids;type:text;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (SagaCheckpointModel) TableName() string {
	return "saga_checkpoints"
}

// ToDomain converts the model to the domain checkpoint. Unparseable line ids
// are dropped, which makes the saga reallocate lines on resume.
func (m *SagaCheckpointModel) ToDomain() *integration.SagaCheckpoint {
	cp := &integration.SagaCheckpoint{
		ID:             m.ID,
		OrderReference: m.OrderReference,
		Stage:          m.Stage,
		CustomerID:     m.CustomerID,
		InvoiceID:      m.InvoiceID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.LineIDsJSON != "" && m.LineIDsJSON != "[]" {
		var ids []string
		if err := json.Unmarshal([]byte(m.LineIDsJSON), &ids); err != nil {
			zap.L().Named("persistence").Warn("failed to parse line_ids JSON",
				zap.String("order_reference", m.OrderReference),
				zap.Error(err))
		} else {
			cp.LineIDs = ids
		}
	}
	return cp
}

// SagaCheckpointModelFromDomain converts a domain checkpoint to its model.
func SagaCheckpointModelFromDomain(cp *integration.SagaCheckpoint) *SagaCheckpointModel {
	lineIDs := "[]"
	if len(cp.LineIDs) > 0 {
		if raw, err := json.Marshal(cp.LineIDs); err == nil {
			lineIDs = string(raw)
		}
	}
	return &SagaCheckpointModel{
		BaseModel: BaseModel{
			ID:        cp.ID,
			CreatedAt: cp.CreatedAt,
			UpdatedAt: cp.UpdatedAt,
		},
		OrderReference: cp.OrderReference,
		Stage:          cp.Stage,
		CustomerID:     cp.CustomerID,
		InvoiceID:      cp.InvoiceID,
		LineIDsJSON:    lineIDs,
	}
}
