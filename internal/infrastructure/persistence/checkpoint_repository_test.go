package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
	"github.com/bicicare/invoicebridge/internal/infrastructure/persistence/models"
)

func setupCheckpointTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SagaCheckpointModel{}))
	return db
}

func TestCheckpointRepository_SaveAndFind(t *testing.T) {
	repo := NewGormCheckpointRepository(setupCheckpointTestDB(t))
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByOrderReference(ctx, "missing")
		assert.ErrorIs(t, err, integration.ErrCheckpointNotFound)
	})

	cp := integration.NewSagaCheckpoint("1042", integration.CheckpointShellCreated, "cust-1", "inv-1")
	require.NoError(t, repo.Save(ctx, cp))

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.FindByOrderReference(ctx, "1042")
		require.NoError(t, err)
		assert.Equal(t, cp.ID, got.ID)
		assert.Equal(t, integration.CheckpointShellCreated, got.Stage)
		assert.Equal(t, "cust-1", got.CustomerID)
		assert.Equal(t, "inv-1", got.InvoiceID)
		assert.Empty(t, got.LineIDs)
	})

	t.Run("upsert advances the same row", func(t *testing.T) {
		cp.Advance(integration.CheckpointLinesAllocated, []string{"l-1", "l-2"})
		require.NoError(t, repo.Save(ctx, cp))

		got, err := repo.FindByOrderReference(ctx, "1042")
		require.NoError(t, err)
		assert.Equal(t, cp.ID, got.ID)
		assert.Equal(t, integration.CheckpointLinesAllocated, got.Stage)
		assert.Equal(t, []string{"l-1", "l-2"}, got.LineIDs)
	})

	t.Run("a fresh checkpoint for the same order keeps the original id", func(t *testing.T) {
		other := integration.NewSagaCheckpoint("1042", integration.CheckpointCompleted, "cust-1", "inv-1")
		require.NoError(t, repo.Save(ctx, other))

		got, err := repo.FindByOrderReference(ctx, "1042")
		require.NoError(t, err)
		assert.Equal(t, cp.ID, got.ID)
		assert.Equal(t, integration.CheckpointCompleted, got.Stage)
	})
}

func TestCheckpointRepository_SaveValidation(t *testing.T) {
	repo := NewGormCheckpointRepository(setupCheckpointTestDB(t))
	ctx := context.Background()

	assert.Error(t, repo.Save(ctx, nil))
	assert.Error(t, repo.Save(ctx, &integration.SagaCheckpoint{Stage: integration.CheckpointCompleted}))
	assert.Error(t, repo.Save(ctx, &integration.SagaCheckpoint{OrderReference: "1", Stage: "halfway"}))

	t.Run("fills id and timestamps", func(t *testing.T) {
		cp := &integration.SagaCheckpoint{OrderReference: "7", Stage: integration.CheckpointShellCreated, InvoiceID: "inv-7"}
		require.NoError(t, repo.Save(ctx, cp))
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", cp.ID.String())
		assert.False(t, cp.CreatedAt.IsZero())
	})
}

func TestCheckpointRepository_DeleteCompletedBefore(t *testing.T) {
	db := setupCheckpointTestDB(t)
	repo := NewGormCheckpointRepository(db)
	ctx := context.Background()

	old := integration.NewSagaCheckpoint("1", integration.CheckpointCompleted, "c", "i1")
	old.UpdatedAt = time.Now().Add(-60 * 24 * time.Hour)
	recent := integration.NewSagaCheckpoint("2", integration.CheckpointCompleted, "c", "i2")
	pending := integration.NewSagaCheckpoint("3", integration.CheckpointShellCreated, "c", "i3")
	pending.UpdatedAt = old.UpdatedAt
	for _, cp := range []*integration.SagaCheckpoint{old, recent, pending} {
		require.NoError(t, repo.Save(ctx, cp))
	}

	n, err := repo.DeleteCompletedBefore(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByOrderReference(ctx, "1")
	assert.ErrorIs(t, err, integration.ErrCheckpointNotFound)
	_, err = repo.FindByOrderReference(ctx, "3")
	assert.NoError(t, err)
}

func TestSagaCheckpointModel_BadLineIDs(t *testing.T) {
	m := &models.SagaCheckpointModel{OrderReference: "1", Stage: integration.CheckpointLinesAllocated, LineIDsJSON: "{broken"}
	assert.Nil(t, m.ToDomain().LineIDs)
}
