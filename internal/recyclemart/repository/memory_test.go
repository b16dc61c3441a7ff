package repository

import (
	"context"
	"testing"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo *MemoryRepository) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "ada", "hash", models.RoleGenerator)
	require.NoError(t, err)

	center := &models.CollationCenter{ID: uuid.New(), Name: "Yaba", CapacityKg: 500}
	require.NoError(t, repo.CreateCenter(ctx, center))

	return userID, center.ID
}

func pendingRecord(userID, centerID uuid.UUID, created time.Time) *models.WasteRecord {
	return &models.WasteRecord{
		ID:          uuid.New(),
		GeneratorID: userID,
		CenterID:    centerID,
		Category:    models.CategoryPET,
		Status:      models.StatusPending,
		Version:     1,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestMemoryDuplicateLogin(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo)

	_, err := repo.CreateUser(context.Background(), "ada", "other", models.RoleRecycler)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestMemoryPendingOldestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	userID, centerID := seed(t, repo)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	newer := pendingRecord(userID, centerID, base.Add(time.Hour))
	older := pendingRecord(userID, centerID, base)
	require.NoError(t, repo.CreateWasteRecord(ctx, newer))
	require.NoError(t, repo.CreateWasteRecord(ctx, older))

	pending, err := repo.ListPendingRecords(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)

	other := uuid.New()
	pending, err = repo.ListPendingRecords(ctx, &other, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryApplyAssessmentsIsAllOrNothing(t *testing.T) {
	repo := NewMemoryRepository()
	userID, centerID := seed(t, repo)
	ctx := context.Background()

	rec := pendingRecord(userID, centerID, time.Now())
	require.NoError(t, repo.CreateWasteRecord(ctx, rec))

	at := time.Now()
	writes := []AssessmentWrite{
		{RecordID: rec.ID, Assessment: models.Assessment{WeightKg: 2, QualityScore: 8, CreditsEarned: 16, AssessedAt: at}, Status: models.StatusSorted},
		{RecordID: uuid.New(), Assessment: models.Assessment{WeightKg: 2, QualityScore: 8, CreditsEarned: 16, AssessedAt: at}, Status: models.StatusSorted},
	}
	_, err := repo.ApplyAssessments(ctx, writes)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := repo.GetWasteRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Assessed())
	assert.Equal(t, 1, got.Version)
}

func TestMemoryApplyAssessmentsVersionCheck(t *testing.T) {
	repo := NewMemoryRepository()
	userID, centerID := seed(t, repo)
	ctx := context.Background()

	rec := pendingRecord(userID, centerID, time.Now())
	require.NoError(t, repo.CreateWasteRecord(ctx, rec))

	stale := 7
	_, err := repo.ApplyAssessments(ctx, []AssessmentWrite{{
		RecordID:        rec.ID,
		Assessment:      models.Assessment{WeightKg: 1, QualityScore: 5, CreditsEarned: 5, AssessedAt: time.Now()},
		Status:          models.StatusSorted,
		ExpectedVersion: &stale,
	}})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	current := 1
	updated, err := repo.ApplyAssessments(ctx, []AssessmentWrite{{
		RecordID:        rec.ID,
		Assessment:      models.Assessment{WeightKg: 1, QualityScore: 5, CreditsEarned: 5, AssessedAt: time.Now()},
		Status:          models.StatusSorted,
		ExpectedVersion: &current,
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, updated[0].Version)
}

func TestMemoryScoredSinceSkipsUnscored(t *testing.T) {
	repo := NewMemoryRepository()
	userID, centerID := seed(t, repo)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.CreateWasteRecord(ctx, pendingRecord(userID, centerID, now)))

	fm := &models.FieldMarshal{ID: uuid.New(), FullName: "Bola", CenterID: centerID, RegisteredBy: userID}
	require.NoError(t, repo.CreateMarshal(ctx, fm))
	score := 0
	scored := &models.MarshalDelivery{ID: uuid.New(), MarshalID: fm.ID, CenterID: centerID, Category: models.CategoryHDPE,
		WeightKg: 4, QualityScore: &score, CreatedAt: now, UpdatedAt: now}
	unscored := &models.MarshalDelivery{ID: uuid.New(), MarshalID: fm.ID, CenterID: centerID, Category: models.CategoryHDPE,
		WeightKg: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateDelivery(ctx, scored))
	require.NoError(t, repo.CreateDelivery(ctx, unscored))

	items, err := repo.ListScoredSince(ctx, now.Add(-time.Minute), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, scored.ID, items[0].ID)
	assert.Equal(t, models.ProvenanceMarshalDelivery, items[0].Source)
	assert.Zero(t, items[0].QualityScore)
}
