package repository

import (
	"context"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
)

// Repository defines the interface for data access operations.
// Getters return (nil, nil) when the row does not exist.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, login, passwordHash string, role models.Role) (uuid.UUID, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Center operations
	CreateCenter(ctx context.Context, center *models.CollationCenter) error
	GetCenter(ctx context.Context, id uuid.UUID) (*models.CollationCenter, error)
	ListCenters(ctx context.Context) ([]models.CollationCenter, error)

	// Waste record operations
	CreateWasteRecord(ctx context.Context, record *models.WasteRecord) error
	GetWasteRecord(ctx context.Context, id uuid.UUID) (*models.WasteRecord, error)
	ListPendingRecords(ctx context.Context, centerID *uuid.UUID, limit int) ([]models.WasteRecord, error)
	ListUserRecords(ctx context.Context, userID uuid.UUID) ([]models.WasteRecord, error)
	ListRecordsInRange(ctx context.Context, from, to time.Time) ([]models.WasteRecord, error)
	ApplyAssessments(ctx context.Context, writes []AssessmentWrite) ([]models.WasteRecord, error)
	UpdateRecordStatus(ctx context.Context, id uuid.UUID, status models.RecordStatus, at time.Time) (*models.WasteRecord, error)

	// Marshal operations
	CreateMarshal(ctx context.Context, marshal *models.FieldMarshal) error
	GetMarshal(ctx context.Context, id uuid.UUID) (*models.FieldMarshal, error)
	CreateDelivery(ctx context.Context, delivery *models.MarshalDelivery) error
	GetDelivery(ctx context.Context, id uuid.UUID) (*models.MarshalDelivery, error)
	ApplyDeliveryAssessment(ctx context.Context, write DeliveryAssessmentWrite) (*models.MarshalDelivery, error)
	ListDeliveriesByMarshalUser(ctx context.Context, userID uuid.UUID) ([]models.MarshalDelivery, error)
	ListDeliveriesInRange(ctx context.Context, from, to time.Time) ([]models.MarshalDelivery, error)

	// Aggregation source
	ListScoredSince(ctx context.Context, since time.Time, centerID *uuid.UUID) ([]models.ScoredItem, error)

	// Initialize and close
	InitDB(databaseURI string) error
	Close() error
}

// AssessmentWrite sets every pricing field of one waste record in a single write.
// A nil ExpectedVersion means last write wins.
type AssessmentWrite struct {
	RecordID        uuid.UUID
	Assessment      models.Assessment
	Status          models.RecordStatus
	ExpectedVersion *int
}

// DeliveryAssessmentWrite scores one marshal delivery
type DeliveryAssessmentWrite struct {
	DeliveryID      uuid.UUID
	WeightKg        float64
	QualityScore    int
	CreditsEarned   int
	At              time.Time
	ExpectedVersion *int
}
