package service

import (
	"context"
	"math"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bulk assessment presets
const (
	PresetApprove = "approve"
	PresetReject  = "reject"

	ApproveQualityScore = 8
	RejectQualityScore  = 3
)

// WeightPrecisionKg is the resolution measured weights are kept at
const WeightPrecisionKg = 0.01

const weightScale = 1 / WeightPrecisionKg

// AssessInput carries a controller's measurement of one record
type AssessInput struct {
	RecordID        uuid.UUID
	WeightKg        float64
	QualityScore    int
	TargetStatus    string
	Notes           string
	ExpectedVersion *int
}

// BulkItem is one record of a bulk assessment with its measured weight
type BulkItem struct {
	RecordID uuid.UUID
	WeightKg float64
}

// BulkAssessInput applies one quality score to many records. Either
// QualityScore or Preset must be set.
type BulkAssessInput struct {
	Items        []BulkItem
	QualityScore *int
	Preset       string
	TargetStatus string
	Notes        string
}

// Assess weighs, scores and prices one waste record in a single write.
// Re-assessing an assessed record overwrites its pricing fields.
func (s *WasteService) Assess(ctx context.Context, actor models.Actor, in AssessInput) (*models.WasteRecord, error) {
	if err := authorize(actor, "only controllers assess waste", models.RoleController, models.RoleAdmin); err != nil {
		return nil, err
	}

	requested, err := targetStatus(in.TargetStatus)
	if err != nil {
		return nil, err
	}
	weight, err := validateMeasurement("weight_kg", in.WeightKg, in.QualityScore)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.GetWasteRecord(ctx, in.RecordID)
	if err != nil {
		return nil, apperr.Transient("get waste record", err)
	}
	if record == nil {
		return nil, apperr.NotFound("waste record")
	}
	status, err := statusAfterAssessment(record, requested, in.TargetStatus != "")
	if err != nil {
		return nil, err
	}

	write := s.assessmentWrite(actor, record, weight, in.QualityScore, status, in.Notes)
	write.ExpectedVersion = in.ExpectedVersion

	updated, err := s.repo.ApplyAssessments(ctx, []repository.AssessmentWrite{write})
	if err != nil {
		return nil, apperr.Transient("apply assessment", err)
	}

	result := updated[0]
	s.publishAssessed(ctx, &result)
	s.log.Info("waste assessed",
		zap.String("record_id", result.ID.String()),
		zap.String("controller_id", actor.UserID.String()),
		zap.Float64("weight_kg", weight),
		zap.Int("quality_score", in.QualityScore),
		zap.Int("credits", result.Credits()),
	)

	return &result, nil
}

// BulkAssess applies one quality score to every listed record. Nothing is
// written unless every record validates and exists.
func (s *WasteService) BulkAssess(ctx context.Context, actor models.Actor, in BulkAssessInput) ([]models.WasteRecord, error) {
	if err := authorize(actor, "only controllers assess waste", models.RoleController, models.RoleAdmin); err != nil {
		return nil, err
	}

	quality, err := bulkQuality(in)
	if err != nil {
		return nil, err
	}
	requested, err := targetStatus(in.TargetStatus)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, apperr.Invalid("items", "at least one record is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(in.Items))
	weights := make([]float64, len(in.Items))
	for i, item := range in.Items {
		if _, dup := seen[item.RecordID]; dup {
			return nil, apperr.Invalid("items", "record %s listed twice", item.RecordID)
		}
		seen[item.RecordID] = struct{}{}
		weights[i], err = validateMeasurement("items.weight_kg", item.WeightKg, quality)
		if err != nil {
			return nil, err
		}
	}

	writes := make([]repository.AssessmentWrite, 0, len(in.Items))
	for i, item := range in.Items {
		record, err := s.repo.GetWasteRecord(ctx, item.RecordID)
		if err != nil {
			return nil, apperr.Transient("get waste record", err)
		}
		if record == nil {
			return nil, apperr.NotFound("waste record " + item.RecordID.String())
		}
		status, err := statusAfterAssessment(record, requested, in.TargetStatus != "")
		if err != nil {
			return nil, err
		}
		writes = append(writes, s.assessmentWrite(actor, record, weights[i], quality, status, in.Notes))
	}

	updated, err := s.repo.ApplyAssessments(ctx, writes)
	if err != nil {
		return nil, apperr.Transient("apply bulk assessment", err)
	}

	for i := range updated {
		s.publishAssessed(ctx, &updated[i])
	}
	s.log.Info("bulk assessment applied",
		zap.String("controller_id", actor.UserID.String()),
		zap.Int("records", len(updated)),
		zap.Int("quality_score", quality),
	)

	return updated, nil
}

// UpdateStatus moves an assessed record forward through logistics. Pricing
// fields are left untouched.
func (s *WasteService) UpdateStatus(ctx context.Context, actor models.Actor, recordID uuid.UUID, rawStatus string) (*models.WasteRecord, error) {
	if !actor.Authenticated() {
		return nil, apperr.ErrUnauthenticated
	}

	status, ok := models.ParseStatus(rawStatus)
	if !ok {
		return nil, apperr.Invalid("status", "unknown status %q", rawStatus)
	}
	if !canSetStatus(actor.Role, status) {
		return nil, apperr.Forbidden("role " + string(actor.Role) + " cannot set status " + string(status))
	}

	record, err := s.repo.GetWasteRecord(ctx, recordID)
	if err != nil {
		return nil, apperr.Transient("get waste record", err)
	}
	if record == nil {
		return nil, apperr.NotFound("waste record")
	}
	if !record.Assessed() {
		return nil, apperr.Invalid("status", "record has not been assessed")
	}
	if !record.Status.Precedes(status) {
		return nil, apperr.Invalid("status", "cannot move from %s to %s", record.Status, status)
	}

	updated, err := s.repo.UpdateRecordStatus(ctx, recordID, status, s.now())
	if err != nil {
		return nil, apperr.Transient("update record status", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("waste record")
	}

	s.publishAssessed(ctx, updated)
	return updated, nil
}

func (s *WasteService) assessmentWrite(actor models.Actor, record *models.WasteRecord, weight float64, quality int, status models.RecordStatus, notes string) repository.AssessmentWrite {
	return repository.AssessmentWrite{
		RecordID: record.ID,
		Assessment: models.Assessment{
			WeightKg:      weight,
			QualityScore:  quality,
			CreditsEarned: s.pricing.Credits(record.Category, weight, quality),
			AssessedBy:    actor.UserID,
			Notes:         notes,
			AssessedAt:    s.now(),
		},
		Status: status,
	}
}

func (s *WasteService) publishAssessed(ctx context.Context, record *models.WasteRecord) {
	s.publish(ctx, changefeed.Event{
		Table:    changefeed.TableWasteRecords,
		Op:       changefeed.OpUpdate,
		RecordID: record.ID,
		OwnerID:  record.GeneratorID,
		CenterID: record.CenterID,
		At:       record.UpdatedAt,
	})
}

func targetStatus(raw string) (models.RecordStatus, error) {
	if raw == "" {
		return models.StatusSorted, nil
	}
	status, ok := models.ParseStatus(raw)
	if !ok || status == models.StatusPending {
		return "", apperr.Invalid("target_status", "must be one of sorted, picked_up, delivered, recycled")
	}
	return status, nil
}

// statusAfterAssessment keeps corrections of an assessed record from moving it
// back through logistics. Without an explicit target the status is kept.
func statusAfterAssessment(record *models.WasteRecord, requested models.RecordStatus, explicit bool) (models.RecordStatus, error) {
	if !record.Assessed() {
		return requested, nil
	}
	if !explicit {
		return record.Status, nil
	}
	if requested != record.Status && !record.Status.Precedes(requested) {
		return "", apperr.Invalid("target_status", "cannot move from %s to %s", record.Status, requested)
	}
	return requested, nil
}

// validateMeasurement checks a measured weight and score and returns the weight
// rounded to WeightPrecisionKg, the resolution weights are stored at
func validateMeasurement(weightField string, weight float64, quality int) (float64, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return 0, apperr.Invalid(weightField, "must be a number")
	}
	rounded := math.Round(weight*weightScale) / weightScale
	if rounded <= 0 {
		return 0, apperr.Invalid(weightField, "must be at least %.2f", WeightPrecisionKg)
	}
	if !models.ValidQualityScore(quality) {
		return 0, apperr.Invalid("quality_score", "must be between %d and %d", models.MinQualityScore, models.MaxQualityScore)
	}
	return rounded, nil
}

func bulkQuality(in BulkAssessInput) (int, error) {
	switch {
	case in.QualityScore != nil && in.Preset != "":
		return 0, apperr.Invalid("preset", "give either quality_score or preset, not both")
	case in.QualityScore != nil:
		return *in.QualityScore, nil
	case in.Preset == PresetApprove:
		return ApproveQualityScore, nil
	case in.Preset == PresetReject:
		return RejectQualityScore, nil
	case in.Preset != "":
		return 0, apperr.Invalid("preset", "must be approve or reject")
	default:
		return 0, apperr.Invalid("quality_score", "is required")
	}
}

// canSetStatus maps logistics roles to the statuses they may record
func canSetStatus(role models.Role, status models.RecordStatus) bool {
	switch role {
	case models.RoleController, models.RoleAdmin:
		return true
	case models.RoleDriver:
		return status == models.StatusPickedUp || status == models.StatusDelivered
	case models.RoleRecycler:
		return status == models.StatusRecycled
	default:
		return false
	}
}
