package service

import (
	"context"
	"strings"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitInput is a generator's waste-drop claim. Weight is never supplied.
type SubmitInput struct {
	CenterID uuid.UUID
	Category string
	PhotoURL string
}

// Submit records a new unassessed waste record for the calling generator
func (s *WasteService) Submit(ctx context.Context, actor models.Actor, in SubmitInput) (*models.WasteRecord, error) {
	if err := authorize(actor, "only generators submit waste", models.RoleGenerator); err != nil {
		return nil, err
	}

	// Validate input
	category, ok := models.ParseCategory(in.Category)
	if !ok {
		return nil, apperr.Invalid("waste_category", "must be one of %s", categoryList())
	}
	var photo *string
	if in.PhotoURL != "" {
		if !utils.IsWellFormedURL(in.PhotoURL) {
			return nil, apperr.Invalid("photo_url", "must be a well-formed http(s) URL")
		}
		p := strings.TrimSpace(in.PhotoURL)
		photo = &p
	}
	if in.CenterID == uuid.Nil {
		return nil, apperr.Invalid("center_id", "is required")
	}

	// Check destination center
	center, err := s.repo.GetCenter(ctx, in.CenterID)
	if err != nil {
		return nil, apperr.Transient("get collation center", err)
	}
	if center == nil {
		return nil, apperr.NotFound("collation center")
	}
	if !center.AcceptsDropOffs() {
		return nil, apperr.Invalid("center_id", "collation center is at capacity")
	}

	now := s.now()
	record := &models.WasteRecord{
		ID:          uuid.New(),
		GeneratorID: actor.UserID,
		CenterID:    center.ID,
		Category:    category,
		PhotoURL:    photo,
		Status:      models.StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateWasteRecord(ctx, record); err != nil {
		return nil, apperr.Transient("create waste record", err)
	}

	s.publish(ctx, changefeed.Event{
		Table:    changefeed.TableWasteRecords,
		Op:       changefeed.OpInsert,
		RecordID: record.ID,
		OwnerID:  record.GeneratorID,
		CenterID: record.CenterID,
	})
	s.log.Info("waste submitted",
		zap.String("record_id", record.ID.String()),
		zap.String("generator_id", actor.UserID.String()),
		zap.String("category", string(category)),
	)

	return record, nil
}

// PendingQueue returns unassessed records oldest first
func (s *WasteService) PendingQueue(ctx context.Context, actor models.Actor, centerID *uuid.UUID, limit int) ([]models.WasteRecord, error) {
	if err := authorize(actor, "only controllers view the assessment queue", models.RoleController, models.RoleAdmin); err != nil {
		return nil, err
	}

	records, err := s.repo.ListPendingRecords(ctx, centerID, limit)
	if err != nil {
		return nil, apperr.Transient("list pending records", err)
	}
	return records, nil
}

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
