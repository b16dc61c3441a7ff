package service

import (
	"context"
	"strings"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterMarshalInput describes a new field marshal
type RegisterMarshalInput struct {
	FullName string
	Phone    string
	CenterID uuid.UUID
	UserID   *uuid.UUID
}

// LogDeliveryInput is a pre-weighed marshal delivery. A nil QualityScore means
// the delivery has not been scored yet.
type LogDeliveryInput struct {
	MarshalID    uuid.UUID
	Category     string
	WeightKg     float64
	QualityScore *int
}

// AssessDeliveryInput scores a marshal delivery. WeightKg overrides the
// logged weight when set.
type AssessDeliveryInput struct {
	DeliveryID      uuid.UUID
	QualityScore    int
	WeightKg        *float64
	ExpectedVersion *int
}

// RegisterMarshal adds a field marshal to the registry
func (s *WasteService) RegisterMarshal(ctx context.Context, actor models.Actor, in RegisterMarshalInput) (*models.FieldMarshal, error) {
	if err := authorize(actor, "only marshals and admins register marshals", models.RoleMarshal, models.RoleAdmin); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.FullName)
	phone := strings.TrimSpace(in.Phone)
	if name == "" {
		return nil, apperr.Invalid("full_name", "is required")
	}
	if phone == "" {
		return nil, apperr.Invalid("phone", "is required")
	}

	center, err := s.repo.GetCenter(ctx, in.CenterID)
	if err != nil {
		return nil, apperr.Transient("get collation center", err)
	}
	if center == nil {
		return nil, apperr.NotFound("collation center")
	}
	if in.UserID != nil {
		user, err := s.repo.GetUserByID(ctx, *in.UserID)
		if err != nil {
			return nil, apperr.Transient("get user", err)
		}
		if user == nil {
			return nil, apperr.NotFound("user")
		}
	}

	marshal := &models.FieldMarshal{
		ID:           uuid.New(),
		UserID:       in.UserID,
		FullName:     name,
		Phone:        phone,
		CenterID:     center.ID,
		RegisteredBy: actor.UserID,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateMarshal(ctx, marshal); err != nil {
		return nil, apperr.Transient("create field marshal", err)
	}

	s.log.Info("field marshal registered",
		zap.String("marshal_id", marshal.ID.String()),
		zap.String("registered_by", actor.UserID.String()),
	)
	return marshal, nil
}

// LogDelivery records waste a marshal delivered, already weighed
func (s *WasteService) LogDelivery(ctx context.Context, actor models.Actor, in LogDeliveryInput) (*models.MarshalDelivery, error) {
	if err := authorize(actor, "only marshals, controllers and admins log deliveries",
		models.RoleMarshal, models.RoleController, models.RoleAdmin); err != nil {
		return nil, err
	}

	category, ok := models.ParseCategory(in.Category)
	if !ok {
		return nil, apperr.Invalid("waste_category", "must be one of %s", categoryList())
	}
	quality := 0
	if in.QualityScore != nil {
		quality = *in.QualityScore
	}
	weight, err := validateMeasurement("weight_kg", in.WeightKg, quality)
	if err != nil {
		return nil, err
	}

	marshal, err := s.repo.GetMarshal(ctx, in.MarshalID)
	if err != nil {
		return nil, apperr.Transient("get field marshal", err)
	}
	if marshal == nil {
		return nil, apperr.NotFound("field marshal")
	}

	now := s.now()
	delivery := &models.MarshalDelivery{
		ID:        uuid.New(),
		MarshalID: marshal.ID,
		CenterID:  marshal.CenterID,
		Category:  category,
		WeightKg:  weight,
		LoggedBy:  actor.UserID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.QualityScore != nil {
		q := *in.QualityScore
		credits := s.pricing.Credits(category, weight, q)
		delivery.QualityScore = &q
		delivery.CreditsEarned = &credits
	}

	if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, apperr.Transient("create marshal delivery", err)
	}

	s.publish(ctx, changefeed.Event{
		Table:    changefeed.TableMarshalDeliveries,
		Op:       changefeed.OpInsert,
		RecordID: delivery.ID,
		OwnerID:  marshalOwner(marshal),
		CenterID: delivery.CenterID,
	})
	s.log.Info("marshal delivery logged",
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("marshal_id", marshal.ID.String()),
		zap.Float64("weight_kg", delivery.WeightKg),
		zap.Bool("assessed", delivery.Assessed()),
	)

	return delivery, nil
}

// AssessDelivery scores a marshal delivery and prices it
func (s *WasteService) AssessDelivery(ctx context.Context, actor models.Actor, in AssessDeliveryInput) (*models.MarshalDelivery, error) {
	if err := authorize(actor, "only controllers assess deliveries", models.RoleController, models.RoleAdmin); err != nil {
		return nil, err
	}

	delivery, err := s.repo.GetDelivery(ctx, in.DeliveryID)
	if err != nil {
		return nil, apperr.Transient("get marshal delivery", err)
	}
	if delivery == nil {
		return nil, apperr.NotFound("marshal delivery")
	}

	weight := delivery.WeightKg
	if in.WeightKg != nil {
		weight = *in.WeightKg
	}
	weight, err = validateMeasurement("weight_kg", weight, in.QualityScore)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyDeliveryAssessment(ctx, repository.DeliveryAssessmentWrite{
		DeliveryID:      delivery.ID,
		WeightKg:        weight,
		QualityScore:    in.QualityScore,
		CreditsEarned:   s.pricing.Credits(delivery.Category, weight, in.QualityScore),
		At:              s.now(),
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		return nil, apperr.Transient("apply delivery assessment", err)
	}

	owner := uuid.Nil
	if marshal, err := s.repo.GetMarshal(ctx, updated.MarshalID); err == nil && marshal != nil {
		owner = marshalOwner(marshal)
	}
	s.publish(ctx, changefeed.Event{
		Table:    changefeed.TableMarshalDeliveries,
		Op:       changefeed.OpUpdate,
		RecordID: updated.ID,
		OwnerID:  owner,
		CenterID: updated.CenterID,
		At:       updated.UpdatedAt,
	})

	return updated, nil
}

func marshalOwner(m *models.FieldMarshal) uuid.UUID {
	if m.UserID == nil {
		return uuid.Nil
	}
	return *m.UserID
}
