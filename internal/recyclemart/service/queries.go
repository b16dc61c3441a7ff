package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerKeyPrefix prefixes per-user ledger cache keys
const LedgerKeyPrefix = "ledger:"

// LedgerView is a ledger with its freshness
type LedgerView struct {
	models.CreditLedger
	Stale bool `json:"stale"`
}

// RangeExport is every record and delivery created within a time range
type RangeExport struct {
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
	Records    []models.WasteRecord     `json:"records"`
	Deliveries []models.MarshalDelivery `json:"deliveries"`
}

// CreateCenterInput describes a new collation center
type CreateCenterInput struct {
	Name           string
	Address        string
	CapacityKg     float64
	CurrentStockKg float64
}

// Ledger projects the caller's credits. A backend failure falls back to the
// last projection served for the caller.
func (s *WasteService) Ledger(ctx context.Context, actor models.Actor) (LedgerView, error) {
	if !actor.Authenticated() {
		return LedgerView{}, apperr.ErrUnauthenticated
	}

	key := LedgerKeyPrefix + actor.UserID.String()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return LedgerView{CreditLedger: cached.(models.CreditLedger)}, nil
		}
	}

	ledger, err := s.projectLedger(ctx, actor)
	if err != nil {
		if s.cache != nil {
			if last, ok := s.cache.LastGood(key); ok {
				s.log.Warn("serving stale ledger", zap.String("user_id", actor.UserID.String()), zap.Error(err))
				return LedgerView{CreditLedger: last.(models.CreditLedger), Stale: true}, nil
			}
		}
		return LedgerView{}, err
	}

	if s.cache != nil {
		s.cache.Set(key, ledger)
	}
	return LedgerView{CreditLedger: ledger}, nil
}

func (s *WasteService) projectLedger(ctx context.Context, actor models.Actor) (models.CreditLedger, error) {
	records, err := s.repo.ListUserRecords(ctx, actor.UserID)
	if err != nil {
		return models.CreditLedger{}, apperr.Transient("list user records", err)
	}

	// Any user can be linked to a marshal, whatever their role
	deliveries, err := s.repo.ListDeliveriesByMarshalUser(ctx, actor.UserID)
	if err != nil {
		return models.CreditLedger{}, apperr.Transient("list marshal deliveries", err)
	}

	return s.ledger.Project(actor.UserID, records, deliveries), nil
}

// InvalidateLedger drops the cached ledger of the event's owner
func (s *WasteService) InvalidateLedger(ev changefeed.Event) {
	if s.cache == nil || ev.OwnerID == uuid.Nil {
		return
	}
	s.cache.Invalidate(LedgerKeyPrefix + ev.OwnerID.String())
}

// History lists the caller's submissions and the deliveries of marshals linked
// to the caller, newest first
func (s *WasteService) History(ctx context.Context, actor models.Actor) ([]models.HistoryEntry, error) {
	if !actor.Authenticated() {
		return nil, apperr.ErrUnauthenticated
	}

	records, err := s.repo.ListUserRecords(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Transient("list user records", err)
	}
	entries := make([]models.HistoryEntry, 0, len(records))
	for i := range records {
		entries = append(entries, records[i].History())
	}

	deliveries, err := s.repo.ListDeliveriesByMarshalUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Transient("list marshal deliveries", err)
	}
	for i := range deliveries {
		entries = append(entries, deliveries[i].History())
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// RecordsInRange returns everything created in [from, to) for export
func (s *WasteService) RecordsInRange(ctx context.Context, actor models.Actor, from, to time.Time) (*RangeExport, error) {
	if err := authorize(actor, "only admins export records", models.RoleAdmin); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, apperr.Invalid("from", "must be before to")
	}

	records, err := s.repo.ListRecordsInRange(ctx, from, to)
	if err != nil {
		return nil, apperr.Transient("list records in range", err)
	}
	deliveries, err := s.repo.ListDeliveriesInRange(ctx, from, to)
	if err != nil {
		return nil, apperr.Transient("list deliveries in range", err)
	}

	return &RangeExport{From: from, To: to, Records: records, Deliveries: deliveries}, nil
}

// ListCenters returns every collation center
func (s *WasteService) ListCenters(ctx context.Context) ([]models.CollationCenter, error) {
	centers, err := s.repo.ListCenters(ctx)
	if err != nil {
		return nil, apperr.Transient("list collation centers", err)
	}
	return centers, nil
}

// CreateCenter registers a collation center
func (s *WasteService) CreateCenter(ctx context.Context, actor models.Actor, in CreateCenterInput) (*models.CollationCenter, error) {
	if err := authorize(actor, "only admins create centers", models.RoleAdmin); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if in.CapacityKg <= 0 {
		return nil, apperr.Invalid("capacity_kg", "must be greater than 0")
	}
	if in.CurrentStockKg < 0 {
		return nil, apperr.Invalid("current_stock_kg", "must not be negative")
	}

	center := &models.CollationCenter{
		ID:             uuid.New(),
		Name:           name,
		Address:        strings.TrimSpace(in.Address),
		CapacityKg:     in.CapacityKg,
		CurrentStockKg: in.CurrentStockKg,
		CreatedAt:      s.now(),
	}
	if err := s.repo.CreateCenter(ctx, center); err != nil {
		return nil, apperr.Transient("create collation center", err)
	}

	s.publish(ctx, changefeed.Event{
		Table:    changefeed.TableCenters,
		Op:       changefeed.OpInsert,
		RecordID: center.ID,
		CenterID: center.ID,
	})
	return center, nil
}
