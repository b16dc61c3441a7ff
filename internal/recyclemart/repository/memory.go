package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
)

// MemoryRepository implements Repository in process memory. It backs
// development runs without DATABASE_URI and the service tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]models.User
	centers    map[uuid.UUID]models.CollationCenter
	records    map[uuid.UUID]models.WasteRecord
	marshals   map[uuid.UUID]models.FieldMarshal
	deliveries map[uuid.UUID]models.MarshalDelivery
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[uuid.UUID]models.User),
		centers:    make(map[uuid.UUID]models.CollationCenter),
		records:    make(map[uuid.UUID]models.WasteRecord),
		marshals:   make(map[uuid.UUID]models.FieldMarshal),
		deliveries: make(map[uuid.UUID]models.MarshalDelivery),
	}
}

// InitDB is a no-op for the in-memory store
func (m *MemoryRepository) InitDB(string) error { return nil }

// Close is a no-op for the in-memory store
func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) CreateUser(_ context.Context, login, passwordHash string, role models.Role) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Login == login {
			return uuid.Nil, apperr.ErrConflict
		}
	}
	id := uuid.New()
	m.users[id] = models.User{ID: id, Login: login, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	return id, nil
}

func (m *MemoryRepository) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Login == login {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryRepository) CreateCenter(_ context.Context, c *models.CollationCenter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.centers[c.ID] = *c
	return nil
}

func (m *MemoryRepository) GetCenter(_ context.Context, id uuid.UUID) (*models.CollationCenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.centers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryRepository) ListCenters(_ context.Context) ([]models.CollationCenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	centers := make([]models.CollationCenter, 0, len(m.centers))
	for _, c := range m.centers {
		centers = append(centers, c)
	}
	sort.Slice(centers, func(i, j int) bool { return centers[i].Name < centers[j].Name })
	return centers, nil
}

func (m *MemoryRepository) CreateWasteRecord(_ context.Context, rec *models.WasteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[rec.GeneratorID]; !ok {
		return apperr.NotFound("generator")
	}
	if _, ok := m.centers[rec.CenterID]; !ok {
		return apperr.NotFound("collation center")
	}
	m.records[rec.ID] = cloneRecord(*rec)
	return nil
}

func (m *MemoryRepository) GetWasteRecord(_ context.Context, id uuid.UUID) (*models.WasteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

func (m *MemoryRepository) ListPendingRecords(_ context.Context, centerID *uuid.UUID, limit int) ([]models.WasteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []models.WasteRecord
	for _, rec := range m.records {
		if rec.Assessed() || rec.Status != models.StatusPending {
			continue
		}
		if centerID != nil && rec.CenterID != *centerID {
			continue
		}
		pending = append(pending, cloneRecord(rec))
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MemoryRepository) ListUserRecords(_ context.Context, userID uuid.UUID) ([]models.WasteRecord, error) {
	return m.filterRecords(func(r models.WasteRecord) bool { return r.GeneratorID == userID }, true), nil
}

func (m *MemoryRepository) ListRecordsInRange(_ context.Context, from, to time.Time) ([]models.WasteRecord, error) {
	return m.filterRecords(func(r models.WasteRecord) bool {
		return !r.CreatedAt.Before(from) && r.CreatedAt.Before(to)
	}, false), nil
}

func (m *MemoryRepository) filterRecords(keep func(models.WasteRecord) bool, newestFirst bool) []models.WasteRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.WasteRecord
	for _, rec := range m.records {
		if keep(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ApplyAssessments validates every write before touching any record
func (m *MemoryRepository) ApplyAssessments(_ context.Context, writes []AssessmentWrite) ([]models.WasteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		rec, ok := m.records[w.RecordID]
		if !ok {
			return nil, apperr.NotFound("waste record " + w.RecordID.String())
		}
		if w.ExpectedVersion != nil && *w.ExpectedVersion != rec.Version {
			return nil, apperr.ErrConflict
		}
	}

	updated := make([]models.WasteRecord, 0, len(writes))
	for _, w := range writes {
		rec := m.records[w.RecordID]
		a := w.Assessment
		rec.Assessment = &a
		rec.Status = w.Status
		rec.UpdatedAt = a.AssessedAt
		rec.Version++
		m.records[w.RecordID] = rec
		updated = append(updated, cloneRecord(rec))
	}
	return updated, nil
}

func (m *MemoryRepository) UpdateRecordStatus(_ context.Context, id uuid.UUID, status models.RecordStatus, at time.Time) (*models.WasteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	rec.Status = status
	rec.UpdatedAt = at
	rec.Version++
	m.records[id] = rec

	rec = cloneRecord(rec)
	return &rec, nil
}

func (m *MemoryRepository) CreateMarshal(_ context.Context, fm *models.FieldMarshal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fm.CreatedAt.IsZero() {
		fm.CreatedAt = time.Now()
	}
	m.marshals[fm.ID] = *fm
	return nil
}

func (m *MemoryRepository) GetMarshal(_ context.Context, id uuid.UUID) (*models.FieldMarshal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fm, ok := m.marshals[id]
	if !ok {
		return nil, nil
	}
	return &fm, nil
}

func (m *MemoryRepository) CreateDelivery(_ context.Context, d *models.MarshalDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.marshals[d.MarshalID]; !ok {
		return apperr.NotFound("field marshal")
	}
	m.deliveries[d.ID] = cloneDelivery(*d)
	return nil
}

func (m *MemoryRepository) GetDelivery(_ context.Context, id uuid.UUID) (*models.MarshalDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deliveries[id]
	if !ok {
		return nil, nil
	}
	d = cloneDelivery(d)
	return &d, nil
}

func (m *MemoryRepository) ApplyDeliveryAssessment(_ context.Context, w DeliveryAssessmentWrite) (*models.MarshalDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deliveries[w.DeliveryID]
	if !ok {
		return nil, apperr.NotFound("marshal delivery " + w.DeliveryID.String())
	}
	if w.ExpectedVersion != nil && *w.ExpectedVersion != d.Version {
		return nil, apperr.ErrConflict
	}

	q, c := w.QualityScore, w.CreditsEarned
	d.WeightKg = w.WeightKg
	d.QualityScore = &q
	d.CreditsEarned = &c
	d.UpdatedAt = w.At
	d.Version++
	m.deliveries[d.ID] = d

	d = cloneDelivery(d)
	return &d, nil
}

func (m *MemoryRepository) ListDeliveriesByMarshalUser(_ context.Context, userID uuid.UUID) ([]models.MarshalDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.MarshalDelivery
	for _, d := range m.deliveries {
		fm, ok := m.marshals[d.MarshalID]
		if ok && fm.UserID != nil && *fm.UserID == userID {
			out = append(out, cloneDelivery(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) ListDeliveriesInRange(_ context.Context, from, to time.Time) ([]models.MarshalDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.MarshalDelivery
	for _, d := range m.deliveries {
		if !d.CreatedAt.Before(from) && d.CreatedAt.Before(to) {
			out = append(out, cloneDelivery(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) ListScoredSince(_ context.Context, since time.Time, centerID *uuid.UUID) ([]models.ScoredItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inScope := func(center uuid.UUID, updated time.Time) bool {
		if updated.Before(since) {
			return false
		}
		return centerID == nil || center == *centerID
	}

	var items []models.ScoredItem
	for _, rec := range m.records {
		if rec.Assessment == nil || !inScope(rec.CenterID, rec.UpdatedAt) {
			continue
		}
		items = append(items, models.ScoredItem{
			Source:        models.ProvenanceAssessment,
			ID:            rec.ID,
			CenterID:      rec.CenterID,
			WeightKg:      rec.Assessment.WeightKg,
			QualityScore:  rec.Assessment.QualityScore,
			CreditsEarned: rec.Assessment.CreditsEarned,
			UpdatedAt:     rec.UpdatedAt,
		})
	}
	for _, d := range m.deliveries {
		if d.QualityScore == nil || !inScope(d.CenterID, d.UpdatedAt) {
			continue
		}
		items = append(items, models.ScoredItem{
			Source:        models.ProvenanceMarshalDelivery,
			ID:            d.ID,
			CenterID:      d.CenterID,
			WeightKg:      d.WeightKg,
			QualityScore:  *d.QualityScore,
			CreditsEarned: d.Credits(),
			UpdatedAt:     d.UpdatedAt,
		})
	}
	return items, nil
}

func cloneRecord(rec models.WasteRecord) models.WasteRecord {
	if rec.Assessment != nil {
		a := *rec.Assessment
		rec.Assessment = &a
	}
	if rec.PhotoURL != nil {
		p := *rec.PhotoURL
		rec.PhotoURL = &p
	}
	return rec
}

func cloneDelivery(d models.MarshalDelivery) models.MarshalDelivery {
	if d.QualityScore != nil {
		q := *d.QualityScore
		d.QualityScore = &q
	}
	if d.CreditsEarned != nil {
		c := *d.CreditsEarned
		d.CreditsEarned = &c
	}
	return d
}
