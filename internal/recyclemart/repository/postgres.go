package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v4/stdlib"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{
		db: nil, // Will be initialized in InitDB
	}
}

// InitDB initializes the database connection and schema
func (r *PostgresRepository) InitDB(databaseURI string) error {
	db, err := sql.Open("pgx", databaseURI)
	if err != nil {
		return err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	r.db = db

	// Create tables if they don't exist
	if err := r.createTables(); err != nil {
		db.Close()
		return err
	}

	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		login VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS collation_centers (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		capacity_kg NUMERIC(12, 2) NOT NULL,
		current_stock_kg NUMERIC(12, 2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS waste_records (
		id UUID PRIMARY KEY,
		generator_id UUID NOT NULL REFERENCES profiles(id),
		center_id UUID NOT NULL REFERENCES collation_centers(id),
		waste_category VARCHAR(16) NOT NULL,
		photo_url TEXT,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		weight NUMERIC(10, 2) NOT NULL DEFAULT 0,
		quality_score INTEGER,
		credits_earned INTEGER,
		assessed_by UUID,
		assessment_notes TEXT,
		assessed_at TIMESTAMPTZ,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT waste_records_assessment_chk CHECK (
			(quality_score IS NULL AND credits_earned IS NULL AND weight = 0 AND status = 'pending')
			OR (quality_score IS NOT NULL AND credits_earned IS NOT NULL AND weight > 0)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS waste_records_pending_idx ON waste_records (created_at) WHERE quality_score IS NULL`,
	`CREATE INDEX IF NOT EXISTS waste_records_updated_idx ON waste_records (updated_at) WHERE quality_score IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS field_marshals (
		id UUID PRIMARY KEY,
		user_id UUID REFERENCES profiles(id),
		full_name VARCHAR(255) NOT NULL,
		phone VARCHAR(64) NOT NULL,
		center_id UUID NOT NULL REFERENCES collation_centers(id),
		registered_by UUID NOT NULL REFERENCES profiles(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS marshal_waste_deliveries (
		id UUID PRIMARY KEY,
		marshal_id UUID NOT NULL REFERENCES field_marshals(id),
		center_id UUID NOT NULL REFERENCES collation_centers(id),
		waste_category VARCHAR(16) NOT NULL,
		weight NUMERIC(10, 2) NOT NULL CHECK (weight > 0),
		quality_score INTEGER,
		credits_earned INTEGER,
		logged_by UUID NOT NULL REFERENCES profiles(id),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// createTables creates the necessary tables if they don't exist
func (r *PostgresRepository) createTables() error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLSTATE 23505")
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, login, passwordHash string, role models.Role) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.ExecContext(
		ctx,
		"INSERT INTO profiles (id, login, password_hash, role) VALUES ($1, $2, $3, $4)",
		id, login, passwordHash, string(role),
	)
	if isUniqueViolation(err) {
		return uuid.Nil, apperr.ErrConflict
	}
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.getUser(ctx, "SELECT id, login, password_hash, role, created_at FROM profiles WHERE login = $1", login)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getUser(ctx, "SELECT id, login, password_hash, role, created_at FROM profiles WHERE id = $1", id)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Login, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.Role = models.Role(role)

	return user, nil
}

// Center repository methods
func (r *PostgresRepository) CreateCenter(ctx context.Context, c *models.CollationCenter) error {
	return r.db.QueryRowContext(
		ctx,
		`INSERT INTO collation_centers (id, name, address, capacity_kg, current_stock_kg)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		c.ID, c.Name, c.Address, c.CapacityKg, c.CurrentStockKg,
	).Scan(&c.CreatedAt)
}

func (r *PostgresRepository) GetCenter(ctx context.Context, id uuid.UUID) (*models.CollationCenter, error) {
	c := &models.CollationCenter{}
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, name, address, capacity_kg, current_stock_kg, created_at FROM collation_centers WHERE id = $1",
		id,
	).Scan(&c.ID, &c.Name, &c.Address, &c.CapacityKg, &c.CurrentStockKg, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

func (r *PostgresRepository) ListCenters(ctx context.Context) ([]models.CollationCenter, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT id, name, address, capacity_kg, current_stock_kg, created_at FROM collation_centers ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var centers []models.CollationCenter
	for rows.Next() {
		var c models.CollationCenter
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.CapacityKg, &c.CurrentStockKg, &c.CreatedAt); err != nil {
			return nil, err
		}
		centers = append(centers, c)
	}

	return centers, rows.Err()
}

// Waste record repository methods

const recordColumns = `id, generator_id, center_id, waste_category, photo_url, status, weight,
	quality_score, credits_earned, assessed_by, assessment_notes, assessed_at, version, created_at, updated_at`

func scanRecord(s rowScanner) (*models.WasteRecord, error) {
	var (
		rec        models.WasteRecord
		category   string
		status     string
		photo      sql.NullString
		weight     float64
		quality    sql.NullInt64
		credits    sql.NullInt64
		assessedBy uuid.NullUUID
		notes      sql.NullString
		assessedAt sql.NullTime
	)
	err := s.Scan(
		&rec.ID, &rec.GeneratorID, &rec.CenterID, &category, &photo, &status, &weight,
		&quality, &credits, &assessedBy, &notes, &assessedAt, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Category = models.WasteCategory(category)
	rec.Status = models.RecordStatus(status)
	if photo.Valid {
		rec.PhotoURL = &photo.String
	}
	if quality.Valid {
		rec.Assessment = &models.Assessment{
			WeightKg:      weight,
			QualityScore:  int(quality.Int64),
			CreditsEarned: int(credits.Int64),
			AssessedBy:    assessedBy.UUID,
			Notes:         notes.String,
			AssessedAt:    assessedAt.Time,
		}
	}

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]models.WasteRecord, error) {
	defer rows.Close()

	var records []models.WasteRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func (r *PostgresRepository) CreateWasteRecord(ctx context.Context, rec *models.WasteRecord) error {
	var photo sql.NullString
	if rec.PhotoURL != nil {
		photo = sql.NullString{String: *rec.PhotoURL, Valid: true}
	}
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO waste_records (id, generator_id, center_id, waste_category, photo_url, status, weight, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)`,
		rec.ID, rec.GeneratorID, rec.CenterID, string(rec.Category), photo, string(rec.Status), rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) GetWasteRecord(ctx context.Context, id uuid.UUID) (*models.WasteRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM waste_records WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *PostgresRepository) ListPendingRecords(ctx context.Context, centerID *uuid.UUID, limit int) ([]models.WasteRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+`
		 FROM waste_records
		 WHERE status = 'pending' AND quality_score IS NULL
		   AND ($1::uuid IS NULL OR center_id = $1)
		 ORDER BY created_at ASC
		 LIMIT $2`,
		nullUUID(centerID), limit,
	)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *PostgresRepository) ListUserRecords(ctx context.Context, userID uuid.UUID) ([]models.WasteRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT "+recordColumns+" FROM waste_records WHERE generator_id = $1 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *PostgresRepository) ListRecordsInRange(ctx context.Context, from, to time.Time) ([]models.WasteRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT "+recordColumns+" FROM waste_records WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ApplyAssessments writes every assessment in one transaction. Each record is
// updated by a single statement so readers never see a partial assessment.
func (r *PostgresRepository) ApplyAssessments(ctx context.Context, writes []AssessmentWrite) ([]models.WasteRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	updated := make([]models.WasteRecord, 0, len(writes))
	for _, w := range writes {
		a := w.Assessment
		rec, err := scanRecord(tx.QueryRowContext(
			ctx,
			`UPDATE waste_records
			 SET weight = $1, quality_score = $2, credits_earned = $3, assessed_by = $4,
			     assessment_notes = $5, assessed_at = $6, status = $7, updated_at = $6,
			     version = version + 1
			 WHERE id = $8 AND ($9::int IS NULL OR version = $9)
			 RETURNING `+recordColumns,
			a.WeightKg, a.QualityScore, a.CreditsEarned, a.AssessedBy,
			a.Notes, a.AssessedAt, string(w.Status), w.RecordID, nullInt(w.ExpectedVersion),
		))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrConflict(ctx, tx, "waste_records", "waste record", w.RecordID)
		}
		if err != nil {
			return nil, err
		}
		updated = append(updated, *rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return updated, nil
}

// missOrConflict tells a missing row apart from a version mismatch
func (r *PostgresRepository) missOrConflict(ctx context.Context, tx *sql.Tx, table, entity string, id uuid.UUID) error {
	var exists bool
	err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound(entity + " " + id.String())
	}
	return apperr.ErrConflict
}

func (r *PostgresRepository) UpdateRecordStatus(ctx context.Context, id uuid.UUID, status models.RecordStatus, at time.Time) (*models.WasteRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(
		ctx,
		`UPDATE waste_records SET status = $1, updated_at = $2, version = version + 1
		 WHERE id = $3 RETURNING `+recordColumns,
		string(status), at, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Marshal repository methods
func (r *PostgresRepository) CreateMarshal(ctx context.Context, m *models.FieldMarshal) error {
	var userID uuid.NullUUID
	if m.UserID != nil {
		userID = uuid.NullUUID{UUID: *m.UserID, Valid: true}
	}
	return r.db.QueryRowContext(
		ctx,
		`INSERT INTO field_marshals (id, user_id, full_name, phone, center_id, registered_by)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		m.ID, userID, m.FullName, m.Phone, m.CenterID, m.RegisteredBy,
	).Scan(&m.CreatedAt)
}

func (r *PostgresRepository) GetMarshal(ctx context.Context, id uuid.UUID) (*models.FieldMarshal, error) {
	m := &models.FieldMarshal{}
	var userID uuid.NullUUID
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, user_id, full_name, phone, center_id, registered_by, created_at FROM field_marshals WHERE id = $1",
		id,
	).Scan(&m.ID, &userID, &m.FullName, &m.Phone, &m.CenterID, &m.RegisteredBy, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if userID.Valid {
		m.UserID = &userID.UUID
	}

	return m, nil
}

const deliveryColumns = `id, marshal_id, center_id, waste_category, weight, quality_score, credits_earned,
	logged_by, version, created_at, updated_at`

func scanDelivery(s rowScanner) (*models.MarshalDelivery, error) {
	var (
		d        models.MarshalDelivery
		category string
		quality  sql.NullInt64
		credits  sql.NullInt64
	)
	err := s.Scan(&d.ID, &d.MarshalID, &d.CenterID, &category, &d.WeightKg, &quality, &credits,
		&d.LoggedBy, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.Category = models.WasteCategory(category)
	if quality.Valid {
		q := int(quality.Int64)
		d.QualityScore = &q
	}
	if credits.Valid {
		c := int(credits.Int64)
		d.CreditsEarned = &c
	}

	return &d, nil
}

func collectDeliveries(rows *sql.Rows) ([]models.MarshalDelivery, error) {
	defer rows.Close()

	var deliveries []models.MarshalDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}

	return deliveries, rows.Err()
}

func (r *PostgresRepository) CreateDelivery(ctx context.Context, d *models.MarshalDelivery) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO marshal_waste_deliveries (`+deliveryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.MarshalID, d.CenterID, string(d.Category), d.WeightKg, nullInt(d.QualityScore), nullInt(d.CreditsEarned),
		d.LoggedBy, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) GetDelivery(ctx context.Context, id uuid.UUID) (*models.MarshalDelivery, error) {
	d, err := scanDelivery(r.db.QueryRowContext(ctx, "SELECT "+deliveryColumns+" FROM marshal_waste_deliveries WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *PostgresRepository) ApplyDeliveryAssessment(ctx context.Context, w DeliveryAssessmentWrite) (*models.MarshalDelivery, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := scanDelivery(tx.QueryRowContext(
		ctx,
		`UPDATE marshal_waste_deliveries
		 SET weight = $1, quality_score = $2, credits_earned = $3, updated_at = $4, version = version + 1
		 WHERE id = $5 AND ($6::int IS NULL OR version = $6)
		 RETURNING `+deliveryColumns,
		w.WeightKg, w.QualityScore, w.CreditsEarned, w.At, w.DeliveryID, nullInt(w.ExpectedVersion),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrConflict(ctx, tx, "marshal_waste_deliveries", "marshal delivery", w.DeliveryID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return d, nil
}

func (r *PostgresRepository) ListDeliveriesByMarshalUser(ctx context.Context, userID uuid.UUID) ([]models.MarshalDelivery, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT d.id, d.marshal_id, d.center_id, d.waste_category, d.weight, d.quality_score, d.credits_earned,
		        d.logged_by, d.version, d.created_at, d.updated_at
		 FROM marshal_waste_deliveries d
		 JOIN field_marshals m ON m.id = d.marshal_id
		 WHERE m.user_id = $1
		 ORDER BY d.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return collectDeliveries(rows)
}

func (r *PostgresRepository) ListDeliveriesInRange(ctx context.Context, from, to time.Time) ([]models.MarshalDelivery, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT "+deliveryColumns+" FROM marshal_waste_deliveries WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	return collectDeliveries(rows)
}

// ListScoredSince returns every scored record and delivery updated at or after since
func (r *PostgresRepository) ListScoredSince(ctx context.Context, since time.Time, centerID *uuid.UUID) ([]models.ScoredItem, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT 'assessment', id, center_id, weight, quality_score, credits_earned, updated_at
		 FROM waste_records
		 WHERE quality_score IS NOT NULL AND updated_at >= $1 AND ($2::uuid IS NULL OR center_id = $2)
		 UNION ALL
		 SELECT 'marshal_delivery', id, center_id, weight, quality_score, COALESCE(credits_earned, 0), updated_at
		 FROM marshal_waste_deliveries
		 WHERE quality_score IS NOT NULL AND updated_at >= $1 AND ($2::uuid IS NULL OR center_id = $2)`,
		since, nullUUID(centerID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ScoredItem
	for rows.Next() {
		var (
			item   models.ScoredItem
			source string
		)
		if err := rows.Scan(&source, &item.ID, &item.CenterID, &item.WeightKg, &item.QualityScore, &item.CreditsEarned, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Source = models.Provenance(source)
		items = append(items, item)
	}

	return items, rows.Err()
}
