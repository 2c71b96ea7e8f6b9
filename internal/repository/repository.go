// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metshield/metshield/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim stores a claim.
func (r *SQLRepository) SaveClaim(ctx context.Context, claim *domain.Claim) error {
	if claim == nil || claim.ID == "" {
		return fmt.Errorf("%w: claim id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO claims (
			id, patient_id, doctor_id, patient_name, doctor_name,
			patient_age, patient_gender, medical_scheme, diagnosis_code,
			amount, facility_location, patient_location,
			biometric_verified, patient_present, patient_deceased,
			emergency_case, weekend_claim, after_hours_claim,
			travel_suspicious, submission_source, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.PatientID, claim.DoctorID,
		claim.PatientName, claim.DoctorName,
		claim.PatientAge, claim.PatientGender, claim.MedicalScheme,
		claim.DiagnosisCode, claim.Amount,
		claim.FacilityLocation, claim.PatientLocation,
		boolToInt(claim.BiometricVerified), boolToInt(claim.PatientPresent),
		boolToInt(claim.PatientDeceased), boolToInt(claim.EmergencyCase),
		boolToInt(claim.WeekendClaim), boolToInt(claim.AfterHoursClaim),
		boolToInt(claim.TravelDistanceSuspicious), claim.SubmissionSource,
		claim.Timestamp, claim.CreatedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID.
func (r *SQLRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim id is required", ErrInvalidInput)
	}

	query := claimSelect + ` WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), claimID)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return claim, err
}

// ListClaims retrieves the most recent claims, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context, limit int) ([]*domain.Claim, error) {
	if limit <= 0 {
		limit = 50
	}

	query := claimSelect + ` ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// CountProviderClaimsSince counts a doctor's claims since the given time.
func (r *SQLRepository) CountProviderClaimsSince(ctx context.Context, doctorID string, since time.Time) (int, error) {
	if doctorID == "" {
		return 0, fmt.Errorf("%w: doctor id is required", ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM claims WHERE doctor_id = ? AND timestamp >= ?`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), doctorID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count provider claims: %w", err)
	}
	return count, nil
}

// SaveScore stores a scoring result.
func (r *SQLRepository) SaveScore(ctx context.Context, sc *domain.ScoredClaim) error {
	if sc == nil || sc.Claim == nil || sc.Claim.ID == "" {
		return fmt.Errorf("%w: scored claim is required", ErrInvalidInput)
	}

	indicators, _ := json.Marshal(sc.Indicators)

	query := `
		INSERT INTO scores (claim_id, raw_score, probability, tier, indicators, scored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
			raw_score = excluded.raw_score,
			probability = excluded.probability,
			tier = excluded.tier,
			indicators = excluded.indicators,
			scored_at = excluded.scored_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sc.Claim.ID, sc.RawScore, sc.Probability, string(sc.Tier),
		string(indicators), sc.ScoredAt,
	)
	return err
}

// GetScore retrieves a scoring result with its claim.
func (r *SQLRepository) GetScore(ctx context.Context, claimID string) (*domain.ScoredClaim, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim id is required", ErrInvalidInput)
	}

	query := `
		SELECT claim_id, raw_score, probability, tier, indicators, scored_at
		FROM scores
		WHERE claim_id = ?
	`

	var sc domain.ScoredClaim
	var tier, indicators, id string

	err := r.db.QueryRowContext(ctx, r.rebind(query), claimID).Scan(
		&id, &sc.RawScore, &sc.Probability, &tier, &indicators, &sc.ScoredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sc.Tier = domain.RiskTier(tier)
	json.Unmarshal([]byte(indicators), &sc.Indicators)

	claim, err := r.GetClaim(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	sc.Claim = claim
	if sc.Claim == nil {
		sc.Claim = &domain.Claim{ID: id}
	}

	return &sc, nil
}

// SaveAlert stores an alert record.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (id, claim_id, patient_id, doctor_id, amount, tier, probability, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.ClaimID, alert.PatientID, alert.DoctorID,
		alert.Amount, string(alert.Tier), alert.Probability,
		alert.Status, alert.CreatedAt,
	)
	return err
}

// RecentAlerts retrieves the most recent alerts, newest first.
func (r *SQLRepository) RecentAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, claim_id, patient_id, doctor_id, amount, tier, probability, status, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var tier string

		if err := rows.Scan(
			&a.ID, &a.ClaimID, &a.PatientID, &a.DoctorID,
			&a.Amount, &tier, &a.Probability, &a.Status, &a.CreatedAt,
		); err != nil {
			return nil, err
		}

		a.Tier = domain.RiskTier(tier)
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const claimSelect = `
	SELECT id, patient_id, doctor_id, patient_name, doctor_name,
		   patient_age, patient_gender, medical_scheme, diagnosis_code,
		   amount, facility_location, patient_location,
		   biometric_verified, patient_present, patient_deceased,
		   emergency_case, weekend_claim, after_hours_claim,
		   travel_suspicious, submission_source, timestamp, created_at
	FROM claims`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var c domain.Claim
	var biometric, present, deceased, emergency, weekend, afterHours, travel int

	err := row.Scan(
		&c.ID, &c.PatientID, &c.DoctorID, &c.PatientName, &c.DoctorName,
		&c.PatientAge, &c.PatientGender, &c.MedicalScheme, &c.DiagnosisCode,
		&c.Amount, &c.FacilityLocation, &c.PatientLocation,
		&biometric, &present, &deceased,
		&emergency, &weekend, &afterHours,
		&travel, &c.SubmissionSource, &c.Timestamp, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.BiometricVerified = biometric == 1
	c.PatientPresent = present == 1
	c.PatientDeceased = deceased == 1
	c.EmergencyCase = emergency == 1
	c.WeekendClaim = weekend == 1
	c.AfterHoursClaim = afterHours == 1
	c.TravelDistanceSuspicious = travel == 1

	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
