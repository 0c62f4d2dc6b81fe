package assessment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardia/cardia/internal/platform/db"
	"github.com/cardia/cardia/internal/platform/phi"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type assessmentRepoPG struct {
	pool      *pgxpool.Pool
	encryptor phi.FieldEncryptor
}

// NewRepoPG returns the Postgres-backed assessment repository. JSONB
// columns round-trip through pgx's JSON codec, so the record, features,
// and report payloads are stored and scanned as their Go types.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &assessmentRepoPG{pool: pool}
}

// NewRepoPGWithEncryption creates the repository with PHI field-level
// encryption. The encryptor covers the free-text notes and the record's
// postal code. Pass nil to disable encryption (equivalent to NewRepoPG).
func NewRepoPGWithEncryption(pool *pgxpool.Pool, enc phi.FieldEncryptor) Repository {
	return &assessmentRepoPG{pool: pool, encryptor: enc}
}

func (r *assessmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const assessmentCols = `id, patient_id, status,
	patient_age, patient_gender, systolic_bp, resting_bp, total_cholesterol,
	fasting_blood_sugar, max_heart_rate, exercise_angina, oldpeak, st_slope,
	record, features, report,
	health_score, risk_score, risk_level, utilization_pct, data_quality_score,
	engine_version, notes, created_by, created_at, updated_at`

func (r *assessmentRepoPG) scan(row pgx.Row) (*Assessment, error) {
	var a Assessment
	err := row.Scan(&a.ID, &a.PatientID, &a.Status,
		&a.PatientAge, &a.PatientGender, &a.SystolicBP, &a.RestingBP, &a.TotalCholesterol,
		&a.FastingBloodSugar, &a.MaxHeartRate, &a.ExerciseAngina, &a.Oldpeak, &a.STSlope,
		&a.Record, &a.Features, &a.Report,
		&a.HealthScore, &a.RiskScore, &a.RiskLevel, &a.UtilizationPct, &a.DataQualityScore,
		&a.EngineVersion, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := r.decryptAssessmentPHI(&a); err != nil {
		return nil, fmt.Errorf("assessment scan: %w", err)
	}
	return &a, nil
}

func (r *assessmentRepoPG) Create(ctx context.Context, a *Assessment) error {
	a.ID = uuid.New()

	// Encrypt PHI fields before storage, then restore originals for the caller.
	if err := r.encryptAssessmentPHI(a); err != nil {
		return fmt.Errorf("assessment create: %w", err)
	}
	defer r.decryptAssessmentPHI(a) //nolint:errcheck // best-effort restore

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO assessment (id, patient_id, status,
			patient_age, patient_gender, systolic_bp, resting_bp, total_cholesterol,
			fasting_blood_sugar, max_heart_rate, exercise_angina, oldpeak, st_slope,
			record, features, report,
			health_score, risk_score, risk_level, utilization_pct, data_quality_score,
			engine_version, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		a.ID, a.PatientID, a.Status,
		a.PatientAge, a.PatientGender, a.SystolicBP, a.RestingBP, a.TotalCholesterol,
		a.FastingBloodSugar, a.MaxHeartRate, a.ExerciseAngina, a.Oldpeak, a.STSlope,
		a.Record, a.Features, a.Report,
		a.HealthScore, a.RiskScore, a.RiskLevel, a.UtilizationPct, a.DataQualityScore,
		a.EngineVersion, a.Notes, a.CreatedBy)
	return err
}

func (r *assessmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+assessmentCols+` FROM assessment WHERE id = $1`, id))
}

func (r *assessmentRepoPG) Update(ctx context.Context, a *Assessment) error {
	// Encrypt PHI fields before storage, then restore originals for the caller.
	if err := r.encryptAssessmentPHI(a); err != nil {
		return fmt.Errorf("assessment update: %w", err)
	}
	defer r.decryptAssessmentPHI(a) //nolint:errcheck // best-effort restore

	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE assessment SET status=$2, notes=$3, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.Notes)
	return err
}

func (r *assessmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM assessment WHERE id = $1`, id)
	return err
}

func (r *assessmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Assessment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+assessmentCols+` FROM assessment ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *assessmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+assessmentCols+` FROM assessment WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *assessmentRepoPG) collect(rows pgx.Rows, total int) ([]*Assessment, int, error) {
	var items []*Assessment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *assessmentRepoPG) Averages(ctx context.Context, patientID uuid.UUID) (float64, float64, error) {
	var avgRisk, avgQuality float64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(AVG(risk_score), 0), COALESCE(AVG(data_quality_score), 0)
		FROM assessment WHERE patient_id = $1`, patientID).Scan(&avgRisk, &avgQuality)
	return avgRisk, avgQuality, err
}

func (r *assessmentRepoPG) CountByRiskLevel(ctx context.Context, patientID uuid.UUID) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT risk_level, COUNT(*) FROM assessment
		WHERE patient_id = $1 GROUP BY risk_level`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// -- PHI Encryption Helpers --

func (r *assessmentRepoPG) encryptField(value *string) (*string, error) {
	if r.encryptor == nil || value == nil || *value == "" {
		return value, nil
	}
	encrypted, err := r.encryptor.Encrypt(*value)
	if err != nil {
		return nil, fmt.Errorf("encrypting PHI field: %w", err)
	}
	return &encrypted, nil
}

func (r *assessmentRepoPG) decryptField(value *string) (*string, error) {
	if r.encryptor == nil || value == nil || *value == "" {
		return value, nil
	}
	decrypted, err := r.encryptor.Decrypt(*value)
	if err != nil {
		return nil, fmt.Errorf("decrypting PHI field: %w", err)
	}
	return &decrypted, nil
}

// encryptAssessmentPHI encrypts the PHI fields on an Assessment in place
// before database storage: the clinician's free-text notes and the postal
// code carried inside the stored patient record.
func (r *assessmentRepoPG) encryptAssessmentPHI(a *Assessment) error {
	var err error
	if a.Notes, err = r.encryptField(a.Notes); err != nil {
		return err
	}
	if a.Record.PostalCode, err = r.encryptField(a.Record.PostalCode); err != nil {
		return err
	}
	return nil
}

// decryptAssessmentPHI decrypts the PHI fields on an Assessment in place
// after database retrieval.
func (r *assessmentRepoPG) decryptAssessmentPHI(a *Assessment) error {
	var err error
	if a.Notes, err = r.decryptField(a.Notes); err != nil {
		return err
	}
	if a.Record.PostalCode, err = r.decryptField(a.Record.PostalCode); err != nil {
		return err
	}
	return nil
}
