package assessment

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardia/cardia/internal/domain/risk"
)

// Assessment maps to the assessment table. One row records one derivation
// run for one patient: the submitted record, the derived features, the
// utilization report, and a flat summary used for SQL-level filtering.
// Snapshot columns mirror what was submitted and stay nil when the input
// omitted them; they are never re-derived on read.
type Assessment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Status    string    `db:"status" json:"status"`

	// Input snapshot.
	PatientAge        *int     `db:"patient_age" json:"patient_age,omitempty"`
	PatientGender     *string  `db:"patient_gender" json:"patient_gender,omitempty"`
	SystolicBP        *int     `db:"systolic_bp" json:"systolic_bp,omitempty"`
	RestingBP         *int     `db:"resting_bp" json:"resting_bp,omitempty"`
	TotalCholesterol  *float64 `db:"total_cholesterol" json:"total_cholesterol,omitempty"`
	FastingBloodSugar *bool    `db:"fasting_blood_sugar" json:"fasting_blood_sugar,omitempty"`
	MaxHeartRate      *int     `db:"max_heart_rate" json:"max_heart_rate,omitempty"`
	ExerciseAngina    *bool    `db:"exercise_angina" json:"exercise_angina,omitempty"`
	Oldpeak           *float64 `db:"oldpeak" json:"oldpeak,omitempty"`
	STSlope           *string  `db:"st_slope" json:"st_slope,omitempty"`

	// Full payloads, stored as JSONB.
	Record   risk.PatientRecord          `db:"record" json:"record"`
	Features risk.ComprehensiveFeatures  `db:"features" json:"features"`
	Report   risk.InputUtilizationReport `db:"report" json:"report"`

	// Derived summary.
	HealthScore      float64        `db:"health_score" json:"health_score"`
	RiskScore        float64        `db:"risk_score" json:"risk_score"`
	RiskLevel        risk.RiskLevel `db:"risk_level" json:"risk_level"`
	UtilizationPct   float64        `db:"utilization_pct" json:"utilization_pct"`
	DataQualityScore float64        `db:"data_quality_score" json:"data_quality_score"`
	EngineVersion    string         `db:"engine_version" json:"engine_version"`

	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Preview is the stateless derivation result: nothing is stored and no
// identity is assigned.
type Preview struct {
	Features      risk.ComprehensiveFeatures  `json:"features"`
	Report        risk.InputUtilizationReport `json:"report"`
	RiskScore     float64                     `json:"risk_score"`
	RiskLevel     risk.RiskLevel              `json:"risk_level"`
	EngineVersion string                      `json:"engine_version"`
}

// PatientStats summarises a patient's assessment history.
type PatientStats struct {
	PatientID        uuid.UUID              `json:"patient_id"`
	TotalAssessments int                    `json:"total_assessments"`
	Latest           *Assessment            `json:"latest,omitempty"`
	RiskLevelCounts  map[risk.RiskLevel]int `json:"risk_level_counts"`
	AverageRiskScore float64                `json:"average_risk_score"`
	AverageQuality   float64                `json:"average_quality"`
}
