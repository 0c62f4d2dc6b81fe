// Package risk implements the cardiovascular risk feature derivation engine.
//
// The engine expands a sparse, partially-filled patient record into a dense
// set of clinically-motivated derived features consumed by downstream scoring
// models. Both entry points, DeriveFeatures and GenerateUtilizationReport,
// are total and deterministic: they never fail, never panic, perform no I/O,
// and substitute documented population defaults for every absent field.
package risk

// EngineVersion identifies the derivation rule set. Bump when any default,
// threshold, or multiplier table changes.
const EngineVersion = "1.4.0"

// Gender is the patient's sex as used for risk baselines.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ChestPainType classifies the reported chest pain presentation.
type ChestPainType string

const (
	ChestPainTypical      ChestPainType = "typical"
	ChestPainAtypical     ChestPainType = "atypical"
	ChestPainNonAnginal   ChestPainType = "non-anginal"
	ChestPainAsymptomatic ChestPainType = "asymptomatic"
)

// STSlope is the slope of the ST segment at peak exercise.
type STSlope string

const (
	STSlopeUp   STSlope = "up"
	STSlopeFlat STSlope = "flat"
	STSlopeDown STSlope = "down"
)

// RestingECG is the resting electrocardiogram classification.
type RestingECG string

const (
	ECGNormal RestingECG = "normal"
	ECGSTT    RestingECG = "st-t"
	ECGLVH    RestingECG = "lvh"
)

// DietType is the patient's reported dietary pattern.
type DietType string

const (
	DietVegetarian    DietType = "vegetarian"
	DietNonVegetarian DietType = "non-vegetarian"
	DietVegan         DietType = "vegan"
)

// ActivityLevel is the reported physical activity level.
type ActivityLevel string

const (
	ActivityLow      ActivityLevel = "low"
	ActivityModerate ActivityLevel = "moderate"
	ActivityHigh     ActivityLevel = "high"
)

// AreaType distinguishes urban from rural residence.
type AreaType string

const (
	AreaUrban AreaType = "urban"
	AreaRural AreaType = "rural"
)

// BMICategory buckets body mass index using Indian population thresholds,
// which run lower than the WHO standard.
type BMICategory string

const (
	BMIUnderweight   BMICategory = "underweight"
	BMINormal        BMICategory = "normal"
	BMIOverweight    BMICategory = "overweight"
	BMIObese         BMICategory = "obese"
	BMISeverelyObese BMICategory = "severely-obese"
)

// BPCategory buckets blood pressure readings.
type BPCategory string

const (
	BPNormal   BPCategory = "normal"
	BPElevated BPCategory = "elevated"
	BPStage1   BPCategory = "stage1"
	BPStage2   BPCategory = "stage2"
	BPCrisis   BPCategory = "crisis"
)

// DiabetesType is the inferred diabetes classification.
type DiabetesType string

const (
	DiabetesNone        DiabetesType = "none"
	DiabetesPrediabetes DiabetesType = "prediabetes"
	DiabetesType1       DiabetesType = "type1"
	DiabetesType2       DiabetesType = "type2"
)

// InflammationLevel buckets high-sensitivity CRP readings.
type InflammationLevel string

const (
	InflammationLow      InflammationLevel = "low"
	InflammationModerate InflammationLevel = "moderate"
	InflammationHigh     InflammationLevel = "high"
	InflammationVeryHigh InflammationLevel = "very-high"
)

// TriglycerideCategory buckets fasting triglyceride readings.
type TriglycerideCategory string

const (
	TriglycerideNormal     TriglycerideCategory = "normal"
	TriglycerideBorderline TriglycerideCategory = "borderline"
	TriglycerideHigh       TriglycerideCategory = "high"
	TriglycerideVeryHigh   TriglycerideCategory = "very-high"
)

// CholesterolCategory buckets total cholesterol readings.
type CholesterolCategory string

const (
	CholesterolDesirable  CholesterolCategory = "desirable"
	CholesterolBorderline CholesterolCategory = "borderline"
	CholesterolHigh       CholesterolCategory = "high"
)

// RiskLevel is the coarse classification applied to a 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very-high"
)

// PatientRecord is the sparse intake record. Every field is independently
// optional: nil pointers, empty strings, and empty slices all mean "not
// provided" and are replaced by documented defaults during derivation.
// The engine never rejects a record, including the zero value.
type PatientRecord struct {
	// Demographics.
	Age      *int     `json:"age,omitempty"`
	Gender   *Gender  `json:"gender,omitempty"`
	HeightCm *float64 `json:"height_cm,omitempty"`
	WeightKg *float64 `json:"weight_kg,omitempty"`

	// Cardiovascular measurements.
	SystolicBP            *int           `json:"systolic_bp,omitempty"`
	DiastolicBP           *int           `json:"diastolic_bp,omitempty"`
	RestingBP             *int           `json:"resting_bp,omitempty"`
	RestingHeartRate      *int           `json:"resting_heart_rate,omitempty"`
	MaxHeartRate          *int           `json:"max_heart_rate,omitempty"`
	ChestPainType         *ChestPainType `json:"chest_pain_type,omitempty"`
	ExerciseInducedAngina *bool          `json:"exercise_induced_angina,omitempty"`
	Oldpeak               *float64       `json:"oldpeak,omitempty"`
	STSlope               *STSlope       `json:"st_slope,omitempty"`
	RestingECG            *RestingECG    `json:"resting_ecg,omitempty"`

	// Lipid panel.
	TotalCholesterol *float64 `json:"total_cholesterol,omitempty"`
	LDL              *float64 `json:"ldl,omitempty"`
	HDL              *float64 `json:"hdl,omitempty"`
	Triglycerides    *float64 `json:"triglycerides,omitempty"`
	LipoproteinA     *float64 `json:"lipoprotein_a,omitempty"`
	HsCRP            *float64 `json:"hs_crp,omitempty"`
	Homocysteine     *float64 `json:"homocysteine,omitempty"`

	// Metabolic.
	FastingBloodSugar    *bool    `json:"fasting_blood_sugar,omitempty"`
	BloodSugarLevel      *float64 `json:"blood_sugar_level,omitempty"`
	Diabetes             *bool    `json:"diabetes,omitempty"`
	OnDiabetesMedication *bool    `json:"on_diabetes_medication,omitempty"`
	DiabetesTreatment    *string  `json:"diabetes_treatment,omitempty"`

	// Lifestyle.
	Smoking               *bool          `json:"smoking,omitempty"`
	AlcoholConsumption    *bool          `json:"alcohol_consumption,omitempty"`
	DietType              *DietType      `json:"diet_type,omitempty"`
	DietHabits            *string        `json:"diet_habits,omitempty"`
	PhysicalActivityLevel *ActivityLevel `json:"physical_activity_level,omitempty"`
	ExerciseFrequency     *int           `json:"exercise_frequency,omitempty"`
	SleepHours            *float64       `json:"sleep_hours,omitempty"`
	SleepQuality          *int           `json:"sleep_quality,omitempty"`
	StressLevel           *int           `json:"stress_level,omitempty"`
	WorkStress            *string        `json:"work_stress,omitempty"`
	MentalHealthIssues    *bool          `json:"mental_health_issues,omitempty"`

	// Medical history.
	PreviousHeartAttack   *bool    `json:"previous_heart_attack,omitempty"`
	PreviousStroke        *bool    `json:"previous_stroke,omitempty"`
	FamilyHistory         []string `json:"family_history,omitempty"`
	PositiveFamilyHistory *bool    `json:"positive_family_history,omitempty"`
	Hypertension          *bool    `json:"hypertension,omitempty"`
	HypertensionTreated   *bool    `json:"hypertension_treated,omitempty"`
	OnCholesterolMed      *bool    `json:"on_cholesterol_med,omitempty"`
	OnBPMed               *bool    `json:"on_bp_med,omitempty"`
	LifestyleChanges      *bool    `json:"lifestyle_changes,omitempty"`

	// Medications and supplements.
	Medications           *string  `json:"medications,omitempty"`
	Supplements           []string `json:"supplements,omitempty"`
	SupplementDescription *string  `json:"supplement_description,omitempty"`

	// Regional.
	Region     *string   `json:"region,omitempty"`
	AreaType   *AreaType `json:"area_type,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`

	// Clinical documents.
	ECGResults          *string `json:"ecg_results,omitempty"`
	ExerciseTestResults *string `json:"exercise_test_results,omitempty"`
}
