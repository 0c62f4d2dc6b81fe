package risk

import "strings"

// TotalRecognizedFields is the fixed denominator for utilization scoring.
// It must equal the number of entries in recordFields; the engine and the
// reporter share it so the utilization composite and the report agree.
const TotalRecognizedFields = 54

type fieldProbe struct {
	name    string
	present func(rec PatientRecord) bool
}

// recordFields enumerates every recognized input field with its presence
// probe. Presence means non-nil for pointers (an explicit false or zero is
// data), non-blank for strings, non-empty for lists.
var recordFields = []fieldProbe{
	{"age", func(r PatientRecord) bool { return r.Age != nil }},
	{"gender", func(r PatientRecord) bool { return r.Gender != nil && *r.Gender != "" }},
	{"height_cm", func(r PatientRecord) bool { return r.HeightCm != nil }},
	{"weight_kg", func(r PatientRecord) bool { return r.WeightKg != nil }},
	{"systolic_bp", func(r PatientRecord) bool { return r.SystolicBP != nil }},
	{"diastolic_bp", func(r PatientRecord) bool { return r.DiastolicBP != nil }},
	{"resting_bp", func(r PatientRecord) bool { return r.RestingBP != nil }},
	{"resting_heart_rate", func(r PatientRecord) bool { return r.RestingHeartRate != nil }},
	{"max_heart_rate", func(r PatientRecord) bool { return r.MaxHeartRate != nil }},
	{"chest_pain_type", func(r PatientRecord) bool { return r.ChestPainType != nil && *r.ChestPainType != "" }},
	{"exercise_induced_angina", func(r PatientRecord) bool { return r.ExerciseInducedAngina != nil }},
	{"oldpeak", func(r PatientRecord) bool { return r.Oldpeak != nil }},
	{"st_slope", func(r PatientRecord) bool { return r.STSlope != nil && *r.STSlope != "" }},
	{"resting_ecg", func(r PatientRecord) bool { return r.RestingECG != nil && *r.RestingECG != "" }},
	{"total_cholesterol", func(r PatientRecord) bool { return r.TotalCholesterol != nil }},
	{"ldl", func(r PatientRecord) bool { return r.LDL != nil }},
	{"hdl", func(r PatientRecord) bool { return r.HDL != nil }},
	{"triglycerides", func(r PatientRecord) bool { return r.Triglycerides != nil }},
	{"lipoprotein_a", func(r PatientRecord) bool { return r.LipoproteinA != nil }},
	{"hs_crp", func(r PatientRecord) bool { return r.HsCRP != nil }},
	{"homocysteine", func(r PatientRecord) bool { return r.Homocysteine != nil }},
	{"fasting_blood_sugar", func(r PatientRecord) bool { return r.FastingBloodSugar != nil }},
	{"blood_sugar_level", func(r PatientRecord) bool { return r.BloodSugarLevel != nil }},
	{"diabetes", func(r PatientRecord) bool { return r.Diabetes != nil }},
	{"on_diabetes_medication", func(r PatientRecord) bool { return r.OnDiabetesMedication != nil }},
	{"diabetes_treatment", func(r PatientRecord) bool { return hasText(r.DiabetesTreatment) }},
	{"smoking", func(r PatientRecord) bool { return r.Smoking != nil }},
	{"alcohol_consumption", func(r PatientRecord) bool { return r.AlcoholConsumption != nil }},
	{"diet_type", func(r PatientRecord) bool { return r.DietType != nil && *r.DietType != "" }},
	{"diet_habits", func(r PatientRecord) bool { return hasText(r.DietHabits) }},
	{"physical_activity_level", func(r PatientRecord) bool { return r.PhysicalActivityLevel != nil && *r.PhysicalActivityLevel != "" }},
	{"exercise_frequency", func(r PatientRecord) bool { return r.ExerciseFrequency != nil }},
	{"sleep_hours", func(r PatientRecord) bool { return r.SleepHours != nil }},
	{"sleep_quality", func(r PatientRecord) bool { return r.SleepQuality != nil }},
	{"stress_level", func(r PatientRecord) bool { return r.StressLevel != nil }},
	{"work_stress", func(r PatientRecord) bool { return hasText(r.WorkStress) }},
	{"mental_health_issues", func(r PatientRecord) bool { return r.MentalHealthIssues != nil }},
	{"previous_heart_attack", func(r PatientRecord) bool { return r.PreviousHeartAttack != nil }},
	{"previous_stroke", func(r PatientRecord) bool { return r.PreviousStroke != nil }},
	{"family_history", func(r PatientRecord) bool { return len(r.FamilyHistory) > 0 }},
	{"positive_family_history", func(r PatientRecord) bool { return r.PositiveFamilyHistory != nil }},
	{"hypertension", func(r PatientRecord) bool { return r.Hypertension != nil }},
	{"hypertension_treated", func(r PatientRecord) bool { return r.HypertensionTreated != nil }},
	{"on_cholesterol_med", func(r PatientRecord) bool { return r.OnCholesterolMed != nil }},
	{"on_bp_med", func(r PatientRecord) bool { return r.OnBPMed != nil }},
	{"lifestyle_changes", func(r PatientRecord) bool { return r.LifestyleChanges != nil }},
	{"medications", func(r PatientRecord) bool { return hasText(r.Medications) }},
	{"supplements", func(r PatientRecord) bool { return len(r.Supplements) > 0 }},
	{"supplement_description", func(r PatientRecord) bool { return hasText(r.SupplementDescription) }},
	{"region", func(r PatientRecord) bool { return hasText(r.Region) }},
	{"area_type", func(r PatientRecord) bool { return r.AreaType != nil && *r.AreaType != "" }},
	{"postal_code", func(r PatientRecord) bool { return hasText(r.PostalCode) }},
	{"ecg_results", func(r PatientRecord) bool { return hasText(r.ECGResults) }},
	{"exercise_test_results", func(r PatientRecord) bool { return hasText(r.ExerciseTestResults) }},
}

func hasText(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}

// criticalFields are the inputs the downstream scorer degrades hardest
// without, in fixed report order. The two blood-pressure fields share one
// logical slot: either satisfies it.
var criticalFields = []struct {
	name    string
	present func(rec PatientRecord) bool
}{
	{"age", func(r PatientRecord) bool { return r.Age != nil }},
	{"gender", func(r PatientRecord) bool { return r.Gender != nil && *r.Gender != "" }},
	{"blood_pressure", func(r PatientRecord) bool { return r.RestingBP != nil || r.SystolicBP != nil }},
	{"total_cholesterol", func(r PatientRecord) bool { return r.TotalCholesterol != nil }},
}

// highValueFields are optional inputs that raise data quality beyond the
// raw field count, in fixed report order.
var highValueFields = []struct {
	name    string
	present func(rec PatientRecord) bool
}{
	{"lipoprotein_a", func(r PatientRecord) bool { return r.LipoproteinA != nil }},
	{"hs_crp", func(r PatientRecord) bool { return r.HsCRP != nil }},
	{"homocysteine", func(r PatientRecord) bool { return r.Homocysteine != nil }},
	{"region", func(r PatientRecord) bool { return hasText(r.Region) }},
	{"supplements", func(r PatientRecord) bool { return len(r.Supplements) > 0 }},
}

var criticalFieldAdvice = map[string]string{
	"age":               "Add patient age; the model substitutes a population default of 50 without it.",
	"gender":            "Add patient gender; sex-specific baselines default to male without it.",
	"blood_pressure":    "Add a resting or systolic blood pressure reading; blood pressure is a primary driver of cardiovascular risk.",
	"total_cholesterol": "Add a total cholesterol measurement; lipid levels are a primary driver of cardiovascular risk.",
}

var highValueFieldAdvice = map[string]string{
	"lipoprotein_a": "Consider a lipoprotein(a) measurement to capture inherited lipid risk.",
	"hs_crp":        "Consider a high-sensitivity CRP test to capture inflammatory risk.",
	"homocysteine":  "Consider a homocysteine level to refine metabolic risk.",
	"region":        "Record the patient's region to enable population-specific calibration.",
	"supplements":   "List current supplements so protective factors can be credited.",
}

const (
	coverageExcellent = "Excellent data coverage; predictions use nearly the full feature set."
	coverageGood      = "Good data coverage; supplying the suggested fields would sharpen predictions further."
	coverageSparse    = "Sparse input; derived features rely heavily on population defaults."
)

// GenerateUtilizationReport summarises input completeness and its effect
// on downstream prediction quality. Total and deterministic, like
// DeriveFeatures; the two share the recognized-field registry.
func GenerateUtilizationReport(rec PatientRecord) InputUtilizationReport {
	withData := countFieldsWithData(rec)
	fraction := float64(withData) / float64(TotalRecognizedFields)
	utilization := fraction * 100

	missing := make([]string, 0, len(criticalFields))
	for _, cf := range criticalFields {
		if !cf.present(rec) {
			missing = append(missing, cf.name)
		}
	}

	provided := make([]string, 0, len(highValueFields))
	for _, hf := range highValueFields {
		if hf.present(rec) {
			provided = append(provided, hf.name)
		}
	}

	// Quality blends raw coverage (60%), a flat bonus for a complete
	// critical set (+30), and +2 per high-value extra, capped at 100.
	quality := fraction * 60
	if len(missing) == 0 {
		quality += 30
	}
	quality += float64(len(provided)) * 2
	quality = clamp(quality, 0, 100)

	boost := utilization / 100 * 20
	if boost > 20 {
		boost = 20
	}

	return InputUtilizationReport{
		TotalFields:               TotalRecognizedFields,
		FieldsWithData:            withData,
		UtilizationPercentage:     round1(utilization),
		MissingCriticalFields:     missing,
		ProvidedOptionalFields:    provided,
		DataQualityScore:          round1(quality),
		PredictionConfidenceBoost: round1(boost),
		Recommendations:           recommendations(missing, rec, utilization),
	}
}

func countFieldsWithData(rec PatientRecord) int {
	n := 0
	for _, fp := range recordFields {
		if fp.present(rec) {
			n++
		}
	}
	return n
}

// recommendations is a deterministic, ordered list: missing critical
// fields first, then missing high-value fields, then one coverage tier
// line. Wording and order are stable for a given input.
func recommendations(missingCritical []string, rec PatientRecord, utilization float64) []string {
	recs := make([]string, 0, len(criticalFields)+len(highValueFields)+1)
	for _, name := range missingCritical {
		recs = append(recs, criticalFieldAdvice[name])
	}
	for _, hf := range highValueFields {
		if !hf.present(rec) {
			recs = append(recs, highValueFieldAdvice[hf.name])
		}
	}
	switch {
	case utilization >= 80:
		recs = append(recs, coverageExcellent)
	case utilization >= 50:
		recs = append(recs, coverageGood)
	default:
		recs = append(recs, coverageSparse)
	}
	return recs
}
