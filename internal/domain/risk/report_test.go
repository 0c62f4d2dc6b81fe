package risk

import (
	"reflect"
	"testing"
)

func TestRecordFields_RegistryComplete(t *testing.T) {
	if len(recordFields) != TotalRecognizedFields {
		t.Fatalf("registry has %d fields, want %d", len(recordFields), TotalRecognizedFields)
	}
	seen := make(map[string]bool, len(recordFields))
	for _, fp := range recordFields {
		if seen[fp.name] {
			t.Errorf("duplicate field name %q in registry", fp.name)
		}
		seen[fp.name] = true
	}
}

func TestGenerateUtilizationReport_EmptyRecord(t *testing.T) {
	r := GenerateUtilizationReport(PatientRecord{})

	if r.TotalFields != TotalRecognizedFields {
		t.Errorf("TotalFields = %d, want %d", r.TotalFields, TotalRecognizedFields)
	}
	if r.FieldsWithData != 0 {
		t.Errorf("FieldsWithData = %d, want 0", r.FieldsWithData)
	}
	checkFloat(t, "UtilizationPercentage", r.UtilizationPercentage, 0)
	checkFloat(t, "DataQualityScore", r.DataQualityScore, 0)
	checkFloat(t, "PredictionConfidenceBoost", r.PredictionConfidenceBoost, 0)

	wantMissing := []string{"age", "gender", "blood_pressure", "total_cholesterol"}
	if !reflect.DeepEqual(r.MissingCriticalFields, wantMissing) {
		t.Errorf("MissingCriticalFields = %v, want %v", r.MissingCriticalFields, wantMissing)
	}
	if len(r.ProvidedOptionalFields) != 0 {
		t.Errorf("ProvidedOptionalFields = %v, want empty", r.ProvidedOptionalFields)
	}

	// Four critical prompts, five high-value prompts, one coverage line.
	if len(r.Recommendations) != 10 {
		t.Fatalf("got %d recommendations, want 10", len(r.Recommendations))
	}
	if r.Recommendations[0] != criticalFieldAdvice["age"] {
		t.Errorf("first recommendation = %q", r.Recommendations[0])
	}
	if r.Recommendations[len(r.Recommendations)-1] != coverageSparse {
		t.Errorf("last recommendation = %q", r.Recommendations[len(r.Recommendations)-1])
	}
}

func TestGenerateUtilizationReport_CompleteCriticalSet(t *testing.T) {
	r := GenerateUtilizationReport(PatientRecord{
		Age:              intp(50),
		Gender:           genderp(GenderFemale),
		SystolicBP:       intp(120),
		TotalCholesterol: floatp(190),
	})

	if r.FieldsWithData != 4 {
		t.Errorf("FieldsWithData = %d, want 4", r.FieldsWithData)
	}
	if len(r.MissingCriticalFields) != 0 {
		t.Errorf("MissingCriticalFields = %v, want none", r.MissingCriticalFields)
	}
	checkFloat(t, "UtilizationPercentage", r.UtilizationPercentage, 7.4)
	// 4/54*60 + 30 critical bonus.
	checkFloat(t, "DataQualityScore", r.DataQualityScore, 34.4)
	checkFloat(t, "PredictionConfidenceBoost", r.PredictionConfidenceBoost, 1.5)
}

func TestGenerateUtilizationReport_BloodPressureSlot(t *testing.T) {
	t.Run("resting satisfies", func(t *testing.T) {
		r := GenerateUtilizationReport(PatientRecord{RestingBP: intp(130)})
		for _, m := range r.MissingCriticalFields {
			if m == "blood_pressure" {
				t.Error("resting BP should satisfy the blood pressure slot")
			}
		}
	})
	t.Run("systolic satisfies", func(t *testing.T) {
		r := GenerateUtilizationReport(PatientRecord{SystolicBP: intp(130)})
		for _, m := range r.MissingCriticalFields {
			if m == "blood_pressure" {
				t.Error("systolic BP should satisfy the blood pressure slot")
			}
		}
	})
}

func TestGenerateUtilizationReport_HighValueFields(t *testing.T) {
	r := GenerateUtilizationReport(PatientRecord{
		LipoproteinA: floatp(25),
		HsCRP:        floatp(0.8),
		Supplements:  []string{"omega-3"},
	})

	want := []string{"lipoprotein_a", "hs_crp", "supplements"}
	if !reflect.DeepEqual(r.ProvidedOptionalFields, want) {
		t.Errorf("ProvidedOptionalFields = %v, want %v", r.ProvidedOptionalFields, want)
	}
	// 3/54*60 + 0 (criticals missing) + 3*2 high-value.
	checkFloat(t, "DataQualityScore", r.DataQualityScore, 9.3)
}

func TestGenerateUtilizationReport_Monotonic(t *testing.T) {
	rec := PatientRecord{}
	prev := GenerateUtilizationReport(rec)

	steps := []func(*PatientRecord){
		func(r *PatientRecord) { r.Age = intp(55) },
		func(r *PatientRecord) { r.Gender = genderp(GenderMale) },
		func(r *PatientRecord) { r.SystolicBP = intp(128) },
		func(r *PatientRecord) { r.TotalCholesterol = floatp(205) },
		func(r *PatientRecord) { r.Smoking = boolp(false) },
		func(r *PatientRecord) { r.LipoproteinA = floatp(15) },
		func(r *PatientRecord) { r.FamilyHistory = []string{"stroke"} },
		func(r *PatientRecord) { r.Region = strp("south") },
	}

	for i, step := range steps {
		step(&rec)
		cur := GenerateUtilizationReport(rec)
		if cur.FieldsWithData <= prev.FieldsWithData {
			t.Errorf("step %d: FieldsWithData did not increase (%d -> %d)", i, prev.FieldsWithData, cur.FieldsWithData)
		}
		if cur.UtilizationPercentage <= prev.UtilizationPercentage {
			t.Errorf("step %d: UtilizationPercentage did not increase (%v -> %v)", i, prev.UtilizationPercentage, cur.UtilizationPercentage)
		}
		if cur.DataQualityScore < prev.DataQualityScore {
			t.Errorf("step %d: DataQualityScore decreased (%v -> %v)", i, prev.DataQualityScore, cur.DataQualityScore)
		}
		prev = cur
	}
}

func TestGenerateUtilizationReport_RecommendationOrder(t *testing.T) {
	// Missing gender and blood pressure; all high-value fields present.
	r := GenerateUtilizationReport(PatientRecord{
		Age:              intp(48),
		TotalCholesterol: floatp(200),
		LipoproteinA:     floatp(20),
		HsCRP:            floatp(1.2),
		Homocysteine:     floatp(12),
		Region:           strp("west"),
		Supplements:      []string{"magnesium"},
	})

	want := []string{
		criticalFieldAdvice["gender"],
		criticalFieldAdvice["blood_pressure"],
		coverageSparse,
	}
	if !reflect.DeepEqual(r.Recommendations, want) {
		t.Errorf("Recommendations = %v, want %v", r.Recommendations, want)
	}
}

func TestGenerateUtilizationReport_FullRecord(t *testing.T) {
	full := PatientRecord{
		Age:                   intp(54),
		Gender:                genderp(GenderMale),
		HeightCm:              floatp(172),
		WeightKg:              floatp(78),
		SystolicBP:            intp(132),
		DiastolicBP:           intp(84),
		RestingBP:             intp(130),
		RestingHeartRate:      intp(74),
		MaxHeartRate:          intp(158),
		ChestPainType:         chestPainp(ChestPainAtypical),
		ExerciseInducedAngina: boolp(false),
		Oldpeak:               floatp(1.2),
		STSlope:               slopep(STSlopeFlat),
		RestingECG:            ecgp(ECGNormal),
		TotalCholesterol:      floatp(228),
		LDL:                   floatp(142),
		HDL:                   floatp(44),
		Triglycerides:         floatp(180),
		LipoproteinA:          floatp(34),
		HsCRP:                 floatp(2.1),
		Homocysteine:          floatp(14),
		FastingBloodSugar:     boolp(true),
		BloodSugarLevel:       floatp(118),
		Diabetes:              boolp(false),
		OnDiabetesMedication:  boolp(false),
		DiabetesTreatment:     strp("diet controlled"),
		Smoking:               boolp(false),
		AlcoholConsumption:    boolp(true),
		DietType:              dietp(DietNonVegetarian),
		DietHabits:            strp("mostly balanced, occasional fried food"),
		PhysicalActivityLevel: activityp(ActivityModerate),
		ExerciseFrequency:     intp(3),
		SleepHours:            floatp(6.5),
		SleepQuality:          intp(65),
		StressLevel:           intp(6),
		WorkStress:            strp("moderate"),
		MentalHealthIssues:    boolp(false),
		PreviousHeartAttack:   boolp(false),
		PreviousStroke:        boolp(false),
		FamilyHistory:         []string{"heart disease in father"},
		PositiveFamilyHistory: boolp(true),
		Hypertension:          boolp(true),
		HypertensionTreated:   boolp(true),
		OnCholesterolMed:      boolp(true),
		OnBPMed:               boolp(true),
		LifestyleChanges:      boolp(true),
		Medications:           strp("telmisartan, rosuvastatin"),
		Supplements:           []string{"omega-3"},
		SupplementDescription: strp("fish oil capsule daily"),
		Region:                strp("south"),
		AreaType:              areap(AreaUrban),
		PostalCode:            strp("560001"),
		ECGResults:            strp("normal sinus rhythm"),
		ExerciseTestResults:   strp("negative for inducible ischemia"),
	}

	r := GenerateUtilizationReport(full)
	if r.FieldsWithData != TotalRecognizedFields {
		t.Fatalf("FieldsWithData = %d, want %d", r.FieldsWithData, TotalRecognizedFields)
	}
	checkFloat(t, "UtilizationPercentage", r.UtilizationPercentage, 100)
	checkFloat(t, "DataQualityScore", r.DataQualityScore, 100)
	checkFloat(t, "PredictionConfidenceBoost", r.PredictionConfidenceBoost, 20)

	want := []string{coverageExcellent}
	if !reflect.DeepEqual(r.Recommendations, want) {
		t.Errorf("Recommendations = %v, want %v", r.Recommendations, want)
	}

	// The derivation composite and the report agree on utilization.
	f := DeriveFeatures(full)
	checkFloat(t, "InputUtilizationScore", f.InputUtilizationScore, r.UtilizationPercentage)
}
