package risk

import (
	"math"
	"reflect"
	"testing"
)

func intp(v int) *int                   { return &v }
func floatp(v float64) *float64         { return &v }
func boolp(v bool) *bool                { return &v }
func strp(v string) *string             { return &v }
func genderp(v Gender) *Gender          { return &v }
func chestPainp(v ChestPainType) *ChestPainType { return &v }
func slopep(v STSlope) *STSlope         { return &v }
func ecgp(v RestingECG) *RestingECG     { return &v }
func dietp(v DietType) *DietType        { return &v }
func activityp(v ActivityLevel) *ActivityLevel { return &v }
func areap(v AreaType) *AreaType        { return &v }

func checkFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestDeriveFeatures_EmptyRecordDefaults(t *testing.T) {
	f := DeriveFeatures(PatientRecord{})

	if f.Age != 50 {
		t.Errorf("Age = %d, want 50", f.Age)
	}
	if f.Gender != GenderMale {
		t.Errorf("Gender = %q, want male", f.Gender)
	}
	checkFloat(t, "GenderRiskMultiplier", f.GenderRiskMultiplier, 1.5)
	checkFloat(t, "AgeRiskFactor", f.AgeRiskFactor, 1.75)
	if f.AgeGroup != "middle-aged" {
		t.Errorf("AgeGroup = %q, want middle-aged", f.AgeGroup)
	}

	checkFloat(t, "BMI", f.BMI, 24.22)
	if f.BMICategory != BMIOverweight {
		t.Errorf("BMICategory = %q, want overweight", f.BMICategory)
	}
	checkFloat(t, "BMIRiskMultiplier", f.BMIRiskMultiplier, 1.5)
	checkFloat(t, "BodySurfaceArea", f.BodySurfaceArea, 1.82)

	if f.SystolicBP != DefaultSystolicBP || f.DiastolicBP != DefaultDiastolicBP {
		t.Errorf("BP = %d/%d, want %d/%d", f.SystolicBP, f.DiastolicBP, DefaultSystolicBP, DefaultDiastolicBP)
	}
	if f.BPCategory != BPNormal {
		t.Errorf("BPCategory = %q, want normal", f.BPCategory)
	}
	if f.PulsePressure != 40 {
		t.Errorf("PulsePressure = %d, want 40", f.PulsePressure)
	}
	checkFloat(t, "MeanArterialPressure", f.MeanArterialPressure, 88.33)
	if f.MaxHeartRate != 170 {
		t.Errorf("MaxHeartRate = %d, want 170", f.MaxHeartRate)
	}
	checkFloat(t, "HeartRateReserve", f.HeartRateReserve, 1.0)

	// HDL estimated from the male base with no lifestyle adjustments.
	if !f.HDLEstimated || !f.LDLEstimated {
		t.Error("expected HDL and LDL to be flagged as estimated")
	}
	checkFloat(t, "HDL", f.HDL, 45)
	checkFloat(t, "LDL", f.LDL, 105)
	checkFloat(t, "CholesterolRatio", f.CholesterolRatio, 4.0)
	checkFloat(t, "NonHDLCholesterol", f.NonHDLCholesterol, 135)

	if f.DiabetesType != DiabetesNone {
		t.Errorf("DiabetesType = %q, want none", f.DiabetesType)
	}
	checkFloat(t, "EstimatedHbA1c", f.EstimatedHbA1c, 5.5)
	if f.MetabolicSyndromePresent {
		t.Error("empty record should not indicate metabolic syndrome")
	}

	checkFloat(t, "SmokingRiskMultiplier", f.SmokingRiskMultiplier, 1.0)
	checkFloat(t, "DietQualityScore", f.DietQualityScore, 50)
	checkFloat(t, "PreviousHeartAttackMultiplier", f.PreviousHeartAttackMultiplier, 1.0)
	checkFloat(t, "FamilyHistoryMultiplier", f.FamilyHistoryMultiplier, 1.0)
	checkFloat(t, "GeneticRiskScore", f.GeneticRiskScore, 0)
	checkFloat(t, "InputUtilizationScore", f.InputUtilizationScore, 0)

	// Only the default-overweight BMI deduction applies.
	checkFloat(t, "CardiovascularHealthScore", f.CardiovascularHealthScore, 95)
}

func TestDeriveFeatures_Deterministic(t *testing.T) {
	rec := PatientRecord{
		Age:              intp(61),
		Gender:           genderp(GenderFemale),
		HeightCm:         floatp(158),
		WeightKg:         floatp(64),
		SystolicBP:       intp(142),
		DiastolicBP:      intp(88),
		TotalCholesterol: floatp(231),
		HDL:              floatp(48),
		ChestPainType:    chestPainp(ChestPainAtypical),
		STSlope:          slopep(STSlopeFlat),
		RestingECG:       ecgp(ECGSTT),
		FamilyHistory:    []string{"premature heart disease"},
		Supplements:      []string{"omega-3"},
		Smoking:          boolp(true),
		StressLevel:      intp(7),
	}

	a := DeriveFeatures(rec)
	b := DeriveFeatures(rec)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different feature sets")
	}

	ra := GenerateUtilizationReport(rec)
	rb := GenerateUtilizationReport(rec)
	if !reflect.DeepEqual(ra, rb) {
		t.Error("identical inputs produced different reports")
	}
}

func TestDeriveFeatures_TotalOnAdversarialInput(t *testing.T) {
	cases := map[string]PatientRecord{
		"zero value": {},
		"negative measurements": {
			Age:      intp(-5),
			HeightCm: floatp(-170),
			WeightKg: floatp(0),
			HDL:      floatp(-10),
		},
		"extreme age": {
			Age: intp(250),
		},
		"empty strings": {
			DietHabits: strp(""),
			Region:     strp(""),
			ECGResults: strp(""),
		},
		"unrecognized enums": {
			ChestPainType: chestPainp("stabbing"),
			STSlope:       slopep("sideways"),
			RestingECG:    ecgp("fuzzy"),
			DietType:      dietp("carnivore"),
		},
	}

	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			f := DeriveFeatures(rec)
			for probe, v := range map[string]float64{
				"BMI":                       f.BMI,
				"AgeRiskFactor":             f.AgeRiskFactor,
				"HeartRateReserve":          f.HeartRateReserve,
				"CholesterolRatio":          f.CholesterolRatio,
				"CardiovascularHealthScore": f.CardiovascularHealthScore,
				"ModifiableRiskScore":       f.ModifiableRiskScore,
				"NonModifiableRiskScore":    f.NonModifiableRiskScore,
			} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("%s is not finite: %v", probe, v)
				}
			}
			if f.CardiovascularHealthScore < 0 || f.CardiovascularHealthScore > 100 {
				t.Errorf("health score out of range: %v", f.CardiovascularHealthScore)
			}
		})
	}
}

func TestDeriveFeatures_UnknownEnumsAreNeutral(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		ChestPainType: chestPainp("stabbing"),
		STSlope:       slopep("sideways"),
		RestingECG:    ecgp("fuzzy"),
	})
	checkFloat(t, "ChestPainRiskMultiplier", f.ChestPainRiskMultiplier, 1.0)
	checkFloat(t, "STSlopeRiskMultiplier", f.STSlopeRiskMultiplier, 1.0)
	checkFloat(t, "ECGRiskMultiplier", f.ECGRiskMultiplier, 1.0)
}

func TestChestPainRisk_MonotonicSeverity(t *testing.T) {
	want := map[ChestPainType]float64{
		ChestPainTypical:      4.0,
		ChestPainAtypical:     2.5,
		ChestPainNonAnginal:   1.5,
		ChestPainAsymptomatic: 1.0,
	}
	for cp, w := range want {
		if got := chestPainRisk(cp); got != w {
			t.Errorf("chestPainRisk(%q) = %v, want %v", cp, got, w)
		}
	}
	if !(chestPainRisk(ChestPainTypical) > chestPainRisk(ChestPainAtypical) &&
		chestPainRisk(ChestPainAtypical) > chestPainRisk(ChestPainNonAnginal) &&
		chestPainRisk(ChestPainNonAnginal) > chestPainRisk(ChestPainAsymptomatic)) {
		t.Error("chest pain risk is not strictly monotonic by severity")
	}
}

func TestBPCategory_Boundaries(t *testing.T) {
	cases := []struct {
		systolic, diastolic int
		want                BPCategory
	}{
		{115, 75, BPNormal},
		{120, 75, BPElevated},
		{125, 75, BPElevated},
		{129, 79, BPElevated},
		{130, 75, BPStage1},
		{110, 80, BPStage1},
		{140, 85, BPStage2},
		{110, 95, BPStage2},
		{180, 75, BPCrisis},
		{110, 120, BPCrisis},
	}
	for _, c := range cases {
		if got := bpCategoryFor(c.systolic, c.diastolic); got != c.want {
			t.Errorf("bpCategoryFor(%d, %d) = %q, want %q", c.systolic, c.diastolic, got, c.want)
		}
	}

	// Multipliers ascend with category severity.
	order := []BPCategory{BPNormal, BPElevated, BPStage1, BPStage2, BPCrisis}
	wantRisk := []float64{1.0, 1.3, 1.8, 2.5, 4.0}
	for i, cat := range order {
		if got := bpRisk(cat); got != wantRisk[i] {
			t.Errorf("bpRisk(%q) = %v, want %v", cat, got, wantRisk[i])
		}
	}
}

func TestDeriveFeatures_RestingBPStandsIn(t *testing.T) {
	t.Run("resting only", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{RestingBP: intp(150)})
		if f.SystolicBP != 150 || f.RestingBP != 150 {
			t.Errorf("BP = sys %d resting %d, want both 150", f.SystolicBP, f.RestingBP)
		}
		if f.BPCategory != BPStage2 {
			t.Errorf("BPCategory = %q, want stage2", f.BPCategory)
		}
	})
	t.Run("systolic only", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{SystolicBP: intp(136)})
		if f.RestingBP != 136 {
			t.Errorf("RestingBP = %d, want 136", f.RestingBP)
		}
	})
	t.Run("both provided", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{SystolicBP: intp(136), RestingBP: intp(128)})
		if f.SystolicBP != 136 || f.RestingBP != 128 {
			t.Errorf("BP = sys %d resting %d, want 136/128", f.SystolicBP, f.RestingBP)
		}
	})
}

func TestDeriveFeatures_PreviousHeartAttackDominance(t *testing.T) {
	base := PatientRecord{Age: intp(58), Smoking: boolp(true)}

	without := DeriveFeatures(base)
	checkFloat(t, "multiplier without prior MI", without.PreviousHeartAttackMultiplier, 1.0)

	base.PreviousHeartAttack = boolp(true)
	with := DeriveFeatures(base)
	checkFloat(t, "multiplier with prior MI", with.PreviousHeartAttackMultiplier, 8.0)

	if with.CardiovascularHealthScore >= without.CardiovascularHealthScore {
		t.Errorf("prior MI should reduce health score: %v vs %v",
			with.CardiovascularHealthScore, without.CardiovascularHealthScore)
	}
}

func TestDeriveFeatures_HighRiskScenario(t *testing.T) {
	rec := PatientRecord{
		Age:                 intp(60),
		Gender:              genderp(GenderMale),
		RestingBP:           intp(150),
		TotalCholesterol:    floatp(260),
		Diabetes:            boolp(true),
		Smoking:             boolp(true),
		PreviousHeartAttack: boolp(true),
	}
	f := DeriveFeatures(rec)

	if f.BPCategory != BPStage2 {
		t.Errorf("BPCategory = %q, want stage2", f.BPCategory)
	}
	checkFloat(t, "DiabetesRiskMultiplier", f.DiabetesRiskMultiplier, 3.0)
	checkFloat(t, "SmokingRiskMultiplier", f.SmokingRiskMultiplier, 2.0)
	checkFloat(t, "PreviousHeartAttackMultiplier", f.PreviousHeartAttackMultiplier, 8.0)
	if f.DiabetesType != DiabetesType2 {
		t.Errorf("DiabetesType = %q, want type2", f.DiabetesType)
	}

	healthier := rec
	healthier.Smoking = boolp(false)
	healthier.PreviousHeartAttack = boolp(false)
	h := DeriveFeatures(healthier)

	if f.CardiovascularHealthScore >= h.CardiovascularHealthScore {
		t.Errorf("high-risk record should score strictly lower: %v vs %v",
			f.CardiovascularHealthScore, h.CardiovascularHealthScore)
	}
	if RiskScoreFrom(f) <= RiskScoreFrom(h) {
		t.Errorf("high-risk record should have higher risk score: %v vs %v",
			RiskScoreFrom(f), RiskScoreFrom(h))
	}
}

func TestDeriveFeatures_LifestyleContrast(t *testing.T) {
	active := PatientRecord{
		Age:               intp(45),
		DietType:          dietp(DietVegetarian),
		ExerciseFrequency: intp(5),
		StressLevel:       intp(2),
	}
	sedentary := PatientRecord{
		Age:               intp(45),
		DietType:          dietp(DietNonVegetarian),
		ExerciseFrequency: intp(0),
		StressLevel:       intp(9),
	}

	a := DeriveFeatures(active)
	s := DeriveFeatures(sedentary)

	if a.CardiovascularHealthScore <= s.CardiovascularHealthScore {
		t.Errorf("active record should score strictly higher: %v vs %v",
			a.CardiovascularHealthScore, s.CardiovascularHealthScore)
	}
	if a.DietQualityScore <= s.DietQualityScore {
		t.Errorf("vegetarian diet should score strictly higher: %v vs %v",
			a.DietQualityScore, s.DietQualityScore)
	}
}

func TestDeriveFeatures_HDLEstimation(t *testing.T) {
	t.Run("female baseline", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{Gender: genderp(GenderFemale)})
		checkFloat(t, "HDL", f.HDL, 55)
	})
	t.Run("active vegetarian", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{
			ExerciseFrequency: intp(4),
			DietType:          dietp(DietVegetarian),
		})
		checkFloat(t, "HDL", f.HDL, 53) // 45 + 5 exercise + 3 vegetarian
	})
	t.Run("smoker", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{Smoking: boolp(true)})
		checkFloat(t, "HDL", f.HDL, 40)
	})
	t.Run("measured passes through", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{HDL: floatp(62)})
		if f.HDLEstimated {
			t.Error("measured HDL should not be flagged as estimated")
		}
		checkFloat(t, "HDL", f.HDL, 62)
	})
}

func TestDeriveFeatures_DiabetesInference(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{})
		if f.DiabetesType != DiabetesNone {
			t.Errorf("DiabetesType = %q, want none", f.DiabetesType)
		}
		checkFloat(t, "multiplier", f.DiabetesRiskMultiplier, 1.0)
	})
	t.Run("prediabetes from fasting flag", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{FastingBloodSugar: boolp(true)})
		if f.DiabetesType != DiabetesPrediabetes {
			t.Errorf("DiabetesType = %q, want prediabetes", f.DiabetesType)
		}
		checkFloat(t, "multiplier", f.DiabetesRiskMultiplier, 1.8)
		checkFloat(t, "EstimatedHbA1c", f.EstimatedHbA1c, 5.5)
	})
	t.Run("type1 under 30", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{Age: intp(25), Diabetes: boolp(true)})
		if f.DiabetesType != DiabetesType1 {
			t.Errorf("DiabetesType = %q, want type1", f.DiabetesType)
		}
	})
	t.Run("type2 with estimated hba1c", func(t *testing.T) {
		f := DeriveFeatures(PatientRecord{
			Age:             intp(52),
			Diabetes:        boolp(true),
			BloodSugarLevel: floatp(150),
		})
		if f.DiabetesType != DiabetesType2 {
			t.Errorf("DiabetesType = %q, want type2", f.DiabetesType)
		}
		checkFloat(t, "EstimatedHbA1c", f.EstimatedHbA1c, 6.85)
	})
}

func TestDeriveFeatures_MetabolicSyndrome(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		SystolicBP:       intp(135),
		TotalCholesterol: floatp(210),
		HeightCm:         floatp(170),
		WeightKg:         floatp(85), // BMI 29.4
	})
	if f.MetabolicSyndromeScore != 3 {
		t.Errorf("MetabolicSyndromeScore = %d, want 3", f.MetabolicSyndromeScore)
	}
	if !f.MetabolicSyndromePresent {
		t.Error("three criteria should indicate metabolic syndrome")
	}

	lean := DeriveFeatures(PatientRecord{
		SystolicBP:       intp(118),
		TotalCholesterol: floatp(170),
		HeightCm:         floatp(175),
		WeightKg:         floatp(62),
	})
	if lean.MetabolicSyndromeScore != 0 || lean.MetabolicSyndromePresent {
		t.Errorf("lean record scored %d criteria", lean.MetabolicSyndromeScore)
	}
}

func TestDeriveFeatures_GeneticRiskKeywords(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		FamilyHistory: []string{"Heart Disease in father", "premature stroke in uncle"},
	})
	checkFloat(t, "GeneticRiskScore", f.GeneticRiskScore, 65) // 30 + 20 + 15
	checkFloat(t, "GeneticRiskMultiplier", f.GeneticRiskMultiplier, 2.0)
	if !f.FamilyHistoryPositive {
		t.Error("non-empty family history should set the positive flag")
	}
	checkFloat(t, "FamilyHistoryMultiplier", f.FamilyHistoryMultiplier, 1.8)

	mild := DeriveFeatures(PatientRecord{FamilyHistory: []string{"diabetes"}})
	checkFloat(t, "mild GeneticRiskScore", mild.GeneticRiskScore, 10)
	checkFloat(t, "mild GeneticRiskMultiplier", mild.GeneticRiskMultiplier, 1.0)
}

func TestDeriveFeatures_InteractionTerms(t *testing.T) {
	rec := PatientRecord{
		Age:              intp(60),
		SystolicBP:       intp(150), // stage2, 2.5
		Diabetes:         boolp(true),
		Smoking:          boolp(true),
		StressLevel:      intp(9),          // 2.0
		SleepHours:       floatp(4),        // 1.4
		LipoproteinA:     floatp(60),       // 3.0
		FamilyHistory:    []string{"heart disease"},
	}
	f := DeriveFeatures(rec)

	checkFloat(t, "BPDiabetesInteraction", f.BPDiabetesInteraction, 7.5)   // 2.5 * 3.0
	checkFloat(t, "StressSleepInteraction", f.StressSleepInteraction, 2.8) // 2.0 * 1.4
	checkFloat(t, "SmokingAgeInteraction", f.SmokingAgeInteraction, 2.4)   // 2.0 * 60/50
	checkFloat(t, "AgeDiabetesInteraction", f.AgeDiabetesInteraction, round2(f.AgeRiskFactor*3.0))
	checkFloat(t, "LipoproteinFamilyHistoryInteraction", f.LipoproteinFamilyHistoryInteraction, 5.4) // 3.0 * 1.8

	// The premature window amplifies family history below age 55.
	young := DeriveFeatures(PatientRecord{Age: intp(45), PositiveFamilyHistory: boolp(true)})
	checkFloat(t, "FamilyHistoryAgeInteraction under 55", young.FamilyHistoryAgeInteraction, 2.7)
	older := DeriveFeatures(PatientRecord{Age: intp(60), PositiveFamilyHistory: boolp(true)})
	checkFloat(t, "FamilyHistoryAgeInteraction at 60", older.FamilyHistoryAgeInteraction, 1.8)
}

func TestDeriveFeatures_ExerciseTestFindings(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		ExerciseInducedAngina: boolp(true),
		Oldpeak:               floatp(2.5),
		STSlope:               slopep(STSlopeDown),
	})
	checkFloat(t, "AnginaRiskMultiplier", f.AnginaRiskMultiplier, 1.8)
	checkFloat(t, "OldpeakRiskMultiplier", f.OldpeakRiskMultiplier, 2.5)
	checkFloat(t, "STSlopeRiskMultiplier", f.STSlopeRiskMultiplier, 3.0)

	mild := DeriveFeatures(PatientRecord{Oldpeak: floatp(1.5)})
	checkFloat(t, "moderate OldpeakRiskMultiplier", mild.OldpeakRiskMultiplier, 1.8)
	flat := DeriveFeatures(PatientRecord{Oldpeak: floatp(0.5)})
	checkFloat(t, "low OldpeakRiskMultiplier", flat.OldpeakRiskMultiplier, 1.0)
}

func TestDeriveFeatures_SupplementScoring(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		Supplements:           []string{"Omega-3", "CoQ10"},
		SupplementDescription: strp("vitamin D daily"),
	})
	checkFloat(t, "SupplementScore", f.SupplementScore, 23) // 10 + 8 + 5
	checkFloat(t, "SupplementProtectiveFactor", f.SupplementProtectiveFactor, 0.9)
	if f.SupplementCount != 2 {
		t.Errorf("SupplementCount = %d, want 2", f.SupplementCount)
	}
}

func TestDeriveFeatures_ClinicalEvidence(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		ECGResults:          strp("Abnormal ST depression noted in V4-V6"),
		ExerciseTestResults: strp("Stress test completed without complications"),
	})
	if !f.ECGResultsProvided || !f.ExerciseTestProvided {
		t.Error("both documents should be marked provided")
	}
	if !f.ECGAbnormalityIndicated {
		t.Error("ECG summary mentioning 'abnormal' should set the indicator")
	}
	if f.ExerciseTestAbnormal {
		t.Error("benign exercise summary should not set the indicator")
	}
	checkFloat(t, "ClinicalEvidenceScore", f.ClinicalEvidenceScore, 100)
	checkFloat(t, "ClinicalEvidenceMultiplier", f.ClinicalEvidenceMultiplier, 1.5)
}

func TestDeriveFeatures_MedicationParsing(t *testing.T) {
	f := DeriveFeatures(PatientRecord{
		Medications: strp("aspirin, atorvastatin , metoprolol"),
	})
	if f.MedicationCount != 3 {
		t.Errorf("MedicationCount = %d, want 3", f.MedicationCount)
	}
	if !f.OnMedication {
		t.Error("expected OnMedication with a populated list")
	}

	empty := DeriveFeatures(PatientRecord{Medications: strp("  ")})
	if empty.MedicationCount != 0 || empty.OnMedication {
		t.Errorf("blank list counted %d medications", empty.MedicationCount)
	}
}

func TestRiskLevelFor_Buckets(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{29.9, RiskLow},
		{30, RiskMedium},
		{49.9, RiskMedium},
		{50, RiskHigh},
		{69.9, RiskHigh},
		{70, RiskVeryHigh},
		{100, RiskVeryHigh},
	}
	for _, c := range cases {
		if got := RiskLevelFor(c.score); got != c.want {
			t.Errorf("RiskLevelFor(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestRiskScoreFrom_InvertsHealthScore(t *testing.T) {
	f := DeriveFeatures(PatientRecord{})
	checkFloat(t, "risk score", RiskScoreFrom(f), 100-f.CardiovascularHealthScore)

	f.CardiovascularHealthScore = 120 // out-of-range input still clamps
	checkFloat(t, "clamped risk score", RiskScoreFrom(f), 0)
}
