package risk

import (
	"math"
	"strings"
)

// neutralRisk is the multiplier assigned when a lookup does not apply,
// including unrecognized enum values.
const neutralRisk = 1.0

// DeriveFeatures expands a sparse patient record into the dense feature
// structure consumed by downstream scoring. Total and deterministic: any
// record, including the zero value, produces a fully-populated result.
func DeriveFeatures(rec PatientRecord) ComprehensiveFeatures {
	r := resolve(rec)

	var f ComprehensiveFeatures
	deriveDemographics(&f, r)
	deriveAnthropometrics(&f, r)
	deriveCardiovascular(&f, r)
	deriveLipids(&f, r)
	deriveMetabolic(&f, r)
	deriveLifestyle(&f, r)
	deriveMedicalHistory(&f, r)
	deriveMedications(&f, r)
	deriveRegional(&f, r)
	deriveClinicalEvidence(&f, r)
	deriveInteractions(&f)
	deriveComposites(&f, rec)
	return f
}

func deriveDemographics(f *ComprehensiveFeatures, r resolvedRecord) {
	f.Age = r.age
	f.Gender = r.gender
	f.GenderRiskMultiplier = genderRisk(r.gender)
	f.AgeRiskFactor = round2(math.Pow(float64(r.age)/40.0, 2.5))
	f.AgeGroup = ageGroupFor(r.age)
}

// genderRisk applies the pre-menopause protective assumption for female
// patients. Documented simplification, not adjustable by input.
func genderRisk(g Gender) float64 {
	if g == GenderFemale {
		return 1.0
	}
	return 1.5
}

func ageGroupFor(age int) string {
	switch {
	case age < 40:
		return "young"
	case age < 55:
		return "middle-aged"
	case age < 70:
		return "senior"
	default:
		return "elderly"
	}
}

func deriveAnthropometrics(f *ComprehensiveFeatures, r resolvedRecord) {
	heightM := r.height / 100.0
	bmi := r.weight / (heightM * heightM)

	f.HeightCm = r.height
	f.WeightKg = r.weight
	f.BMI = round2(bmi)
	f.BMICategory = bmiCategoryFor(bmi)
	f.BMIRiskMultiplier = bmiRisk(f.BMICategory)
	// Du Bois body surface area.
	f.BodySurfaceArea = round2(math.Sqrt(r.height * r.weight / 3600.0))
	// Waist is estimated from BMI and weight, not measured; a documented
	// approximation, not a measurement substitute.
	f.EstimatedWaistCircumference = round2(bmi*2.8 + r.weight*0.3)
	f.AbdominalObesityRisk = abdominalObesityRisk(f.EstimatedWaistCircumference, r.gender)
}

func bmiCategoryFor(bmi float64) BMICategory {
	switch {
	case bmi < bmiUnderweightBelow:
		return BMIUnderweight
	case bmi < bmiNormalBelow:
		return BMINormal
	case bmi < bmiOverweightBelow:
		return BMIOverweight
	case bmi < bmiObeseBelow:
		return BMIObese
	default:
		return BMISeverelyObese
	}
}

func bmiRisk(c BMICategory) float64 {
	if v, ok := bmiRiskTable[c]; ok {
		return v
	}
	return neutralRisk
}

func abdominalObesityRisk(waistCm float64, g Gender) float64 {
	high, moderate := 102.0, 94.0
	if g == GenderFemale {
		high, moderate = 88.0, 80.0
	}
	switch {
	case waistCm > high:
		return 2.0
	case waistCm > moderate:
		return 1.5
	default:
		return neutralRisk
	}
}

func deriveCardiovascular(f *ComprehensiveFeatures, r resolvedRecord) {
	f.SystolicBP = r.systolicBP
	f.DiastolicBP = r.diastolicBP
	f.RestingBP = r.restingBP
	f.PulsePressure = r.systolicBP - r.diastolicBP
	f.MeanArterialPressure = round2(float64(r.systolicBP+2*r.diastolicBP) / 3.0)
	f.BPCategory = bpCategoryFor(r.systolicBP, r.diastolicBP)
	f.BPRiskMultiplier = bpRisk(f.BPCategory)

	f.RestingHeartRate = r.restingHeartRate
	f.MaxHeartRate = r.maxHeartRate
	predicted := 220 - r.age
	if predicted < 1 {
		predicted = 1
	}
	f.HeartRateReserve = round2(float64(r.maxHeartRate) / float64(predicted))
	f.TargetHeartRate = round2(float64(predicted) * 0.85)

	f.ChestPainType = r.chestPain
	f.ChestPainRiskMultiplier = chestPainRisk(r.chestPain)
	f.ExerciseInducedAngina = r.angina
	f.AnginaRiskMultiplier = neutralRisk
	if r.angina {
		f.AnginaRiskMultiplier = anginaRiskFactor
	}
	f.Oldpeak = r.oldpeak
	f.OldpeakRiskMultiplier = oldpeakRisk(r.oldpeak)
	f.STSlope = r.stSlope
	f.STSlopeRiskMultiplier = stSlopeRisk(r.stSlope)
	f.RestingECG = r.restingECG
	f.ECGRiskMultiplier = ecgRisk(r.restingECG)
}

// bpCategoryFor classifies a reading; either value triggers the higher
// category.
func bpCategoryFor(systolic, diastolic int) BPCategory {
	switch {
	case systolic >= bpCrisisSystolic || diastolic >= bpCrisisDiastolic:
		return BPCrisis
	case systolic >= bpStage2Systolic || diastolic >= bpStage2Diastolic:
		return BPStage2
	case systolic >= bpStage1Systolic || diastolic >= bpStage1Diastolic:
		return BPStage1
	case systolic >= bpElevatedSystolic:
		return BPElevated
	default:
		return BPNormal
	}
}

func bpRisk(c BPCategory) float64 {
	if v, ok := bpRiskTable[c]; ok {
		return v
	}
	return neutralRisk
}

func chestPainRisk(t ChestPainType) float64 {
	if v, ok := chestPainRiskTable[t]; ok {
		return v
	}
	return neutralRisk
}

func oldpeakRisk(oldpeak float64) float64 {
	switch {
	case oldpeak > oldpeakHighAbove:
		return 2.5
	case oldpeak > oldpeakModerateAbove:
		return 1.8
	default:
		return neutralRisk
	}
}

func stSlopeRisk(s STSlope) float64 {
	if v, ok := stSlopeRiskTable[s]; ok {
		return v
	}
	return neutralRisk
}

func ecgRisk(e RestingECG) float64 {
	if v, ok := ecgRiskTable[e]; ok {
		return v
	}
	return neutralRisk
}

func deriveLipids(f *ComprehensiveFeatures, r resolvedRecord) {
	f.TotalCholesterol = r.totalCholesterol
	f.LDL = round2(r.ldl)
	f.HDL = round2(r.hdl)
	f.HDLEstimated = r.hdlEstimated
	f.LDLEstimated = r.ldlEstimated
	f.CholesterolRatio = round2(r.totalCholesterol / r.hdl)
	f.NonHDLCholesterol = round2(r.totalCholesterol - r.hdl)
	f.CholesterolCategory = cholesterolCategoryFor(r.totalCholesterol)
	f.CholesterolRiskMultiplier = cholesterolRisk(f.CholesterolCategory)

	f.Triglycerides = r.triglycerides
	f.TriglycerideCategory = triglycerideCategoryFor(r.triglycerides)

	f.LipoproteinA = r.lipoproteinA
	f.LipoproteinARiskMultiplier = lipoproteinARisk(r.lipoproteinA)

	f.HsCRP = r.hsCRP
	f.InflammationLevel = inflammationLevelFor(r.hsCRP)
	f.InflammationRiskMultiplier = inflammationRisk(f.InflammationLevel)

	f.Homocysteine = r.homocysteine
	f.HomocysteineRiskMultiplier = homocysteineRisk(r.homocysteine)
}

func cholesterolCategoryFor(total float64) CholesterolCategory {
	switch {
	case total < cholesterolDesirableBelow:
		return CholesterolDesirable
	case total < cholesterolBorderlineBelow:
		return CholesterolBorderline
	default:
		return CholesterolHigh
	}
}

func cholesterolRisk(c CholesterolCategory) float64 {
	if v, ok := cholesterolRiskTable[c]; ok {
		return v
	}
	return neutralRisk
}

func triglycerideCategoryFor(tg float64) TriglycerideCategory {
	switch {
	case tg < triglycerideNormalBelow:
		return TriglycerideNormal
	case tg < triglycerideBorderlineBelow:
		return TriglycerideBorderline
	case tg < triglycerideHighBelow:
		return TriglycerideHigh
	default:
		return TriglycerideVeryHigh
	}
}

func lipoproteinARisk(lpa float64) float64 {
	switch {
	case lpa > lpaHighAbove:
		return 3.0
	case lpa > lpaModerateAbove:
		return 2.0
	default:
		return neutralRisk
	}
}

func inflammationLevelFor(crp float64) InflammationLevel {
	switch {
	case crp < crpLowBelow:
		return InflammationLow
	case crp < crpModerateBelow:
		return InflammationModerate
	case crp < crpHighBelow:
		return InflammationHigh
	default:
		return InflammationVeryHigh
	}
}

func inflammationRisk(l InflammationLevel) float64 {
	if v, ok := inflammationRiskTable[l]; ok {
		return v
	}
	return neutralRisk
}

func homocysteineRisk(hcy float64) float64 {
	switch {
	case hcy > homocysteineHighAbove:
		return 3.0
	case hcy > homocysteineModerateAbove:
		return 2.0
	default:
		return neutralRisk
	}
}

func deriveMetabolic(f *ComprehensiveFeatures, r resolvedRecord) {
	f.FastingBloodSugar = r.fastingBloodSugar
	f.BloodSugarLevel = r.bloodSugar
	f.DiabetesIndicated = r.diabetes
	f.DiabetesType = diabetesTypeFor(r)
	f.DiabetesRiskMultiplier = diabetesRisk(f.DiabetesType)
	f.EstimatedHbA1c = estimatedHbA1c(r)
	f.OnDiabetesMedication = r.onDiabetesMed

	// Metabolic syndrome counts five criteria; three or more indicate the
	// syndrome. Uses the BMI derived above.
	score := 0
	if r.systolicBP > 130 {
		score++
	}
	if r.totalCholesterol > 200 {
		score++
	}
	if f.BMI > 27.5 {
		score++
	}
	if r.diabetes {
		score++
	}
	if r.fastingBloodSugar {
		score++
	}
	f.MetabolicSyndromeScore = score
	f.MetabolicSyndromePresent = score >= metabolicSyndromeThreshold
}

func diabetesTypeFor(r resolvedRecord) DiabetesType {
	switch {
	case !r.diabetes && !r.fastingBloodSugar:
		return DiabetesNone
	case !r.diabetes:
		return DiabetesPrediabetes
	case r.age < type1AgeBelow:
		return DiabetesType1
	default:
		return DiabetesType2
	}
}

func diabetesRisk(t DiabetesType) float64 {
	switch t {
	case DiabetesType1, DiabetesType2:
		return diabetesRiskFactor
	case DiabetesPrediabetes:
		return prediabetesRiskFactor
	default:
		return neutralRisk
	}
}

// estimatedHbA1c converts average glucose to HbA1c for diabetic patients
// and pins non-diabetic records at the population baseline.
func estimatedHbA1c(r resolvedRecord) float64 {
	if !r.diabetes {
		return baselineHbA1c
	}
	return round2((r.bloodSugar + 46.7) / 28.7)
}

func deriveLifestyle(f *ComprehensiveFeatures, r resolvedRecord) {
	f.Smoking = r.smoking
	f.SmokingRiskMultiplier = neutralRisk
	if r.smoking {
		f.SmokingRiskMultiplier = smokingRiskFactor
	}
	f.AlcoholConsumption = r.alcohol
	f.AlcoholRiskMultiplier = neutralRisk
	if r.alcohol {
		f.AlcoholRiskMultiplier = alcoholRiskFactor
	}

	f.DietType = r.dietType
	f.DietQualityScore = dietQualityScore(r)
	f.DietRiskMultiplier = dietRisk(f.DietQualityScore)

	f.PhysicalActivityLevel = r.activityLevel
	f.ExerciseFrequency = r.exerciseFreq
	f.ExerciseRiskMultiplier = exerciseRisk(r.exerciseFreq)

	f.SleepHours = r.sleepHours
	f.SleepQualityScore = float64(r.sleepQuality)
	f.SleepRiskMultiplier = sleepRisk(r.sleepHours, r.sleepQuality)

	f.StressLevel = r.stressLevel
	f.StressRiskMultiplier = stressRisk(r.stressLevel, r.workStress)

	f.MentalHealthRiskFactor = neutralRisk
	if r.mentalHealth {
		f.MentalHealthRiskFactor = mentalHealthRiskFactor
	}
}

// dietQualityScore starts from a neutral 50 and rewards plant-forward
// patterns and self-reported healthy habits.
func dietQualityScore(r resolvedRecord) float64 {
	score := 50.0
	switch r.dietType {
	case DietVegetarian:
		score += 20
	case DietVegan:
		score += 25
	}
	habits := strings.ToLower(r.dietHabits)
	for _, m := range dietPositiveMarkers {
		if strings.Contains(habits, m.Marker) {
			score += m.Points
		}
	}
	for _, m := range dietNegativeMarkers {
		if strings.Contains(habits, m.Marker) {
			score -= m.Points
		}
	}
	return clamp(score, 0, 100)
}

func dietRisk(quality float64) float64 {
	switch {
	case quality >= 70:
		return 0.9
	case quality < 40:
		return 1.3
	default:
		return neutralRisk
	}
}

func exerciseRisk(daysPerWeek int) float64 {
	switch {
	case daysPerWeek >= 4:
		return 0.8
	case daysPerWeek >= 2:
		return neutralRisk
	default:
		return 1.4
	}
}

// sleepRisk takes the worst applicable of the duration and quality
// penalties rather than stacking them.
func sleepRisk(hours float64, quality int) float64 {
	m := neutralRisk
	if hours < 6 || hours > 9 {
		m = 1.4
	}
	if quality < 40 && m < 1.3 {
		m = 1.3
	}
	return m
}

func stressRisk(level int, workStress string) float64 {
	m := neutralRisk
	switch {
	case level >= 8:
		m = 2.0
	case level >= 6:
		m = 1.5
	}
	if m < 1.5 && strings.Contains(strings.ToLower(workStress), "high") {
		m = 1.5
	}
	return m
}

func deriveMedicalHistory(f *ComprehensiveFeatures, r resolvedRecord) {
	f.PreviousHeartAttack = r.previousHeartAttack
	f.PreviousHeartAttackMultiplier = neutralRisk
	if r.previousHeartAttack {
		f.PreviousHeartAttackMultiplier = previousHeartAttackFactor
	}
	f.PreviousStroke = r.previousStroke
	f.PreviousStrokeMultiplier = neutralRisk
	if r.previousStroke {
		f.PreviousStrokeMultiplier = previousStrokeFactor
	}

	f.FamilyHistoryPositive = r.familyHistoryFlag
	f.FamilyHistoryMultiplier = neutralRisk
	if r.familyHistoryFlag {
		f.FamilyHistoryMultiplier = familyHistoryFactor
	}
	f.GeneticRiskScore = geneticRiskScore(r.familyHistory)
	f.GeneticRiskMultiplier = geneticRisk(f.GeneticRiskScore)

	f.Hypertension = r.hypertension
	f.HypertensionTreated = r.hypertensionTreated
	f.MedicalManagementScore = medicalManagementScore(r)
}

// geneticRiskScore accumulates keyword weights over the family-history
// condition list; each keyword counts once regardless of repetitions.
func geneticRiskScore(conditions []string) float64 {
	if len(conditions) == 0 {
		return 0
	}
	joined := strings.ToLower(strings.Join(conditions, " "))
	score := 0.0
	for _, k := range geneticRiskKeywords {
		if strings.Contains(joined, k.Keyword) {
			score += k.Points
		}
	}
	return clamp(score, 0, 100)
}

func geneticRisk(score float64) float64 {
	switch {
	case score > 50:
		return 2.0
	case score > 25:
		return 1.5
	default:
		return neutralRisk
	}
}

func medicalManagementScore(r resolvedRecord) float64 {
	score := 50.0
	if r.hypertension && r.hypertensionTreated {
		score += 15
	}
	if r.onCholesterolMed {
		score += 10
	}
	if r.onBPMed {
		score += 10
	}
	if r.lifestyleChanges {
		score += 15
	}
	return clamp(score, 0, 100)
}

func deriveMedications(f *ComprehensiveFeatures, r resolvedRecord) {
	f.MedicationCount = medicationCount(r.medications)
	f.OnMedication = f.MedicationCount > 0 || r.onCholesterolMed || r.onBPMed || r.onDiabetesMed
	f.SupplementCount = len(r.supplements)
	f.SupplementScore = supplementScore(r.supplements, r.supplementDescription)
	f.SupplementProtectiveFactor = supplementProtection(f.SupplementScore)
}

func medicationCount(list string) int {
	if strings.TrimSpace(list) == "" {
		return 0
	}
	n := 0
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

func supplementScore(supplements []string, description string) float64 {
	joined := strings.ToLower(strings.Join(supplements, " ") + " " + description)
	score := 0.0
	for _, k := range supplementKeywords {
		if strings.Contains(joined, k.Keyword) {
			score += k.Points
		}
	}
	return clamp(score, 0, 50)
}

func supplementProtection(score float64) float64 {
	switch {
	case score >= 20:
		return 0.9
	case score >= 10:
		return 0.95
	default:
		return neutralRisk
	}
}

func deriveRegional(f *ComprehensiveFeatures, r resolvedRecord) {
	f.Region = r.region
	f.AreaType = r.areaType
	f.RegionalRiskMultiplier = neutralRisk
	if v, ok := regionalRiskTable[strings.ToLower(r.region)]; ok {
		f.RegionalRiskMultiplier = v
	}
	f.UrbanizationRiskMultiplier = neutralRisk
	if r.areaType == AreaUrban {
		f.UrbanizationRiskMultiplier = urbanRiskFactor
	}
}

func deriveClinicalEvidence(f *ComprehensiveFeatures, r resolvedRecord) {
	f.ECGResultsProvided = r.ecgResults != ""
	f.ECGAbnormalityIndicated = containsAnyFold(r.ecgResults, ecgAbnormalMarkers)
	f.ExerciseTestProvided = r.exerciseTestResults != ""
	f.ExerciseTestAbnormal = containsAnyFold(r.exerciseTestResults, exerciseTestAbnormalMarkers)

	score := 0.0
	if f.ECGResultsProvided {
		score += 40
	}
	if f.ExerciseTestProvided {
		score += 40
	}
	if f.ECGResultsProvided && f.ExerciseTestProvided {
		score += 20
	}
	f.ClinicalEvidenceScore = score

	f.ClinicalEvidenceMultiplier = neutralRisk
	if f.ECGAbnormalityIndicated || f.ExerciseTestAbnormal {
		f.ClinicalEvidenceMultiplier = 1.5
	}
}

func containsAnyFold(s string, markers []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// deriveInteractions computes the ten pairwise terms from already-derived
// base features. They are plain products or conditional multipliers; a
// linear downstream model uses them to capture non-linear amplification.
func deriveInteractions(f *ComprehensiveFeatures) {
	f.AgeCholesterolInteraction = round2(f.AgeRiskFactor * f.TotalCholesterol / 200.0)
	f.AgeBMIInteraction = round2(f.AgeRiskFactor * f.BMI / 25.0)
	f.AgeDiabetesInteraction = round2(f.AgeRiskFactor * f.DiabetesRiskMultiplier)
	f.BMIDiabetesInteraction = round2(f.BMIRiskMultiplier * f.DiabetesRiskMultiplier)
	f.SmokingAgeInteraction = round2(f.SmokingRiskMultiplier * float64(f.Age) / 50.0)
	f.BPDiabetesInteraction = round2(f.BPRiskMultiplier * f.DiabetesRiskMultiplier)
	f.StressSleepInteraction = round2(f.StressRiskMultiplier * f.SleepRiskMultiplier)
	f.ExerciseDietInteraction = round2(f.ExerciseRiskMultiplier * f.DietRiskMultiplier)
	// Family history amplifies inside the premature-event window.
	premature := 1.0
	if f.Age < 55 {
		premature = 1.5
	}
	f.FamilyHistoryAgeInteraction = round2(f.FamilyHistoryMultiplier * premature)
	f.LipoproteinFamilyHistoryInteraction = round2(f.LipoproteinARiskMultiplier * f.FamilyHistoryMultiplier)
}

// deriveComposites closes the structure with the five summary scores.
// Weighted deductions pull the health score down from 100; protective
// bonuses push it back up; the result is clamped to [0,100].
func deriveComposites(f *ComprehensiveFeatures, rec PatientRecord) {
	deductions := (f.BPRiskMultiplier-1)*10 +
		(f.CholesterolRiskMultiplier-1)*10 +
		(f.BMIRiskMultiplier-1)*10 +
		(f.SmokingRiskMultiplier-1)*15 +
		(f.DiabetesRiskMultiplier-1)*7.5 +
		(f.ChestPainRiskMultiplier-1)*5 +
		(f.StressRiskMultiplier-1)*8 +
		(f.SleepRiskMultiplier-1)*6 +
		(f.InflammationRiskMultiplier-1)*5 +
		(f.AlcoholRiskMultiplier-1)*5 +
		(f.MentalHealthRiskFactor-1)*5 +
		(f.PreviousHeartAttackMultiplier-1)*2.5 +
		(f.PreviousStrokeMultiplier-1)*4

	bonuses := 0.0
	switch {
	case f.ExerciseFrequency >= 4:
		bonuses += 8
	case f.ExerciseFrequency >= 2:
		bonuses += 4
	}
	switch {
	case f.DietQualityScore >= 70:
		bonuses += 7
	case f.DietQualityScore >= 55:
		bonuses += 3
	}
	if boolOr(rec.LifestyleChanges) {
		bonuses += 3
	}
	if f.SupplementScore >= 20 {
		bonuses += 2
	}
	f.CardiovascularHealthScore = round1(clamp(100-deductions+bonuses, 0, 100))

	modifiable := (f.SmokingRiskMultiplier-1)*20 +
		(f.BPRiskMultiplier-1)*12 +
		(f.CholesterolRiskMultiplier-1)*10 +
		(f.BMIRiskMultiplier-1)*10 +
		(f.StressRiskMultiplier-1)*8 +
		(f.SleepRiskMultiplier-1)*6 +
		(f.AlcoholRiskMultiplier-1)*6 +
		(f.ExerciseRiskMultiplier-1)*10 +
		(f.DietRiskMultiplier-1)*8 +
		(f.DiabetesRiskMultiplier-1)*5 +
		(f.MentalHealthRiskFactor-1)*5
	f.ModifiableRiskScore = round1(clamp(modifiable, 0, 100))

	nonModifiable := f.AgeRiskFactor*15 +
		(f.GenderRiskMultiplier-1)*20 +
		(f.FamilyHistoryMultiplier-1)*25 +
		f.GeneticRiskScore*0.3 +
		(f.LipoproteinARiskMultiplier-1)*10
	f.NonModifiableRiskScore = round1(clamp(nonModifiable, 0, 100))

	// Roughly seventy percent of modifiable risk is clinically addressable
	// through sustained lifestyle and treatment changes.
	f.RiskReductionPotential = round1(clamp(f.ModifiableRiskScore*0.7, 0, 100))

	f.InputUtilizationScore = round1(float64(countFieldsWithData(rec)) / float64(TotalRecognizedFields) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
