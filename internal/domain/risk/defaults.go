package risk

// resolvedRecord is the fully-populated intermediate the derivation
// arithmetic operates on. resolve builds it in a single pass so the
// defaulting policy stays in one auditable place; nothing downstream of
// resolve ever sees an absent value.
type resolvedRecord struct {
	age    int
	gender Gender
	height float64
	weight float64

	systolicBP       int
	diastolicBP      int
	restingBP        int
	restingHeartRate int
	maxHeartRate     int
	chestPain        ChestPainType
	angina           bool
	oldpeak          float64
	stSlope          STSlope
	restingECG       RestingECG

	totalCholesterol float64
	ldl              float64
	hdl              float64
	hdlEstimated     bool
	ldlEstimated     bool
	triglycerides    float64
	lipoproteinA     float64
	hsCRP            float64
	homocysteine     float64

	fastingBloodSugar bool
	bloodSugar        float64
	diabetes          bool
	onDiabetesMed     bool
	diabetesTreatment string

	smoking        bool
	alcohol        bool
	dietType       DietType
	dietHabits     string
	activityLevel  ActivityLevel
	exerciseFreq   int
	sleepHours     float64
	sleepQuality   int
	stressLevel    int
	workStress     string
	mentalHealth   bool

	previousHeartAttack bool
	previousStroke      bool
	familyHistory       []string
	familyHistoryFlag   bool
	hypertension        bool
	hypertensionTreated bool
	onCholesterolMed    bool
	onBPMed             bool
	lifestyleChanges    bool

	medications           string
	supplements           []string
	supplementDescription string

	region     string
	areaType   AreaType
	postalCode string

	ecgResults          string
	exerciseTestResults string
}

// resolve applies the population defaults from tables.go to a sparse
// record. Non-positive heights, weights, and heart rates are treated as
// absent so the arithmetic never divides by zero.
func resolve(rec PatientRecord) resolvedRecord {
	r := resolvedRecord{
		age:    positiveIntOr(rec.Age, DefaultAge),
		gender: DefaultGender,
		height: positiveOr(rec.HeightCm, DefaultHeightCm),
		weight: positiveOr(rec.WeightKg, DefaultWeightKg),

		diastolicBP:      positiveIntOr(rec.DiastolicBP, DefaultDiastolicBP),
		restingHeartRate: positiveIntOr(rec.RestingHeartRate, DefaultRestingHeartRate),
		chestPain:        ChestPainAsymptomatic,
		angina:           boolOr(rec.ExerciseInducedAngina),
		oldpeak:          floatOr(rec.Oldpeak, 0),
		stSlope:          STSlopeUp,
		restingECG:       ECGNormal,

		totalCholesterol: positiveOr(rec.TotalCholesterol, DefaultTotalCholesterol),
		triglycerides:    positiveOr(rec.Triglycerides, DefaultTriglycerides),
		lipoproteinA:     floatOr(rec.LipoproteinA, 0),
		hsCRP:            positiveOr(rec.HsCRP, DefaultHsCRP),
		homocysteine:     positiveOr(rec.Homocysteine, DefaultHomocysteine),

		fastingBloodSugar: boolOr(rec.FastingBloodSugar),
		bloodSugar:        positiveOr(rec.BloodSugarLevel, DefaultBloodSugar),
		diabetes:          boolOr(rec.Diabetes),
		onDiabetesMed:     boolOr(rec.OnDiabetesMedication),
		diabetesTreatment: strOr(rec.DiabetesTreatment),

		smoking:       boolOr(rec.Smoking),
		alcohol:       boolOr(rec.AlcoholConsumption),
		dietType:      DietNonVegetarian,
		dietHabits:    strOr(rec.DietHabits),
		activityLevel: ActivityModerate,
		exerciseFreq:  clampInt(intOr(rec.ExerciseFrequency, 0), 0, 7),
		sleepHours:    positiveOr(rec.SleepHours, DefaultSleepHours),
		sleepQuality:  clampInt(intOr(rec.SleepQuality, DefaultSleepQuality), 0, 100),
		stressLevel:   clampInt(intOr(rec.StressLevel, DefaultStressLevel), 1, 10),
		workStress:    strOr(rec.WorkStress),
		mentalHealth:  boolOr(rec.MentalHealthIssues),

		previousHeartAttack: boolOr(rec.PreviousHeartAttack),
		previousStroke:      boolOr(rec.PreviousStroke),
		familyHistory:       rec.FamilyHistory,
		familyHistoryFlag:   boolOr(rec.PositiveFamilyHistory) || len(rec.FamilyHistory) > 0,
		hypertension:        boolOr(rec.Hypertension),
		hypertensionTreated: boolOr(rec.HypertensionTreated),
		onCholesterolMed:    boolOr(rec.OnCholesterolMed),
		onBPMed:             boolOr(rec.OnBPMed),
		lifestyleChanges:    boolOr(rec.LifestyleChanges),

		medications:           strOr(rec.Medications),
		supplements:           rec.Supplements,
		supplementDescription: strOr(rec.SupplementDescription),

		region:     strOr(rec.Region),
		postalCode: strOr(rec.PostalCode),

		ecgResults:          strOr(rec.ECGResults),
		exerciseTestResults: strOr(rec.ExerciseTestResults),
	}

	if rec.Gender != nil && (*rec.Gender == GenderMale || *rec.Gender == GenderFemale) {
		r.gender = *rec.Gender
	}
	if rec.ChestPainType != nil && *rec.ChestPainType != "" {
		r.chestPain = *rec.ChestPainType
	}
	if rec.STSlope != nil && *rec.STSlope != "" {
		r.stSlope = *rec.STSlope
	}
	if rec.RestingECG != nil && *rec.RestingECG != "" {
		r.restingECG = *rec.RestingECG
	}
	if rec.DietType != nil && *rec.DietType != "" {
		r.dietType = *rec.DietType
	}
	if rec.PhysicalActivityLevel != nil && *rec.PhysicalActivityLevel != "" {
		r.activityLevel = *rec.PhysicalActivityLevel
	}
	if rec.AreaType != nil && *rec.AreaType != "" {
		r.areaType = *rec.AreaType
	}

	// The legacy single resting-BP reading and the systolic reading stand
	// in for each other when only one is present.
	switch {
	case isPositiveInt(rec.SystolicBP) && isPositiveInt(rec.RestingBP):
		r.systolicBP = *rec.SystolicBP
		r.restingBP = *rec.RestingBP
	case isPositiveInt(rec.SystolicBP):
		r.systolicBP = *rec.SystolicBP
		r.restingBP = *rec.SystolicBP
	case isPositiveInt(rec.RestingBP):
		r.systolicBP = *rec.RestingBP
		r.restingBP = *rec.RestingBP
	default:
		r.systolicBP = DefaultSystolicBP
		r.restingBP = DefaultSystolicBP
	}

	// Age-predicted maximum when no exercise test supplied one.
	if isPositiveInt(rec.MaxHeartRate) {
		r.maxHeartRate = *rec.MaxHeartRate
	} else {
		r.maxHeartRate = 220 - r.age
	}

	// HDL estimation uses lifestyle fields resolved above; LDL estimation
	// uses the Friedewald-style remainder and never goes negative.
	if rec.HDL != nil && *rec.HDL > 0 {
		r.hdl = *rec.HDL
	} else {
		r.hdl = estimateHDL(r)
		r.hdlEstimated = true
	}
	if rec.LDL != nil && *rec.LDL > 0 {
		r.ldl = *rec.LDL
	} else {
		r.ldl = clamp(r.totalCholesterol-r.hdl-30, 0, r.totalCholesterol)
		r.ldlEstimated = true
	}

	return r
}

func estimateHDL(r resolvedRecord) float64 {
	hdl := hdlBaseMale
	if r.gender == GenderFemale {
		hdl = hdlBaseFemale
	}
	if r.exerciseFreq > 3 {
		hdl += hdlExerciseBonus
	}
	if r.smoking {
		hdl -= hdlSmokingPenalty
	}
	if r.dietType == DietVegetarian {
		hdl += hdlVegetarianBonus
	}
	return hdl
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func positiveOr(p *float64, def float64) float64 {
	if p == nil || *p <= 0 {
		return def
	}
	return *p
}

func positiveIntOr(p *int, def int) int {
	if p == nil || *p <= 0 {
		return def
	}
	return *p
}

func isPositiveInt(p *int) bool {
	return p != nil && *p > 0
}

func boolOr(p *bool) bool {
	return p != nil && *p
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
