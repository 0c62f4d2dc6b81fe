package risk

// Clinical constants and multiplier tables. Everything tunable lives here:
// the derivation code in derive.go is pure arithmetic over these values.
// The Indian-population BMI bands and several multipliers (notably the 8.0
// prior-MI factor and the 1.8 family-history factor) are calibration
// targets carried over from the clinical model, not literature-verified
// values; revisit them with a domain expert before changing.

// Population defaults substituted for absent fields.
const (
	DefaultAge              = 50
	DefaultGender           = GenderMale
	DefaultHeightCm         = 170.0
	DefaultWeightKg         = 70.0
	// BP defaults sit inside the normal band so absent readings stay
	// risk-neutral rather than landing in stage1 via the >=80 diastolic cut.
	DefaultSystolicBP  = 115
	DefaultDiastolicBP = 75
	DefaultRestingHeartRate = 72
	DefaultTotalCholesterol = 180.0
	DefaultTriglycerides    = 130.0
	DefaultHsCRP            = 0.5
	DefaultHomocysteine     = 10.0
	DefaultBloodSugar       = 95.0
	DefaultSleepHours       = 7.0
	DefaultSleepQuality     = 70
	DefaultStressLevel      = 5
)

// Indian-population BMI thresholds. Lower than WHO: overweight starts at
// 23, obesity at 27.5.
const (
	bmiUnderweightBelow   = 18.5
	bmiNormalBelow        = 23.0
	bmiOverweightBelow    = 27.5
	bmiObeseBelow         = 35.0
)

var bmiRiskTable = map[BMICategory]float64{
	BMIUnderweight:   1.2,
	BMINormal:        1.0,
	BMIOverweight:    1.5,
	BMIObese:         2.0,
	BMISeverelyObese: 3.0,
}

// Blood pressure category thresholds; either reading triggers the higher
// category.
const (
	bpCrisisSystolic   = 180
	bpCrisisDiastolic  = 120
	bpStage2Systolic   = 140
	bpStage2Diastolic  = 90
	bpStage1Systolic   = 130
	bpStage1Diastolic  = 80
	bpElevatedSystolic = 120
)

var bpRiskTable = map[BPCategory]float64{
	BPNormal:   1.0,
	BPElevated: 1.3,
	BPStage1:   1.8,
	BPStage2:   2.5,
	BPCrisis:   4.0,
}

// Chest pain multipliers are monotonic by clinical severity: typical
// angina is the highest-risk presentation despite the mild-sounding name.
var chestPainRiskTable = map[ChestPainType]float64{
	ChestPainTypical:      4.0,
	ChestPainAtypical:     2.5,
	ChestPainNonAnginal:   1.5,
	ChestPainAsymptomatic: 1.0,
}

var stSlopeRiskTable = map[STSlope]float64{
	STSlopeDown: 3.0,
	STSlopeFlat: 2.0,
	STSlopeUp:   1.0,
}

var ecgRiskTable = map[RestingECG]float64{
	ECGLVH:    2.5,
	ECGSTT:    2.0,
	ECGNormal: 1.0,
}

// HDL estimation when no measurement is supplied.
const (
	hdlBaseMale       = 45.0
	hdlBaseFemale     = 55.0
	hdlExerciseBonus  = 5.0
	hdlSmokingPenalty = 5.0
	hdlVegetarianBonus = 3.0
)

// Cholesterol category thresholds (mg/dL).
const (
	cholesterolDesirableBelow  = 200.0
	cholesterolBorderlineBelow = 240.0
)

var cholesterolRiskTable = map[CholesterolCategory]float64{
	CholesterolDesirable:  1.0,
	CholesterolBorderline: 1.5,
	CholesterolHigh:       2.5,
}

// Triglyceride thresholds (mg/dL).
const (
	triglycerideNormalBelow     = 150.0
	triglycerideBorderlineBelow = 200.0
	triglycerideHighBelow       = 500.0
)

// Lipoprotein(a) thresholds (mg/dL); reflects elevated genetic baseline
// risk independent of the rest of the lipid panel.
const (
	lpaModerateAbove = 30.0
	lpaHighAbove     = 50.0
)

// hsCRP inflammation buckets (mg/L).
const (
	crpLowBelow      = 1.0
	crpModerateBelow = 3.0
	crpHighBelow     = 10.0
)

var inflammationRiskTable = map[InflammationLevel]float64{
	InflammationLow:      1.0,
	InflammationModerate: 1.5,
	InflammationHigh:     2.0,
	InflammationVeryHigh: 3.0,
}

// Homocysteine thresholds (umol/L).
const (
	homocysteineModerateAbove = 15.0
	homocysteineHighAbove     = 20.0
)

// Diabetes.
const (
	type1AgeBelow              = 30
	diabetesRiskFactor         = 3.0
	prediabetesRiskFactor      = 1.8
	baselineHbA1c              = 5.5
	metabolicSyndromeThreshold = 3
)

// Exercise-test derived multipliers.
const (
	anginaRiskFactor     = 1.8
	oldpeakModerateAbove = 1.0
	oldpeakHighAbove     = 2.0
)

// Lifestyle multipliers.
const (
	smokingRiskFactor      = 2.0
	alcoholRiskFactor      = 1.4
	mentalHealthRiskFactor = 1.3
)

// Free-text markers scanned case-insensitively in clinical document
// summaries.
var ecgAbnormalMarkers = []string{"abnormal", "st depression", "st-t", "lvh", "ischemia", "ischaemia"}

var exerciseTestAbnormalMarkers = []string{"positive", "abnormal", "ischemia", "ischaemia", "angina"}

// Diet-habit markers scanned case-insensitively in the free-text habits
// field.
var dietPositiveMarkers = []struct {
	Marker string
	Points float64
}{
	{"healthy", 15},
	{"balanced", 10},
}

var dietNegativeMarkers = []struct {
	Marker string
	Points float64
}{
	{"junk", 15},
	{"fried", 10},
}

// Medical history multipliers. The prior-MI factor is the single largest
// multiplier in the model, reflecting secondary-prevention risk.
const (
	previousHeartAttackFactor = 8.0
	previousStrokeFactor      = 2.5
	familyHistoryFactor       = 1.8
)

// Genetic risk keyword weights, matched case-insensitively against the
// family-history condition list.
var geneticRiskKeywords = []struct {
	Keyword string
	Points  float64
}{
	{"heart disease", 30},
	{"premature", 20},
	{"stroke", 15},
	{"diabetes", 10},
}

// Supplement keyword weights, matched case-insensitively against the
// supplement list and description.
var supplementKeywords = []struct {
	Keyword string
	Points  float64
}{
	{"omega", 10},
	{"fish oil", 10},
	{"coq10", 8},
	{"vitamin d", 5},
	{"magnesium", 5},
	{"garlic", 4},
}

// Recognized region buckets. All multipliers currently sit at the South
// Asian baseline (the Indian thresholds above already encode the elevated
// population risk); the table exists so regions can be calibrated
// independently later.
var regionalRiskTable = map[string]float64{
	"north":     1.0,
	"south":     1.0,
	"east":      1.0,
	"west":      1.0,
	"central":   1.0,
	"northeast": 1.0,
}

const urbanRiskFactor = 1.15

// Risk-level buckets applied to a 0-100 risk score.
const (
	riskMediumAbove   = 30.0
	riskHighAbove     = 50.0
	riskVeryHighAbove = 70.0
)

// RiskBand describes one classification bucket of the risk score range.
// Min is inclusive and Max exclusive, except the top band which includes
// its Max.
type RiskBand struct {
	Level RiskLevel `json:"level"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
}

// RiskBands returns the classification buckets in ascending order.
func RiskBands() []RiskBand {
	return []RiskBand{
		{Level: RiskLow, Min: 0, Max: riskMediumAbove},
		{Level: RiskMedium, Min: riskMediumAbove, Max: riskHighAbove},
		{Level: RiskHigh, Min: riskHighAbove, Max: riskVeryHighAbove},
		{Level: RiskVeryHigh, Min: riskVeryHighAbove, Max: 100},
	}
}

// RiskLevelFor buckets a 0-100 risk score into the coarse classification
// shared by the assessment service and the model-info endpoint.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= riskVeryHighAbove:
		return RiskVeryHigh
	case score >= riskHighAbove:
		return RiskHigh
	case score >= riskMediumAbove:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskScoreFrom inverts the cardiovascular health composite into the
// 0-100 risk score the classification buckets operate on.
func RiskScoreFrom(f ComprehensiveFeatures) float64 {
	return clamp(100-f.CardiovascularHealthScore, 0, 100)
}
