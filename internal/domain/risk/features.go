package risk

// ComprehensiveFeatures is the dense, fully-populated output of
// DeriveFeatures. Every field is present for every input; absent inputs
// contribute through their documented defaults. The value has no identity
// and no lifecycle beyond the call that produced it.
type ComprehensiveFeatures struct {
	// Demographic risk.
	Age                  int     `json:"age"`
	Gender               Gender  `json:"gender"`
	GenderRiskMultiplier float64 `json:"gender_risk_multiplier"`
	AgeRiskFactor        float64 `json:"age_risk_factor"`
	AgeGroup             string  `json:"age_group"`

	// Anthropometric derivations.
	HeightCm                    float64     `json:"height_cm"`
	WeightKg                    float64     `json:"weight_kg"`
	BMI                         float64     `json:"bmi"`
	BMICategory                 BMICategory `json:"bmi_category"`
	BMIRiskMultiplier           float64     `json:"bmi_risk_multiplier"`
	BodySurfaceArea             float64     `json:"body_surface_area"`
	EstimatedWaistCircumference float64     `json:"estimated_waist_circumference"`
	AbdominalObesityRisk        float64     `json:"abdominal_obesity_risk"`

	// Cardiovascular derived metrics.
	SystolicBP              int           `json:"systolic_bp"`
	DiastolicBP             int           `json:"diastolic_bp"`
	RestingBP               int           `json:"resting_bp"`
	PulsePressure           int           `json:"pulse_pressure"`
	MeanArterialPressure    float64       `json:"mean_arterial_pressure"`
	BPCategory              BPCategory    `json:"bp_category"`
	BPRiskMultiplier        float64       `json:"bp_risk_multiplier"`
	RestingHeartRate        int           `json:"resting_heart_rate"`
	MaxHeartRate            int           `json:"max_heart_rate"`
	HeartRateReserve        float64       `json:"heart_rate_reserve"`
	TargetHeartRate         float64       `json:"target_heart_rate"`
	ChestPainType           ChestPainType `json:"chest_pain_type"`
	ChestPainRiskMultiplier float64       `json:"chest_pain_risk_multiplier"`
	ExerciseInducedAngina   bool          `json:"exercise_induced_angina"`
	AnginaRiskMultiplier    float64       `json:"angina_risk_multiplier"`
	Oldpeak                 float64       `json:"oldpeak"`
	OldpeakRiskMultiplier   float64       `json:"oldpeak_risk_multiplier"`
	STSlope                 STSlope       `json:"st_slope"`
	STSlopeRiskMultiplier   float64       `json:"st_slope_risk_multiplier"`
	RestingECG              RestingECG    `json:"resting_ecg"`
	ECGRiskMultiplier       float64       `json:"ecg_risk_multiplier"`

	// Lipid-derived ratios and risk.
	TotalCholesterol           float64              `json:"total_cholesterol"`
	LDL                        float64              `json:"ldl"`
	HDL                        float64              `json:"hdl"`
	HDLEstimated               bool                 `json:"hdl_estimated"`
	LDLEstimated               bool                 `json:"ldl_estimated"`
	CholesterolRatio           float64              `json:"cholesterol_ratio"`
	NonHDLCholesterol          float64              `json:"non_hdl_cholesterol"`
	CholesterolCategory        CholesterolCategory  `json:"cholesterol_category"`
	CholesterolRiskMultiplier  float64              `json:"cholesterol_risk_multiplier"`
	Triglycerides              float64              `json:"triglycerides"`
	TriglycerideCategory       TriglycerideCategory `json:"triglyceride_category"`
	LipoproteinA               float64              `json:"lipoprotein_a"`
	LipoproteinARiskMultiplier float64              `json:"lipoprotein_a_risk_multiplier"`
	HsCRP                      float64              `json:"hs_crp"`
	InflammationLevel          InflammationLevel    `json:"inflammation_level"`
	InflammationRiskMultiplier float64              `json:"inflammation_risk_multiplier"`
	Homocysteine               float64              `json:"homocysteine"`
	HomocysteineRiskMultiplier float64              `json:"homocysteine_risk_multiplier"`

	// Metabolic and diabetes derivations.
	FastingBloodSugar        bool         `json:"fasting_blood_sugar"`
	BloodSugarLevel          float64      `json:"blood_sugar_level"`
	DiabetesIndicated        bool         `json:"diabetes_indicated"`
	DiabetesType             DiabetesType `json:"diabetes_type"`
	DiabetesRiskMultiplier   float64      `json:"diabetes_risk_multiplier"`
	EstimatedHbA1c           float64      `json:"estimated_hba1c"`
	OnDiabetesMedication     bool         `json:"on_diabetes_medication"`
	MetabolicSyndromeScore   int          `json:"metabolic_syndrome_score"`
	MetabolicSyndromePresent bool         `json:"metabolic_syndrome_present"`

	// Lifestyle-derived scores.
	Smoking                 bool          `json:"smoking"`
	SmokingRiskMultiplier   float64       `json:"smoking_risk_multiplier"`
	AlcoholConsumption      bool          `json:"alcohol_consumption"`
	AlcoholRiskMultiplier   float64       `json:"alcohol_risk_multiplier"`
	DietType                DietType      `json:"diet_type"`
	DietQualityScore        float64       `json:"diet_quality_score"`
	DietRiskMultiplier      float64       `json:"diet_risk_multiplier"`
	PhysicalActivityLevel   ActivityLevel `json:"physical_activity_level"`
	ExerciseFrequency       int           `json:"exercise_frequency"`
	ExerciseRiskMultiplier  float64       `json:"exercise_risk_multiplier"`
	SleepHours              float64       `json:"sleep_hours"`
	SleepQualityScore       float64       `json:"sleep_quality_score"`
	SleepRiskMultiplier     float64       `json:"sleep_risk_multiplier"`
	StressLevel             int           `json:"stress_level"`
	StressRiskMultiplier    float64       `json:"stress_risk_multiplier"`
	MentalHealthRiskFactor  float64       `json:"mental_health_risk_factor"`

	// Medical-history multipliers.
	PreviousHeartAttack           bool    `json:"previous_heart_attack"`
	PreviousHeartAttackMultiplier float64 `json:"previous_heart_attack_multiplier"`
	PreviousStroke                bool    `json:"previous_stroke"`
	PreviousStrokeMultiplier      float64 `json:"previous_stroke_multiplier"`
	FamilyHistoryPositive         bool    `json:"family_history_positive"`
	FamilyHistoryMultiplier       float64 `json:"family_history_multiplier"`
	GeneticRiskScore              float64 `json:"genetic_risk_score"`
	GeneticRiskMultiplier         float64 `json:"genetic_risk_multiplier"`
	Hypertension                  bool    `json:"hypertension"`
	HypertensionTreated           bool    `json:"hypertension_treated"`
	MedicalManagementScore        float64 `json:"medical_management_score"`

	// Medication and supplement scores.
	MedicationCount            int     `json:"medication_count"`
	OnMedication               bool    `json:"on_medication"`
	SupplementCount            int     `json:"supplement_count"`
	SupplementScore            float64 `json:"supplement_score"`
	SupplementProtectiveFactor float64 `json:"supplement_protective_factor"`

	// Regional adjustments.
	Region                     string   `json:"region"`
	AreaType                   AreaType `json:"area_type"`
	RegionalRiskMultiplier     float64  `json:"regional_risk_multiplier"`
	UrbanizationRiskMultiplier float64  `json:"urbanization_risk_multiplier"`

	// Clinical-evidence quality.
	ECGResultsProvided         bool    `json:"ecg_results_provided"`
	ECGAbnormalityIndicated    bool    `json:"ecg_abnormality_indicated"`
	ExerciseTestProvided       bool    `json:"exercise_test_provided"`
	ExerciseTestAbnormal       bool    `json:"exercise_test_abnormal"`
	ClinicalEvidenceScore      float64 `json:"clinical_evidence_score"`
	ClinicalEvidenceMultiplier float64 `json:"clinical_evidence_multiplier"`

	// Pairwise interaction terms. Simple products or conditional
	// multipliers of already-derived base terms; they exist so a linear
	// downstream model can capture non-linear risk amplification.
	AgeCholesterolInteraction           float64 `json:"age_cholesterol_interaction"`
	AgeBMIInteraction                   float64 `json:"age_bmi_interaction"`
	AgeDiabetesInteraction              float64 `json:"age_diabetes_interaction"`
	BMIDiabetesInteraction              float64 `json:"bmi_diabetes_interaction"`
	SmokingAgeInteraction               float64 `json:"smoking_age_interaction"`
	BPDiabetesInteraction               float64 `json:"bp_diabetes_interaction"`
	StressSleepInteraction              float64 `json:"stress_sleep_interaction"`
	ExerciseDietInteraction             float64 `json:"exercise_diet_interaction"`
	FamilyHistoryAgeInteraction         float64 `json:"family_history_age_interaction"`
	LipoproteinFamilyHistoryInteraction float64 `json:"lipoprotein_family_history_interaction"`

	// Composite scores.
	CardiovascularHealthScore float64 `json:"cardiovascular_health_score"`
	ModifiableRiskScore       float64 `json:"modifiable_risk_score"`
	NonModifiableRiskScore    float64 `json:"non_modifiable_risk_score"`
	RiskReductionPotential    float64 `json:"risk_reduction_potential"`
	InputUtilizationScore     float64 `json:"input_utilization_score"`
}

// InputUtilizationReport summarises how much of the recognized input
// surface a record actually used, and how that affects downstream
// prediction quality. Produced fresh per call by GenerateUtilizationReport.
type InputUtilizationReport struct {
	TotalFields               int      `json:"total_fields"`
	FieldsWithData            int      `json:"fields_with_data"`
	UtilizationPercentage     float64  `json:"utilization_percentage"`
	MissingCriticalFields     []string `json:"missing_critical_fields"`
	ProvidedOptionalFields    []string `json:"provided_optional_fields"`
	DataQualityScore          float64  `json:"data_quality_score"`
	PredictionConfidenceBoost float64  `json:"prediction_confidence_boost"`
	Recommendations           []string `json:"recommendations"`
}
