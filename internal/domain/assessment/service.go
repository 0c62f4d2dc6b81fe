package assessment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cardia/cardia/internal/domain/risk"
)

// ErrInvalidInput marks request-shape failures so handlers can answer
// 400 while repository failures surface as 500.
var ErrInvalidInput = errors.New("invalid input")

// Event types published after state changes.
const (
	EventCreated = "assessment.created"
	EventDeleted = "assessment.deleted"
)

// MaxBatchSize bounds a single PreviewBatch call.
const MaxBatchSize = 100

// EventSink receives domain events after a state change has been
// persisted. Emit must return promptly; delivery happens out of band and
// its outcome never affects the calling operation.
type EventSink interface {
	Emit(ctx context.Context, eventType string, resourceID uuid.UUID, payload interface{})
}

// Service provides business logic for the assessment domain.
type Service struct {
	assessments Repository
	events      EventSink
}

// NewService creates a new assessment domain service. sink may be nil
// when no outbound event delivery is configured.
func NewService(r Repository, sink EventSink) *Service {
	return &Service{assessments: r, events: sink}
}

var validStatuses = map[string]bool{
	"pending": true, "completed": true, "amended": true, "entered-in-error": true,
}

func (s *Service) emit(ctx context.Context, eventType string, id uuid.UUID, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, eventType, id, payload)
}

// createdEvent is the outbound assessment.created body. Endpoints get
// identifiers and the summary classification only; the clinical record
// and notes stay behind the authenticated API.
type createdEvent struct {
	ID        string         `json:"id"`
	PatientID string         `json:"patient_id"`
	RiskLevel risk.RiskLevel `json:"risk_level"`
	RiskScore float64        `json:"risk_score"`
}

// CreateAssessment derives the full feature set and utilization report
// for the submitted record and persists the run. Every derived column is
// computed here; anything the caller put in them is overwritten.
func (s *Service) CreateAssessment(ctx context.Context, a *Assessment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if a.Status == "" {
		a.Status = "completed"
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidInput, a.Status)
	}

	s.derive(a)

	if err := s.assessments.Create(ctx, a); err != nil {
		return err
	}
	s.emit(ctx, EventCreated, a.ID, createdEvent{
		ID:        a.ID.String(),
		PatientID: a.PatientID.String(),
		RiskLevel: a.RiskLevel,
		RiskScore: a.RiskScore,
	})
	return nil
}

// derive fills the snapshot columns from the submitted record and runs
// the engine. Snapshot pointers mirror the raw input: nil stays nil even
// though the engine substitutes defaults internally.
func (s *Service) derive(a *Assessment) {
	a.PatientAge = a.Record.Age
	a.PatientGender = genderStr(a.Record.Gender)
	a.SystolicBP = a.Record.SystolicBP
	a.RestingBP = a.Record.RestingBP
	a.TotalCholesterol = a.Record.TotalCholesterol
	a.FastingBloodSugar = a.Record.FastingBloodSugar
	a.MaxHeartRate = a.Record.MaxHeartRate
	a.ExerciseAngina = a.Record.ExerciseInducedAngina
	a.Oldpeak = a.Record.Oldpeak
	a.STSlope = slopeStr(a.Record.STSlope)

	a.Features = risk.DeriveFeatures(a.Record)
	a.Report = risk.GenerateUtilizationReport(a.Record)
	a.HealthScore = a.Features.CardiovascularHealthScore
	a.RiskScore = risk.RiskScoreFrom(a.Features)
	a.RiskLevel = risk.RiskLevelFor(a.RiskScore)
	a.UtilizationPct = a.Report.UtilizationPercentage
	a.DataQualityScore = a.Report.DataQualityScore
	a.EngineVersion = risk.EngineVersion
}

func genderStr(g *risk.Gender) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

func slopeStr(sl *risk.STSlope) *string {
	if sl == nil {
		return nil
	}
	s := string(*sl)
	return &s
}

// PreviewAssessment runs the engine without persisting anything.
func (s *Service) PreviewAssessment(rec risk.PatientRecord) Preview {
	features := risk.DeriveFeatures(rec)
	score := risk.RiskScoreFrom(features)
	return Preview{
		Features:      features,
		Report:        risk.GenerateUtilizationReport(rec),
		RiskScore:     score,
		RiskLevel:     risk.RiskLevelFor(score),
		EngineVersion: risk.EngineVersion,
	}
}

// PreviewBatch evaluates up to MaxBatchSize records in one call. Results
// are returned in input order.
func (s *Service) PreviewBatch(recs []risk.PatientRecord) ([]Preview, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: at least one record is required", ErrInvalidInput)
	}
	if len(recs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d exceeds maximum of %d", ErrInvalidInput, len(recs), MaxBatchSize)
	}
	previews := make([]Preview, len(recs))
	for i, rec := range recs {
		previews[i] = s.PreviewAssessment(rec)
	}
	return previews, nil
}

func (s *Service) GetAssessment(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return s.assessments.GetByID(ctx, id)
}

func (s *Service) ListAssessments(ctx context.Context, limit, offset int) ([]*Assessment, int, error) {
	return s.assessments.List(ctx, limit, offset)
}

func (s *Service) ListAssessmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	return s.assessments.ListByPatient(ctx, patientID, limit, offset)
}

// UpdateAssessment changes the workflow status and clinician notes of an
// existing run. The record and every derived column are immutable after
// creation; amending means re-submitting and marking the old run.
func (s *Service) UpdateAssessment(ctx context.Context, id uuid.UUID, status string, notes *string) (*Assessment, error) {
	if status != "" && !validStatuses[status] {
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, status)
	}
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status != "" {
		a.Status = status
	}
	if notes != nil {
		a.Notes = notes
	}
	if err := s.assessments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAssessment(ctx context.Context, id uuid.UUID) error {
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.assessments.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, EventDeleted, id, map[string]interface{}{
		"id":         id.String(),
		"patient_id": a.PatientID.String(),
	})
	return nil
}

// PatientStatistics aggregates a patient's assessment history: total
// runs, the most recent run, risk-level counts, and score averages.
func (s *Service) PatientStatistics(ctx context.Context, patientID uuid.UUID) (*PatientStats, error) {
	counts, err := s.assessments.CountByRiskLevel(ctx, patientID)
	if err != nil {
		return nil, err
	}
	stats := &PatientStats{
		PatientID:       patientID,
		RiskLevelCounts: make(map[risk.RiskLevel]int, len(counts)),
	}
	for level, n := range counts {
		stats.RiskLevelCounts[risk.RiskLevel(level)] = n
		stats.TotalAssessments += n
	}
	if stats.TotalAssessments == 0 {
		return stats, nil
	}

	latest, _, err := s.assessments.ListByPatient(ctx, patientID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		stats.Latest = latest[0]
	}

	avgRisk, avgQuality, err := s.assessments.Averages(ctx, patientID)
	if err != nil {
		return nil, err
	}
	stats.AverageRiskScore = avgRisk
	stats.AverageQuality = avgQuality
	return stats, nil
}
