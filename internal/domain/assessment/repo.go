package assessment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for assessment runs.
type Repository interface {
	Create(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	Update(ctx context.Context, a *Assessment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Assessment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error)
	CountByRiskLevel(ctx context.Context, patientID uuid.UUID) (map[string]int, error)
	Averages(ctx context.Context, patientID uuid.UUID) (riskScore, quality float64, err error)
}
