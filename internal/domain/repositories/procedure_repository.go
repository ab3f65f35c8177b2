package repositories

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// ProcedureFilter narrows procedure listings.
type ProcedureFilter struct {
	Category string
	IsActive *bool
	Limit    int
	Offset   int
}

// ProcedureRepository defines procedure and step persistence operations.
// Step edits use replace-all semantics: ReplaceSteps deletes every existing
// step of the procedure and inserts the new sequence.
type ProcedureRepository interface {
	Create(ctx context.Context, procedure *entities.Procedure) error
	GetByID(ctx context.Context, id string) (*entities.Procedure, error)
	GetWithSteps(ctx context.Context, id string) (*entities.Procedure, error)
	List(ctx context.Context, filter ProcedureFilter) ([]*entities.Procedure, error)
	Update(ctx context.Context, procedure *entities.Procedure) error
	// SoftDelete flips is_active to false; rows are never physically removed
	// so execution history keeps valid references.
	SoftDelete(ctx context.Context, id string) error
	ReplaceSteps(ctx context.Context, procedureID string, steps []*entities.Step) error
	GetStepByID(ctx context.Context, stepID string) (*entities.Step, error)
	ListSteps(ctx context.Context, procedureID string) ([]*entities.Step, error)
}
