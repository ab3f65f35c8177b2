package repositories

import (
	"context"
	"time"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// ExecutionFilter narrows execution listings.
type ExecutionFilter struct {
	UserID      string
	ProcedureID string
}

// ExecutionRepository defines execution persistence operations.
//
// UpsertStepExecution must be a true conditional insert-or-update keyed on
// (execution_id, step_id) so concurrent retries cannot produce duplicate
// rows. AdvanceCurrentStep must be monotonic at the statement level
// (GREATEST of the stored and proposed values) so replays never regress the
// high-water mark.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *entities.Execution) error
	GetByID(ctx context.Context, id string) (*entities.Execution, error)
	GetWithDetails(ctx context.Context, id string) (*entities.Execution, error)
	List(ctx context.Context, filter ExecutionFilter) ([]*entities.Execution, error)
	UpsertStepExecution(ctx context.Context, se *entities.StepExecution) (*entities.StepExecution, error)
	AdvanceCurrentStep(ctx context.Context, executionID string, candidate int) error
	Complete(ctx context.Context, executionID string, at time.Time) error
}
