package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// StepUpdate is the payload of a step status submission.
type StepUpdate struct {
	StepID   string   `json:"stepId"`
	Status   string   `json:"status"`
	Comments string   `json:"comments,omitempty"`
	Photos   []string `json:"photos,omitempty"`
}

// ExecutionService drives a user's run-through of a procedure.
//
// Ownership checks always answer not-found rather than forbidden so the
// existence of another user's execution is never confirmed. Step updates
// after completion are allowed: technicians add late photos and comments to
// finished runs, and currentStep is a progress marker, not a gate.
type ExecutionService struct {
	executions repositories.ExecutionRepository
	procedures repositories.ProcedureRepository
}

// NewExecutionService creates a new execution service.
func NewExecutionService(
	executions repositories.ExecutionRepository,
	procedures repositories.ProcedureRepository,
) *ExecutionService {
	return &ExecutionService{
		executions: executions,
		procedures: procedures,
	}
}

// Start begins an execution of a procedure for the caller.
func (s *ExecutionService) Start(ctx context.Context, identity entities.Identity, procedureID string) (*entities.Execution, error) {
	if procedureID == "" {
		return nil, apperrors.NewValidationError("procedureId is required")
	}

	if _, err := s.procedures.GetByID(ctx, procedureID); err != nil {
		return nil, err
	}

	execution := &entities.Execution{
		ID:          uuid.New().String(),
		UserID:      identity.UserID,
		ProcedureID: procedureID,
		Status:      entities.ExecutionInProgress,
		CurrentStep: 0,
		StartedAt:   time.Now(),
	}
	if err := s.executions.Create(ctx, execution); err != nil {
		return nil, err
	}
	return execution, nil
}

// UpdateStep records the status of one step within an execution. The write
// is an upsert keyed on (execution, step), so retries and out-of-order
// submissions are safe. Completing a step advances the execution's
// high-water mark to the step's order + 1 when that is further than the
// current one.
func (s *ExecutionService) UpdateStep(ctx context.Context, identity entities.Identity, executionID string, update StepUpdate) (*entities.StepExecution, error) {
	if update.StepID == "" {
		return nil, apperrors.NewValidationError("stepId is required")
	}
	status := entities.StepExecutionStatus(update.Status)
	if status != entities.StepPending && status != entities.StepCompleted {
		return nil, apperrors.NewValidationError("status must be pending or completed")
	}

	execution, err := s.ownedExecution(ctx, identity, executionID)
	if err != nil {
		return nil, err
	}

	step, err := s.procedures.GetStepByID(ctx, update.StepID)
	if err != nil {
		return nil, err
	}
	if step.ProcedureID != execution.ProcedureID {
		return nil, apperrors.NewValidationError("step does not belong to the execution's procedure")
	}

	se := &entities.StepExecution{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		Status:      status,
		Photos:      update.Photos,
		Comments:    update.Comments,
	}
	if status == entities.StepCompleted {
		now := time.Now()
		se.CompletedAt = &now
	}

	stored, err := s.executions.UpsertStepExecution(ctx, se)
	if err != nil {
		return nil, err
	}

	if status == entities.StepCompleted {
		if err := s.executions.AdvanceCurrentStep(ctx, execution.ID, step.Order+1); err != nil {
			return nil, err
		}
	}

	stored.Step = step
	return stored, nil
}

// Complete marks an execution finished.
func (s *ExecutionService) Complete(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error) {
	execution, err := s.ownedExecution(ctx, identity, executionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.executions.Complete(ctx, execution.ID, now); err != nil {
		return nil, err
	}

	execution.Status = entities.ExecutionCompleted
	execution.CompletedAt = &now
	return execution, nil
}

// Get returns the caller's execution with its procedure, steps and per-step
// records.
func (s *ExecutionService) Get(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error) {
	if _, err := s.ownedExecution(ctx, identity, executionID); err != nil {
		return nil, err
	}
	return s.executions.GetWithDetails(ctx, executionID)
}

// List returns the caller's executions, optionally filtered by procedure.
func (s *ExecutionService) List(ctx context.Context, identity entities.Identity, procedureID string) ([]*entities.Execution, error) {
	return s.executions.List(ctx, repositories.ExecutionFilter{
		UserID:      identity.UserID,
		ProcedureID: procedureID,
	})
}

func (s *ExecutionService) ownedExecution(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error) {
	if executionID == "" {
		return nil, apperrors.NewValidationError("execution id is required")
	}

	execution, err := s.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if execution.UserID != identity.UserID {
		return nil, apperrors.NewNotFoundError("execution not found")
	}
	return execution, nil
}
