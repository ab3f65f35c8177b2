package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// ExecutionAdapter implements ExecutionRepository.
type ExecutionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewExecutionAdapter creates a new execution adapter.
func NewExecutionAdapter(client *postgres.Client) repositories.ExecutionRepository {
	return &ExecutionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new execution.
func (a *ExecutionAdapter) Create(ctx context.Context, execution *entities.Execution) error {
	record := goqu.Record{
		"id":           execution.ID,
		"user_id":      execution.UserID,
		"procedure_id": execution.ProcedureID,
		"status":       string(execution.Status),
		"current_step": execution.CurrentStep,
		"started_at":   execution.StartedAt,
	}

	query, args, err := a.db.Insert("executions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create execution", err)
	}
	return nil
}

// GetByID retrieves an execution without related rows.
func (a *ExecutionAdapter) GetByID(ctx context.Context, id string) (*entities.Execution, error) {
	query, args, err := a.selectExecutions().
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	execution, err := a.scanExecution(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("execution not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get execution", err)
	}
	return execution, nil
}

// GetWithDetails retrieves an execution with its procedure, the procedure's
// steps and the per-step completion records.
func (a *ExecutionAdapter) GetWithDetails(ctx context.Context, id string) (*entities.Execution, error) {
	execution, err := a.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	procedures := NewProcedureAdapter(a.client)
	procedure, err := procedures.GetWithSteps(ctx, execution.ProcedureID)
	if err != nil {
		return nil, err
	}
	execution.Procedure = procedure

	stepExecutions, err := a.listStepExecutions(ctx, id)
	if err != nil {
		return nil, err
	}

	stepsByID := make(map[string]*entities.Step, len(procedure.Steps))
	for _, step := range procedure.Steps {
		stepsByID[step.ID] = step
	}
	for _, se := range stepExecutions {
		se.Step = stepsByID[se.StepID]
	}
	execution.StepExecutions = stepExecutions

	return execution, nil
}

// List retrieves executions matching the filter, newest first.
func (a *ExecutionAdapter) List(ctx context.Context, filter repositories.ExecutionFilter) ([]*entities.Execution, error) {
	ds := a.selectExecutions().Order(goqu.I("started_at").Desc())

	if filter.UserID != "" {
		ds = ds.Where(goqu.Ex{"user_id": filter.UserID})
	}
	if filter.ProcedureID != "" {
		ds = ds.Where(goqu.Ex{"procedure_id": filter.ProcedureID})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list executions", err)
	}
	defer rows.Close()

	executions := []*entities.Execution{}
	for rows.Next() {
		execution, err := a.scanExecution(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan execution", err)
		}
		executions = append(executions, execution)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate executions", err)
	}
	return executions, nil
}

// UpsertStepExecution inserts or updates the completion record for
// (execution_id, step_id) and returns the stored row. The conflict target
// makes retried submissions land on the same row instead of duplicating it.
func (a *ExecutionAdapter) UpsertStepExecution(ctx context.Context, se *entities.StepExecution) (*entities.StepExecution, error) {
	record := goqu.Record{
		"id":           se.ID,
		"execution_id": se.ExecutionID,
		"step_id":      se.StepID,
		"status":       string(se.Status),
		"photos":       pq.Array(se.Photos),
		"comments":     se.Comments,
		"completed_at": se.CompletedAt,
	}

	query, args, err := a.db.Insert("step_executions").
		Rows(record).
		OnConflict(goqu.DoUpdate("execution_id, step_id", goqu.Record{
			"status":       string(se.Status),
			"photos":       pq.Array(se.Photos),
			"comments":     se.Comments,
			"completed_at": se.CompletedAt,
		})).
		Returning("id", "execution_id", "step_id", "status", "photos", "comments", "completed_at").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build upsert query", err)
	}

	stored, err := a.scanStepExecution(a.client.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to upsert step execution", err)
	}
	return stored, nil
}

// AdvanceCurrentStep raises current_step to the candidate value if it is
// higher than the stored one. GREATEST in the statement keeps the update
// monotonic under concurrent or replayed submissions.
func (a *ExecutionAdapter) AdvanceCurrentStep(ctx context.Context, executionID string, candidate int) error {
	query, args, err := a.db.Update("executions").
		Set(goqu.Record{"current_step": goqu.L("GREATEST(current_step, ?)", candidate)}).
		Where(goqu.Ex{"id": executionID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to advance current step", err)
	}
	return requireRowsAffected(result, "execution not found")
}

// Complete marks an execution finished.
func (a *ExecutionAdapter) Complete(ctx context.Context, executionID string, at time.Time) error {
	query, args, err := a.db.Update("executions").
		Set(goqu.Record{
			"status":       string(entities.ExecutionCompleted),
			"completed_at": at,
		}).
		Where(goqu.Ex{"id": executionID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to complete execution", err)
	}
	return requireRowsAffected(result, "execution not found")
}

func (a *ExecutionAdapter) listStepExecutions(ctx context.Context, executionID string) ([]*entities.StepExecution, error) {
	query, args, err := a.db.Select(
		"id", "execution_id", "step_id", "status", "photos", "comments", "completed_at",
	).From("step_executions").
		Where(goqu.Ex{"execution_id": executionID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list step executions", err)
	}
	defer rows.Close()

	stepExecutions := []*entities.StepExecution{}
	for rows.Next() {
		se, err := a.scanStepExecution(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan step execution", err)
		}
		stepExecutions = append(stepExecutions, se)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate step executions", err)
	}
	return stepExecutions, nil
}

func (a *ExecutionAdapter) selectExecutions() *goqu.SelectDataset {
	return a.db.Select(
		"id", "user_id", "procedure_id", "status", "current_step",
		"started_at", "completed_at",
	).From("executions")
}

func (a *ExecutionAdapter) scanExecution(row scannable) (*entities.Execution, error) {
	execution := &entities.Execution{}
	var status string
	var completedAt sql.NullTime

	err := row.Scan(
		&execution.ID,
		&execution.UserID,
		&execution.ProcedureID,
		&status,
		&execution.CurrentStep,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = entities.ExecutionStatus(status)
	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}
	return execution, nil
}

func (a *ExecutionAdapter) scanStepExecution(row scannable) (*entities.StepExecution, error) {
	se := &entities.StepExecution{}
	var status string
	var completedAt sql.NullTime

	err := row.Scan(
		&se.ID,
		&se.ExecutionID,
		&se.StepID,
		&status,
		pq.Array(&se.Photos),
		&se.Comments,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	se.Status = entities.StepExecutionStatus(status)
	if completedAt.Valid {
		se.CompletedAt = &completedAt.Time
	}
	return se, nil
}
