package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// ProcedureAdapter implements ProcedureRepository.
type ProcedureAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProcedureAdapter creates a new procedure adapter.
func NewProcedureAdapter(client *postgres.Client) repositories.ProcedureRepository {
	return &ProcedureAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a procedure and its steps in a single transaction.
func (a *ProcedureAdapter) Create(ctx context.Context, procedure *entities.Procedure) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	record := goqu.Record{
		"id":             procedure.ID,
		"title":          procedure.Title,
		"description":    procedure.Description,
		"category":       procedure.Category,
		"tags":           pq.Array(procedure.Tags),
		"is_active":      procedure.IsActive,
		"flowchart_data": nullableJSON(procedure.FlowchartData),
		"created_by":     nullableString(procedure.CreatedBy),
		"created_at":     procedure.CreatedAt,
		"updated_at":     procedure.UpdatedAt,
	}

	query, args, err := a.db.Insert("procedures").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create procedure", err)
	}

	if err = a.insertSteps(ctx, tx, procedure.ID, procedure.Steps); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// GetByID retrieves a procedure without its steps.
func (a *ProcedureAdapter) GetByID(ctx context.Context, id string) (*entities.Procedure, error) {
	query, args, err := a.selectProcedures().
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	procedure, err := a.scanProcedure(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("procedure not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get procedure", err)
	}
	return procedure, nil
}

// GetWithSteps retrieves a procedure with its steps ordered by position.
func (a *ProcedureAdapter) GetWithSteps(ctx context.Context, id string) (*entities.Procedure, error) {
	procedure, err := a.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	steps, err := a.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}

	procedure.Steps = steps
	return procedure, nil
}

// List retrieves procedures matching the filter, newest first.
func (a *ProcedureAdapter) List(ctx context.Context, filter repositories.ProcedureFilter) ([]*entities.Procedure, error) {
	ds := a.selectProcedures().Order(goqu.I("created_at").Desc())

	if filter.Category != "" {
		ds = ds.Where(goqu.Ex{"category": filter.Category})
	}
	if filter.IsActive != nil {
		ds = ds.Where(goqu.Ex{"is_active": *filter.IsActive})
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list procedures", err)
	}
	defer rows.Close()

	procedures := []*entities.Procedure{}
	for rows.Next() {
		procedure, err := a.scanProcedure(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan procedure", err)
		}
		procedures = append(procedures, procedure)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate procedures", err)
	}
	return procedures, nil
}

// Update modifies a procedure's own fields. Steps are managed separately
// through ReplaceSteps.
func (a *ProcedureAdapter) Update(ctx context.Context, procedure *entities.Procedure) error {
	record := goqu.Record{
		"title":          procedure.Title,
		"description":    procedure.Description,
		"category":       procedure.Category,
		"tags":           pq.Array(procedure.Tags),
		"is_active":      procedure.IsActive,
		"flowchart_data": nullableJSON(procedure.FlowchartData),
		"updated_at":     procedure.UpdatedAt,
	}

	query, args, err := a.db.Update("procedures").
		Set(record).
		Where(goqu.Ex{"id": procedure.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update procedure", err)
	}
	return requireRowsAffected(result, "procedure not found")
}

// SoftDelete flips is_active to false.
func (a *ProcedureAdapter) SoftDelete(ctx context.Context, id string) error {
	query, args, err := a.db.Update("procedures").
		Set(goqu.Record{"is_active": false, "updated_at": goqu.L("NOW()")}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete procedure", err)
	}
	return requireRowsAffected(result, "procedure not found")
}

// ReplaceSteps swaps the full step sequence of a procedure in one
// transaction.
func (a *ProcedureAdapter) ReplaceSteps(ctx context.Context, procedureID string, steps []*entities.Step) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query, args, err := a.db.Delete("steps").
		Where(goqu.Ex{"procedure_id": procedureID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete steps", err)
	}

	if err = a.insertSteps(ctx, tx, procedureID, steps); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// GetStepByID retrieves a single step.
func (a *ProcedureAdapter) GetStepByID(ctx context.Context, stepID string) (*entities.Step, error) {
	query, args, err := a.selectSteps().
		Where(goqu.Ex{"id": stepID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	step, err := a.scanStep(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("step not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get step", err)
	}
	return step, nil
}

// ListSteps retrieves a procedure's steps ordered by position.
func (a *ProcedureAdapter) ListSteps(ctx context.Context, procedureID string) ([]*entities.Step, error) {
	query, args, err := a.selectSteps().
		Where(goqu.Ex{"procedure_id": procedureID}).
		Order(goqu.I("position").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list steps", err)
	}
	defer rows.Close()

	steps := []*entities.Step{}
	for rows.Next() {
		step, err := a.scanStep(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan step", err)
		}
		steps = append(steps, step)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate steps", err)
	}
	return steps, nil
}

func (a *ProcedureAdapter) insertSteps(ctx context.Context, tx *sql.Tx, procedureID string, steps []*entities.Step) error {
	if len(steps) == 0 {
		return nil
	}

	records := make([]interface{}, 0, len(steps))
	for _, step := range steps {
		records = append(records, goqu.Record{
			"id":              step.ID,
			"procedure_id":    procedureID,
			"title":           step.Title,
			"description":     step.Description,
			"instructions":    step.Instructions,
			"position":        step.Order,
			"photos":          pq.Array(step.Photos),
			"files":           pq.Array(step.Files),
			"validation_type": string(step.ValidationType),
			"created_at":      step.CreatedAt,
		})
	}

	query, args, err := a.db.Insert("steps").Rows(records...).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to insert steps", err)
	}
	return nil
}

func (a *ProcedureAdapter) selectProcedures() *goqu.SelectDataset {
	return a.db.Select(
		"id", "title", "description", "category", "tags", "is_active",
		"flowchart_data", "created_by", "created_at", "updated_at",
	).From("procedures")
}

func (a *ProcedureAdapter) selectSteps() *goqu.SelectDataset {
	return a.db.Select(
		"id", "procedure_id", "title", "description", "instructions",
		"position", "photos", "files", "validation_type", "created_at",
	).From("steps")
}

func (a *ProcedureAdapter) scanProcedure(row scannable) (*entities.Procedure, error) {
	procedure := &entities.Procedure{}
	var flowchart, createdBy sql.NullString

	err := row.Scan(
		&procedure.ID,
		&procedure.Title,
		&procedure.Description,
		&procedure.Category,
		pq.Array(&procedure.Tags),
		&procedure.IsActive,
		&flowchart,
		&createdBy,
		&procedure.CreatedAt,
		&procedure.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if flowchart.Valid {
		procedure.FlowchartData = json.RawMessage(flowchart.String)
	}
	procedure.CreatedBy = createdBy.String
	return procedure, nil
}

func (a *ProcedureAdapter) scanStep(row scannable) (*entities.Step, error) {
	step := &entities.Step{}
	var validationType string

	err := row.Scan(
		&step.ID,
		&step.ProcedureID,
		&step.Title,
		&step.Description,
		&step.Instructions,
		&step.Order,
		pq.Array(&step.Photos),
		pq.Array(&step.Files),
		&validationType,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.ValidationType = entities.ValidationType(validationType)
	return step, nil
}
