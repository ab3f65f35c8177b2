package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// StepInput is one step of a procedure create/update payload.
type StepInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Instructions string   `json:"instructions"`
	Order        int      `json:"order"`
	Photos       []string `json:"photos,omitempty"`
	Files        []string `json:"files,omitempty"`
}

// ProcedureInput is a procedure create/update payload. Steps always replace
// the existing sequence wholesale.
type ProcedureInput struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags,omitempty"`
	FlowchartData json.RawMessage `json:"flowchartData,omitempty"`
	Steps         []StepInput     `json:"steps,omitempty"`
}

// ProcedureService manages the procedure catalog. Mutations are admin-only;
// deletion is a soft delete so past executions keep valid references.
type ProcedureService struct {
	procedures repositories.ProcedureRepository
}

// NewProcedureService creates a new procedure service.
func NewProcedureService(procedures repositories.ProcedureRepository) *ProcedureService {
	return &ProcedureService{procedures: procedures}
}

// Create adds a procedure with its steps.
func (s *ProcedureService) Create(ctx context.Context, identity entities.Identity, input ProcedureInput) (*entities.Procedure, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin role required")
	}
	if input.Title == "" {
		return nil, apperrors.NewValidationError("title is required")
	}

	now := time.Now()
	procedure := &entities.Procedure{
		ID:            uuid.New().String(),
		Title:         input.Title,
		Description:   input.Description,
		Category:      input.Category,
		Tags:          input.Tags,
		IsActive:      true,
		FlowchartData: input.FlowchartData,
		CreatedBy:     identity.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Steps:         buildSteps(input.Steps, now),
	}
	for _, step := range procedure.Steps {
		step.ProcedureID = procedure.ID
	}

	if err := s.procedures.Create(ctx, procedure); err != nil {
		return nil, err
	}
	return procedure, nil
}

// Get returns a procedure with its steps.
func (s *ProcedureService) Get(ctx context.Context, id string) (*entities.Procedure, error) {
	return s.procedures.GetWithSteps(ctx, id)
}

// List returns procedures matching the filter.
func (s *ProcedureService) List(ctx context.Context, filter repositories.ProcedureFilter) ([]*entities.Procedure, error) {
	return s.procedures.List(ctx, filter)
}

// Update rewrites a procedure and replaces its step sequence.
func (s *ProcedureService) Update(ctx context.Context, identity entities.Identity, id string, input ProcedureInput) (*entities.Procedure, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin role required")
	}
	if input.Title == "" {
		return nil, apperrors.NewValidationError("title is required")
	}

	procedure, err := s.procedures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	procedure.Title = input.Title
	procedure.Description = input.Description
	procedure.Category = input.Category
	procedure.Tags = input.Tags
	procedure.FlowchartData = input.FlowchartData
	procedure.UpdatedAt = now

	if err := s.procedures.Update(ctx, procedure); err != nil {
		return nil, err
	}

	steps := buildSteps(input.Steps, now)
	for _, step := range steps {
		step.ProcedureID = procedure.ID
	}
	if err := s.procedures.ReplaceSteps(ctx, procedure.ID, steps); err != nil {
		return nil, err
	}

	procedure.Steps = steps
	return procedure, nil
}

// Delete soft-deletes a procedure.
func (s *ProcedureService) Delete(ctx context.Context, identity entities.Identity, id string) error {
	if !identity.IsAdmin() {
		return apperrors.NewForbiddenError("admin role required")
	}
	return s.procedures.SoftDelete(ctx, id)
}

func buildSteps(inputs []StepInput, now time.Time) []*entities.Step {
	steps := make([]*entities.Step, 0, len(inputs))
	for _, input := range inputs {
		steps = append(steps, &entities.Step{
			ID:             uuid.New().String(),
			Title:          input.Title,
			Description:    input.Description,
			Instructions:   input.Instructions,
			Order:          input.Order,
			Photos:         input.Photos,
			Files:          input.Files,
			ValidationType: entities.ValidationManual,
			CreatedAt:      now,
		})
	}
	return steps
}
