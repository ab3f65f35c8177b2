package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

type stubExecutionRepo struct {
	executions     map[string]*entities.Execution
	stepExecutions map[string]*entities.StepExecution
	upsertCalls    int
}

func newStubExecutionRepo() *stubExecutionRepo {
	return &stubExecutionRepo{
		executions:     map[string]*entities.Execution{},
		stepExecutions: map[string]*entities.StepExecution{},
	}
}

func (r *stubExecutionRepo) Create(ctx context.Context, execution *entities.Execution) error {
	r.executions[execution.ID] = execution
	return nil
}

func (r *stubExecutionRepo) GetByID(ctx context.Context, id string) (*entities.Execution, error) {
	execution, ok := r.executions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("execution not found")
	}
	copied := *execution
	return &copied, nil
}

func (r *stubExecutionRepo) GetWithDetails(ctx context.Context, id string) (*entities.Execution, error) {
	return r.GetByID(ctx, id)
}

func (r *stubExecutionRepo) List(ctx context.Context, filter repositories.ExecutionFilter) ([]*entities.Execution, error) {
	result := []*entities.Execution{}
	for _, e := range r.executions {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.ProcedureID != "" && e.ProcedureID != filter.ProcedureID {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (r *stubExecutionRepo) UpsertStepExecution(ctx context.Context, se *entities.StepExecution) (*entities.StepExecution, error) {
	r.upsertCalls++
	key := se.ExecutionID + "/" + se.StepID
	if existing, ok := r.stepExecutions[key]; ok {
		existing.Status = se.Status
		existing.Photos = se.Photos
		existing.Comments = se.Comments
		existing.CompletedAt = se.CompletedAt
		copied := *existing
		return &copied, nil
	}
	r.stepExecutions[key] = se
	copied := *se
	return &copied, nil
}

func (r *stubExecutionRepo) AdvanceCurrentStep(ctx context.Context, executionID string, candidate int) error {
	execution, ok := r.executions[executionID]
	if !ok {
		return apperrors.NewNotFoundError("execution not found")
	}
	if candidate > execution.CurrentStep {
		execution.CurrentStep = candidate
	}
	return nil
}

func (r *stubExecutionRepo) Complete(ctx context.Context, executionID string, at time.Time) error {
	execution, ok := r.executions[executionID]
	if !ok {
		return apperrors.NewNotFoundError("execution not found")
	}
	execution.Status = entities.ExecutionCompleted
	execution.CompletedAt = &at
	return nil
}

type stubProcedureRepo struct {
	procedures map[string]*entities.Procedure
	steps      map[string]*entities.Step
}

func newStubProcedureRepo() *stubProcedureRepo {
	return &stubProcedureRepo{
		procedures: map[string]*entities.Procedure{},
		steps:      map[string]*entities.Step{},
	}
}

func (r *stubProcedureRepo) Create(ctx context.Context, procedure *entities.Procedure) error {
	r.procedures[procedure.ID] = procedure
	for _, step := range procedure.Steps {
		r.steps[step.ID] = step
	}
	return nil
}

func (r *stubProcedureRepo) GetByID(ctx context.Context, id string) (*entities.Procedure, error) {
	procedure, ok := r.procedures[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("procedure not found")
	}
	return procedure, nil
}

func (r *stubProcedureRepo) GetWithSteps(ctx context.Context, id string) (*entities.Procedure, error) {
	return r.GetByID(ctx, id)
}

func (r *stubProcedureRepo) List(ctx context.Context, filter repositories.ProcedureFilter) ([]*entities.Procedure, error) {
	result := []*entities.Procedure{}
	for _, p := range r.procedures {
		result = append(result, p)
	}
	return result, nil
}

func (r *stubProcedureRepo) Update(ctx context.Context, procedure *entities.Procedure) error {
	r.procedures[procedure.ID] = procedure
	return nil
}

func (r *stubProcedureRepo) SoftDelete(ctx context.Context, id string) error {
	procedure, ok := r.procedures[id]
	if !ok {
		return apperrors.NewNotFoundError("procedure not found")
	}
	procedure.IsActive = false
	return nil
}

func (r *stubProcedureRepo) ReplaceSteps(ctx context.Context, procedureID string, steps []*entities.Step) error {
	for id, step := range r.steps {
		if step.ProcedureID == procedureID {
			delete(r.steps, id)
		}
	}
	for _, step := range steps {
		r.steps[step.ID] = step
	}
	return nil
}

func (r *stubProcedureRepo) GetStepByID(ctx context.Context, stepID string) (*entities.Step, error) {
	step, ok := r.steps[stepID]
	if !ok {
		return nil, apperrors.NewNotFoundError("step not found")
	}
	return step, nil
}

func (r *stubProcedureRepo) ListSteps(ctx context.Context, procedureID string) ([]*entities.Step, error) {
	result := []*entities.Step{}
	for _, step := range r.steps {
		if step.ProcedureID == procedureID {
			result = append(result, step)
		}
	}
	return result, nil
}

func seedProcedure(t *testing.T, procedures *stubProcedureRepo) *entities.Procedure {
	t.Helper()
	procedure := &entities.Procedure{
		ID:       "proc-1",
		Title:    "Inverter reset",
		IsActive: true,
		Steps: []*entities.Step{
			{ID: "step-1", ProcedureID: "proc-1", Title: "Power down", Order: 1},
			{ID: "step-2", ProcedureID: "proc-1", Title: "Reset controller", Order: 2},
		},
	}
	require.NoError(t, procedures.Create(context.Background(), procedure))
	return procedure
}

func TestExecutionService_Start(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewExecutionService(executions, procedures)
	identity := entities.Identity{UserID: "user-1", Role: entities.RoleUser}

	execution, err := svc.Start(context.Background(), identity, "proc-1")
	require.NoError(t, err)

	assert.Equal(t, entities.ExecutionInProgress, execution.Status)
	assert.Equal(t, 0, execution.CurrentStep)
	assert.Equal(t, "user-1", execution.UserID)
	assert.Nil(t, execution.CompletedAt)
}

func TestExecutionService_Start_ProcedureMissing(t *testing.T) {
	svc := services.NewExecutionService(newStubExecutionRepo(), newStubProcedureRepo())
	identity := entities.Identity{UserID: "user-1"}

	_, err := svc.Start(context.Background(), identity, "missing")
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
}

func TestExecutionService_StepLifecycle(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewExecutionService(executions, procedures)
	identity := entities.Identity{UserID: "user-1"}

	execution, err := svc.Start(context.Background(), identity, "proc-1")
	require.NoError(t, err)

	// Completing step 2 first jumps the high-water mark to 3.
	se, err := svc.UpdateStep(context.Background(), identity, execution.ID, services.StepUpdate{
		StepID: "step-2",
		Status: "completed",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StepCompleted, se.Status)
	assert.NotNil(t, se.CompletedAt)

	stored, err := executions.GetByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentStep)

	// Completing step 1 afterwards never regresses it.
	_, err = svc.UpdateStep(context.Background(), identity, execution.ID, services.StepUpdate{
		StepID: "step-1",
		Status: "completed",
	})
	require.NoError(t, err)

	stored, err = executions.GetByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentStep)

	completed, err := svc.Complete(context.Background(), identity, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
}

func TestExecutionService_UpdateStep_Idempotent(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewExecutionService(executions, procedures)
	identity := entities.Identity{UserID: "user-1"}

	execution, err := svc.Start(context.Background(), identity, "proc-1")
	require.NoError(t, err)

	update := services.StepUpdate{StepID: "step-2", Status: "completed"}
	_, err = svc.UpdateStep(context.Background(), identity, execution.ID, update)
	require.NoError(t, err)
	_, err = svc.UpdateStep(context.Background(), identity, execution.ID, update)
	require.NoError(t, err)

	assert.Len(t, executions.stepExecutions, 1)

	stored, err := executions.GetByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentStep)
}

func TestExecutionService_UpdateStep_CrossProcedure(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	require.NoError(t, procedures.Create(context.Background(), &entities.Procedure{
		ID:       "proc-2",
		Title:    "Panel cleaning",
		IsActive: true,
		Steps: []*entities.Step{
			{ID: "other-step", ProcedureID: "proc-2", Order: 1},
		},
	}))
	svc := services.NewExecutionService(executions, procedures)
	identity := entities.Identity{UserID: "user-1"}

	execution, err := svc.Start(context.Background(), identity, "proc-1")
	require.NoError(t, err)

	_, err = svc.UpdateStep(context.Background(), identity, execution.ID, services.StepUpdate{
		StepID: "other-step",
		Status: "completed",
	})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func TestExecutionService_OwnershipIsolation(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewExecutionService(executions, procedures)

	owner := entities.Identity{UserID: "user-1"}
	intruder := entities.Identity{UserID: "user-2"}

	execution, err := svc.Start(context.Background(), owner, "proc-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), intruder, execution.ID)
	requireNotFound(t, err)

	_, err = svc.UpdateStep(context.Background(), intruder, execution.ID, services.StepUpdate{
		StepID: "step-1",
		Status: "completed",
	})
	requireNotFound(t, err)

	_, err = svc.Complete(context.Background(), intruder, execution.ID)
	requireNotFound(t, err)
}

func TestExecutionService_UpdateStep_AfterComplete(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewExecutionService(executions, procedures)
	identity := entities.Identity{UserID: "user-1"}

	execution, err := svc.Start(context.Background(), identity, "proc-1")
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), identity, execution.ID)
	require.NoError(t, err)

	// Late corrections to finished runs are allowed.
	_, err = svc.UpdateStep(context.Background(), identity, execution.ID, services.StepUpdate{
		StepID:   "step-1",
		Status:   "completed",
		Comments: "forgot to log the torque value",
	})
	assert.NoError(t, err)
}

func TestExecutionService_UpdateStep_InvalidStatus(t *testing.T) {
	executions := newStubExecutionRepo()
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewExecutionService(executions, procedures)
	identity := entities.Identity{UserID: "user-1"}

	execution, err := svc.Start(context.Background(), identity, "proc-1")
	require.NoError(t, err)

	_, err = svc.UpdateStep(context.Background(), identity, execution.ID, services.StepUpdate{
		StepID: "step-1",
		Status: "done",
	})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
}
