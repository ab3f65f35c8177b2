package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/api/handlers"
	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

type stubExecutionService struct {
	execution     *entities.Execution
	stepExecution *entities.StepExecution
	executions    []*entities.Execution
	err           error

	lastUpdate services.StepUpdate
}

func (s *stubExecutionService) Start(ctx context.Context, identity entities.Identity, procedureID string) (*entities.Execution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.execution, nil
}

func (s *stubExecutionService) UpdateStep(ctx context.Context, identity entities.Identity, executionID string, update services.StepUpdate) (*entities.StepExecution, error) {
	s.lastUpdate = update
	if s.err != nil {
		return nil, s.err
	}
	return s.stepExecution, nil
}

func (s *stubExecutionService) Complete(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.execution, nil
}

func (s *stubExecutionService) Get(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.execution, nil
}

func (s *stubExecutionService) List(ctx context.Context, identity entities.Identity, procedureID string) ([]*entities.Execution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.executions, nil
}

func TestExecutionHandler_Start(t *testing.T) {
	svc := &stubExecutionService{execution: &entities.Execution{
		ID:          "exec-1",
		ProcedureID: "proc-1",
		Status:      entities.ExecutionInProgress,
	}}
	handler := handlers.NewExecutionHandler(svc)

	req := authedRequest(http.MethodPost, "/api/executions", `{"procedureId":"proc-1"}`)
	recorder := httptest.NewRecorder()
	handler.StartExecution(recorder, req)

	require.Equal(t, http.StatusCreated, recorder.Code)

	var execution entities.Execution
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &execution))
	assert.Equal(t, "exec-1", execution.ID)
	assert.Equal(t, entities.ExecutionInProgress, execution.Status)
}

func TestExecutionHandler_StartUnknownProcedure(t *testing.T) {
	svc := &stubExecutionService{err: apperrors.NewNotFoundError("procedure not found")}
	handler := handlers.NewExecutionHandler(svc)

	req := authedRequest(http.MethodPost, "/api/executions", `{"procedureId":"nope"}`)
	recorder := httptest.NewRecorder()
	handler.StartExecution(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestExecutionHandler_UpdateStep(t *testing.T) {
	svc := &stubExecutionService{stepExecution: &entities.StepExecution{
		ID:          "se-1",
		ExecutionID: "exec-1",
		StepID:      "step-1",
		Status:      entities.StepCompleted,
	}}
	handler := handlers.NewExecutionHandler(svc)

	body := `{"stepId":"step-1","status":"completed","comments":"torqued to spec"}`
	req := authedRequest(http.MethodPut, "/api/executions/exec-1/step", body)
	req.SetPathValue("id", "exec-1")
	recorder := httptest.NewRecorder()
	handler.UpdateStep(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "step-1", svc.lastUpdate.StepID)
	assert.Equal(t, "completed", svc.lastUpdate.Status)
}

func TestExecutionHandler_UpdateStepCrossProcedure(t *testing.T) {
	svc := &stubExecutionService{err: apperrors.NewValidationError("step does not belong to this procedure")}
	handler := handlers.NewExecutionHandler(svc)

	req := authedRequest(http.MethodPut, "/api/executions/exec-1/step", `{"stepId":"other","status":"completed"}`)
	req.SetPathValue("id", "exec-1")
	recorder := httptest.NewRecorder()
	handler.UpdateStep(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestExecutionHandler_GetNotOwner(t *testing.T) {
	svc := &stubExecutionService{err: apperrors.NewNotFoundError("execution not found")}
	handler := handlers.NewExecutionHandler(svc)

	req := authedRequest(http.MethodGet, "/api/executions/exec-1", "")
	req.SetPathValue("id", "exec-1")
	recorder := httptest.NewRecorder()
	handler.GetExecution(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestExecutionHandler_Complete(t *testing.T) {
	svc := &stubExecutionService{execution: &entities.Execution{
		ID:     "exec-1",
		Status: entities.ExecutionCompleted,
	}}
	handler := handlers.NewExecutionHandler(svc)

	req := authedRequest(http.MethodPut, "/api/executions/exec-1/complete", "")
	req.SetPathValue("id", "exec-1")
	recorder := httptest.NewRecorder()
	handler.CompleteExecution(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var execution entities.Execution
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &execution))
	assert.Equal(t, entities.ExecutionCompleted, execution.Status)
}

func TestExecutionHandler_List(t *testing.T) {
	svc := &stubExecutionService{executions: []*entities.Execution{
		{ID: "exec-1"}, {ID: "exec-2"},
	}}
	handler := handlers.NewExecutionHandler(svc)

	recorder := httptest.NewRecorder()
	handler.ListExecutions(recorder, authedRequest(http.MethodGet, "/api/executions", ""))

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Executions []*entities.Execution `json:"executions"`
		Count      int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Count)
	require.Len(t, payload.Executions, 2)
}

func TestExecutionHandler_NoIdentity(t *testing.T) {
	handler := handlers.NewExecutionHandler(&stubExecutionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/executions", nil)
	recorder := httptest.NewRecorder()
	handler.StartExecution(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
