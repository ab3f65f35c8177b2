package handlers

import (
	"context"
	"net/http"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
)

// ExecutionService is the execution lifecycle surface the handler needs.
type ExecutionService interface {
	Start(ctx context.Context, identity entities.Identity, procedureID string) (*entities.Execution, error)
	UpdateStep(ctx context.Context, identity entities.Identity, executionID string, update services.StepUpdate) (*entities.StepExecution, error)
	Complete(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error)
	Get(ctx context.Context, identity entities.Identity, executionID string) (*entities.Execution, error)
	List(ctx context.Context, identity entities.Identity, procedureID string) ([]*entities.Execution, error)
}

// ExecutionHandler handles execution-related HTTP requests
type ExecutionHandler struct {
	executions ExecutionService
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(executions ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{executions: executions}
}

// StartExecution handles POST /api/executions
func (h *ExecutionHandler) StartExecution(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		ProcedureID string `json:"procedureId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	execution, err := h.executions.Start(r.Context(), identity, body.ProcedureID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, execution)
}

// ListExecutions handles GET /api/executions
func (h *ExecutionHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	executions, err := h.executions.List(r.Context(), identity, r.URL.Query().Get("procedureId"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	})
}

// GetExecution handles GET /api/executions/{id}
func (h *ExecutionHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	executionID := r.PathValue("id")
	if executionID == "" {
		respondWithError(w, http.StatusBadRequest, "execution ID is required")
		return
	}

	execution, err := h.executions.Get(r.Context(), identity, executionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, execution)
}

// UpdateStep handles PUT /api/executions/{id}/step
func (h *ExecutionHandler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	executionID := r.PathValue("id")
	if executionID == "" {
		respondWithError(w, http.StatusBadRequest, "execution ID is required")
		return
	}

	var update services.StepUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	stepExecution, err := h.executions.UpdateStep(r.Context(), identity, executionID, update)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stepExecution)
}

// CompleteExecution handles PUT /api/executions/{id}/complete
func (h *ExecutionHandler) CompleteExecution(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	executionID := r.PathValue("id")
	if executionID == "" {
		respondWithError(w, http.StatusBadRequest, "execution ID is required")
		return
	}

	execution, err := h.executions.Complete(r.Context(), identity, executionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, execution)
}
