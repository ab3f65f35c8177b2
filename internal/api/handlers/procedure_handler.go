package handlers

import (
	"net/http"
	"strconv"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/repositories"
)

// ProcedureHandler handles procedure-related HTTP requests
type ProcedureHandler struct {
	procedures *services.ProcedureService
}

// NewProcedureHandler creates a new procedure handler
func NewProcedureHandler(procedures *services.ProcedureService) *ProcedureHandler {
	return &ProcedureHandler{procedures: procedures}
}

// CreateProcedure handles POST /api/procedures
func (h *ProcedureHandler) CreateProcedure(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var input services.ProcedureInput
	if !decodeBody(w, r, &input) {
		return
	}

	procedure, err := h.procedures.Create(r.Context(), identity, input)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, procedure)
}

// ListProcedures handles GET /api/procedures
func (h *ProcedureHandler) ListProcedures(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	filter := repositories.ProcedureFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    30,
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	// Inactive procedures stay listed only when explicitly requested.
	if r.URL.Query().Get("includeInactive") != "true" {
		active := true
		filter.IsActive = &active
	}

	procedures, err := h.procedures.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"procedures": procedures,
		"count":      len(procedures),
	})
}

// GetProcedure handles GET /api/procedures/{id}
func (h *ProcedureHandler) GetProcedure(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	procedureID := r.PathValue("id")
	if procedureID == "" {
		respondWithError(w, http.StatusBadRequest, "procedure ID is required")
		return
	}

	procedure, err := h.procedures.Get(r.Context(), procedureID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, procedure)
}

// UpdateProcedure handles PUT /api/procedures/{id}
func (h *ProcedureHandler) UpdateProcedure(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	procedureID := r.PathValue("id")
	if procedureID == "" {
		respondWithError(w, http.StatusBadRequest, "procedure ID is required")
		return
	}

	var input services.ProcedureInput
	if !decodeBody(w, r, &input) {
		return
	}

	procedure, err := h.procedures.Update(r.Context(), identity, procedureID, input)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, procedure)
}

// DeleteProcedure handles DELETE /api/procedures/{id}
func (h *ProcedureHandler) DeleteProcedure(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	procedureID := r.PathValue("id")
	if procedureID == "" {
		respondWithError(w, http.StatusBadRequest, "procedure ID is required")
		return
	}

	if err := h.procedures.Delete(r.Context(), identity, procedureID); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
