package handlers

import (
	"net/http"
	"strconv"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/repositories"
)

// TipHandler handles tip-related HTTP requests
type TipHandler struct {
	tips *services.TipService
}

// NewTipHandler creates a new tip handler
func NewTipHandler(tips *services.TipService) *TipHandler {
	return &TipHandler{tips: tips}
}

// CreateTip handles POST /api/tips
func (h *TipHandler) CreateTip(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var input services.TipInput
	if !decodeBody(w, r, &input) {
		return
	}

	tip, err := h.tips.Create(r.Context(), identity, input)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, tip)
}

// ListTips handles GET /api/tips
func (h *TipHandler) ListTips(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	filter := repositories.TipFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    30,
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	tips, err := h.tips.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"tips":  tips,
		"count": len(tips),
	})
}

// GetTip handles GET /api/tips/{id}
func (h *TipHandler) GetTip(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	tipID := r.PathValue("id")
	if tipID == "" {
		respondWithError(w, http.StatusBadRequest, "tip ID is required")
		return
	}

	tip, err := h.tips.Get(r.Context(), tipID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tip)
}

// UpdateTip handles PUT /api/tips/{id}
func (h *TipHandler) UpdateTip(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	tipID := r.PathValue("id")
	if tipID == "" {
		respondWithError(w, http.StatusBadRequest, "tip ID is required")
		return
	}

	var input services.TipInput
	if !decodeBody(w, r, &input) {
		return
	}

	tip, err := h.tips.Update(r.Context(), identity, tipID, input)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tip)
}

// DeleteTip handles DELETE /api/tips/{id}
func (h *TipHandler) DeleteTip(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	tipID := r.PathValue("id")
	if tipID == "" {
		respondWithError(w, http.StatusBadRequest, "tip ID is required")
		return
	}

	if err := h.tips.Delete(r.Context(), identity, tipID); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
