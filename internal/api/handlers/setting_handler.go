package handlers

import (
	"net/http"
	"strconv"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/repositories"
)

// SettingHandler serves the equipment reference data.
type SettingHandler struct {
	settings *services.SettingService
}

// NewSettingHandler creates a new setting handler
func NewSettingHandler(settings *services.SettingService) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// ListSettings handles GET /api/settings
func (h *SettingHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	filter := repositories.SettingFilter{
		Brand:         r.URL.Query().Get("brand"),
		EquipmentType: r.URL.Query().Get("equipmentType"),
		Category:      r.URL.Query().Get("category"),
		Limit:         100,
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	settings, err := h.settings.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"settings": settings,
		"count":    len(settings),
	})
}
