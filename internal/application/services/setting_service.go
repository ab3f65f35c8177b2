package services

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
)

// SettingService exposes the equipment reference data.
type SettingService struct {
	settings repositories.SettingRepository
}

// NewSettingService creates a new setting service.
func NewSettingService(settings repositories.SettingRepository) *SettingService {
	return &SettingService{settings: settings}
}

// List returns equipment settings matching the filter.
func (s *SettingService) List(ctx context.Context, filter repositories.SettingFilter) ([]*entities.Setting, error) {
	return s.settings.List(ctx, filter)
}
