package repositories

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// SettingFilter narrows equipment-setting listings.
type SettingFilter struct {
	Brand         string
	EquipmentType string
	Category      string
	Limit         int
	Offset        int
}

// SettingRepository defines read access to equipment reference data.
type SettingRepository interface {
	List(ctx context.Context, filter SettingFilter) ([]*entities.Setting, error)
}
