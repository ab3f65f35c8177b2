package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// SettingAdapter implements SettingRepository.
type SettingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSettingAdapter creates a new setting adapter.
func NewSettingAdapter(client *postgres.Client) repositories.SettingRepository {
	return &SettingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// List retrieves equipment settings matching the filter.
func (a *SettingAdapter) List(ctx context.Context, filter repositories.SettingFilter) ([]*entities.Setting, error) {
	ds := a.db.Select(
		"id", "brand", "equipment_type", "model", "category", "name",
		"value", "unit", "country", "source_doc", "page_number", "notes",
		"created_at",
	).From("settings").
		Order(goqu.I("brand").Asc(), goqu.I("name").Asc())

	if filter.Brand != "" {
		ds = ds.Where(goqu.Ex{"brand": filter.Brand})
	}
	if filter.EquipmentType != "" {
		ds = ds.Where(goqu.Ex{"equipment_type": filter.EquipmentType})
	}
	if filter.Category != "" {
		ds = ds.Where(goqu.Ex{"category": filter.Category})
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
		return nil, apperrors.NewInternalError("failed to list settings", err)
	}
	defer rows.Close()

	settings := []*entities.Setting{}
	for rows.Next() {
		setting := &entities.Setting{}
		err = rows.Scan(
			&setting.ID,
			&setting.Brand,
			&setting.EquipmentType,
			&setting.Model,
			&setting.Category,
			&setting.Name,
			&setting.Value,
			&setting.Unit,
			&setting.Country,
			&setting.SourceDoc,
			&setting.PageNumber,
			&setting.Notes,
			&setting.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan setting", err)
		}
		settings = append(settings, setting)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate settings", err)
	}
	return settings, nil
}
