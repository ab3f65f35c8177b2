package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// TipAdapter implements TipRepository.
type TipAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTipAdapter creates a new tip adapter.
func NewTipAdapter(client *postgres.Client) repositories.TipRepository {
	return &TipAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new tip.
func (a *TipAdapter) Create(ctx context.Context, tip *entities.Tip) error {
	record := goqu.Record{
		"id":         tip.ID,
		"title":      tip.Title,
		"content":    tip.Content,
		"category":   tip.Category,
		"tags":       pq.Array(tip.Tags),
		"author_id":  nullableString(tip.AuthorID),
		"created_at": tip.CreatedAt,
		"updated_at": tip.UpdatedAt,
	}

	query, args, err := a.db.Insert("tips").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create tip", err)
	}
	return nil
}

// GetByID retrieves a tip by id.
func (a *TipAdapter) GetByID(ctx context.Context, id string) (*entities.Tip, error) {
	query, args, err := a.selectTips().
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	tip, err := a.scanTip(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("tip not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get tip", err)
	}
	return tip, nil
}

// List retrieves tips matching the filter, newest first.
func (a *TipAdapter) List(ctx context.Context, filter repositories.TipFilter) ([]*entities.Tip, error) {
	ds := a.selectTips().Order(goqu.I("created_at").Desc())

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
		return nil, apperrors.NewInternalError("failed to list tips", err)
	}
	defer rows.Close()

	tips := []*entities.Tip{}
	for rows.Next() {
		tip, err := a.scanTip(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan tip", err)
		}
		tips = append(tips, tip)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate tips", err)
	}
	return tips, nil
}

// Update modifies a tip.
func (a *TipAdapter) Update(ctx context.Context, tip *entities.Tip) error {
	record := goqu.Record{
		"title":      tip.Title,
		"content":    tip.Content,
		"category":   tip.Category,
		"tags":       pq.Array(tip.Tags),
		"updated_at": tip.UpdatedAt,
	}

	query, args, err := a.db.Update("tips").
		Set(record).
		Where(goqu.Ex{"id": tip.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update tip", err)
	}
	return requireRowsAffected(result, "tip not found")
}

// Delete removes a tip.
func (a *TipAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("tips").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete tip", err)
	}
	return requireRowsAffected(result, "tip not found")
}

func (a *TipAdapter) selectTips() *goqu.SelectDataset {
	return a.db.Select(
		"id", "title", "content", "category", "tags", "author_id",
		"created_at", "updated_at",
	).From("tips")
}

func (a *TipAdapter) scanTip(row scannable) (*entities.Tip, error) {
	tip := &entities.Tip{}
	var authorID sql.NullString

	err := row.Scan(
		&tip.ID,
		&tip.Title,
		&tip.Content,
		&tip.Category,
		pq.Array(&tip.Tags),
		&authorID,
		&tip.CreatedAt,
		&tip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tip.AuthorID = authorID.String
	return tip, nil
}
