package repositories

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// TipFilter narrows tip listings.
type TipFilter struct {
	Category string
	Limit    int
	Offset   int
}

// TipRepository defines tip persistence operations.
type TipRepository interface {
	Create(ctx context.Context, tip *entities.Tip) error
	GetByID(ctx context.Context, id string) (*entities.Tip, error)
	List(ctx context.Context, filter TipFilter) ([]*entities.Tip, error)
	Update(ctx context.Context, tip *entities.Tip) error
	Delete(ctx context.Context, id string) error
}
