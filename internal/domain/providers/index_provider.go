package providers

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// KnowledgeIndexer pushes documents into the external keyword-search index.
type KnowledgeIndexer interface {
	IndexProcedure(ctx context.Context, procedure *entities.Procedure) error
	IndexTip(ctx context.Context, tip *entities.Tip) error
}
