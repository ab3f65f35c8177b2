package repositories

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// KnowledgeSearchRepository is the keyword-search fallback used when the
// semantic retrieval path yields nothing. Matching is case-insensitive
// substring over titles, descriptions/contents and tags.
type KnowledgeSearchRepository interface {
	SearchProcedures(ctx context.Context, terms []string, limit int) ([]*entities.Procedure, error)
	SearchTips(ctx context.Context, terms []string, limit int) ([]*entities.Tip, error)
}
