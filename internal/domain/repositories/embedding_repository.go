package repositories

import (
	"context"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// EmbeddingRepository defines persistence for the precomputed embedding
// corpus scanned by semantic retrieval.
type EmbeddingRepository interface {
	// Upsert replaces the embedding row for (document_type, document_id).
	Upsert(ctx context.Context, embedding *entities.DocumentEmbedding) error
	ListAll(ctx context.Context) ([]*entities.DocumentEmbedding, error)
	DeleteForDocument(ctx context.Context, docType entities.DocumentType, documentID string) error
}
