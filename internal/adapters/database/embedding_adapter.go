package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// EmbeddingAdapter implements EmbeddingRepository. Embeddings are stored as
// float8[] columns and converted at the boundary; similarity math runs in
// the service layer over float32.
type EmbeddingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEmbeddingAdapter creates a new embedding adapter.
func NewEmbeddingAdapter(client *postgres.Client) repositories.EmbeddingRepository {
	return &EmbeddingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert replaces the embedding row for (document_type, document_id).
func (a *EmbeddingAdapter) Upsert(ctx context.Context, embedding *entities.DocumentEmbedding) error {
	vector := toFloat64s(embedding.Embedding)
	record := goqu.Record{
		"id":            embedding.ID,
		"document_type": string(embedding.DocumentType),
		"document_id":   embedding.DocumentID,
		"title":         embedding.Title,
		"content":       embedding.Content,
		"embedding":     pq.Array(vector),
		"updated_at":    embedding.UpdatedAt,
	}

	query, args, err := a.db.Insert("document_embeddings").
		Rows(record).
		OnConflict(goqu.DoUpdate("document_type, document_id", goqu.Record{
			"title":      embedding.Title,
			"content":    embedding.Content,
			"embedding":  pq.Array(vector),
			"updated_at": embedding.UpdatedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert embedding", err)
	}
	return nil
}

// ListAll loads the whole embedding corpus.
func (a *EmbeddingAdapter) ListAll(ctx context.Context) ([]*entities.DocumentEmbedding, error) {
	query, args, err := a.db.Select(
		"id", "document_type", "document_id", "title", "content",
		"embedding", "updated_at",
	).From("document_embeddings").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list embeddings", err)
	}
	defer rows.Close()

	embeddings := []*entities.DocumentEmbedding{}
	for rows.Next() {
		embedding := &entities.DocumentEmbedding{}
		var docType string
		var vector []float64
		err = rows.Scan(
			&embedding.ID,
			&docType,
			&embedding.DocumentID,
			&embedding.Title,
			&embedding.Content,
			pq.Array(&vector),
			&embedding.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan embedding", err)
		}
		embedding.DocumentType = entities.DocumentType(docType)
		embedding.Embedding = toFloat32s(vector)
		embeddings = append(embeddings, embedding)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate embeddings", err)
	}
	return embeddings, nil
}

// DeleteForDocument removes the embedding of a single document.
func (a *EmbeddingAdapter) DeleteForDocument(ctx context.Context, docType entities.DocumentType, documentID string) error {
	query, args, err := a.db.Delete("document_embeddings").
		Where(goqu.Ex{
			"document_type": string(docType),
			"document_id":   documentID,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete embedding", err)
	}
	return nil
}

func toFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func toFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
