package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/providers"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
)

// IndexerService rebuilds the retrieval corpus: it embeds every active
// procedure and every tip into document_embeddings and, when a keyword
// index is wired, mirrors them there. Individual document failures are
// logged and skipped so one bad row never aborts a rebuild.
type IndexerService struct {
	procedures repositories.ProcedureRepository
	tips       repositories.TipRepository
	embeddings repositories.EmbeddingRepository
	embedder   providers.EmbeddingProvider
	index      providers.KnowledgeIndexer
}

// NewIndexerService creates a new indexer service. index may be nil.
func NewIndexerService(
	procedures repositories.ProcedureRepository,
	tips repositories.TipRepository,
	embeddings repositories.EmbeddingRepository,
	embedder providers.EmbeddingProvider,
	index providers.KnowledgeIndexer,
) *IndexerService {
	return &IndexerService{
		procedures: procedures,
		tips:       tips,
		embeddings: embeddings,
		embedder:   embedder,
		index:      index,
	}
}

// Reindex walks the whole knowledge base and returns how many documents
// were indexed.
func (s *IndexerService) Reindex(ctx context.Context) (int, error) {
	indexed := 0

	count, err := s.reindexProcedures(ctx)
	if err != nil {
		return indexed, err
	}
	indexed += count

	count, err = s.reindexTips(ctx)
	if err != nil {
		return indexed, err
	}
	indexed += count

	return indexed, nil
}

func (s *IndexerService) reindexProcedures(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	active := true
	procedures, err := s.procedures.List(ctx, repositories.ProcedureFilter{IsActive: &active})
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, procedure := range procedures {
		steps, err := s.procedures.ListSteps(ctx, procedure.ID)
		if err != nil {
			logger.Warn().Err(err).Str("procedure_id", procedure.ID).Msg("skipping procedure, steps load failed")
			continue
		}
		procedure.Steps = steps

		content := procedureIndexText(procedure)
		if err := s.upsertEmbedding(ctx, entities.DocumentProcedure, procedure.ID, procedure.Title, content); err != nil {
			logger.Warn().Err(err).Str("procedure_id", procedure.ID).Msg("skipping procedure, embedding failed")
			continue
		}

		if s.index != nil {
			if err := s.index.IndexProcedure(ctx, procedure); err != nil {
				logger.Warn().Err(err).Str("procedure_id", procedure.ID).Msg("keyword index update failed")
			}
		}
		indexed++
	}
	return indexed, nil
}

func (s *IndexerService) reindexTips(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	tips, err := s.tips.List(ctx, repositories.TipFilter{})
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, tip := range tips {
		content := tipIndexText(tip)
		if err := s.upsertEmbedding(ctx, entities.DocumentTip, tip.ID, tip.Title, content); err != nil {
			logger.Warn().Err(err).Str("tip_id", tip.ID).Msg("skipping tip, embedding failed")
			continue
		}

		if s.index != nil {
			if err := s.index.IndexTip(ctx, tip); err != nil {
				logger.Warn().Err(err).Str("tip_id", tip.ID).Msg("keyword index update failed")
			}
		}
		indexed++
	}
	return indexed, nil
}

func (s *IndexerService) upsertEmbedding(ctx context.Context, docType entities.DocumentType, docID, title, content string) error {
	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	return s.embeddings.Upsert(ctx, &entities.DocumentEmbedding{
		ID:           uuid.New().String(),
		DocumentType: docType,
		DocumentID:   docID,
		Title:        title,
		Content:      content,
		Embedding:    vector,
		UpdatedAt:    time.Now(),
	})
}

// procedureIndexText concatenates the searchable text of a procedure: its
// own fields plus the step titles, which often carry the concrete fault
// vocabulary technicians search for.
func procedureIndexText(procedure *entities.Procedure) string {
	parts := []string{procedure.Title, procedure.Description}
	if len(procedure.Tags) > 0 {
		parts = append(parts, strings.Join(procedure.Tags, " "))
	}
	for _, step := range procedure.Steps {
		parts = append(parts, step.Title)
	}
	return strings.Join(parts, "\n")
}

func tipIndexText(tip *entities.Tip) string {
	parts := []string{tip.Title, tip.Content}
	if len(tip.Tags) > 0 {
		parts = append(parts, strings.Join(tip.Tags, " "))
	}
	return strings.Join(parts, "\n")
}
