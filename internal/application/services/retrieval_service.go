package services

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/viterin/vek/vek32"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/providers"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
)

const (
	similarityThreshold = 0.5
	semanticLimit       = 10
	keywordMaxTerms     = 5
	keywordMinTermLen   = 3
	keywordPerSource    = 3
	excerptLength       = 300

	corpusCacheKey = "retrieval:corpus"
	corpusCacheTTL = 300
)

// RetrievalService ranks knowledge snippets for a free-text query. The
// semantic path embeds the query and scores it against the precomputed
// corpus; when that yields nothing the keyword fallback takes over. No
// failure on either path aborts the caller: retrieval degrades, chat
// continues.
type RetrievalService struct {
	embedder   providers.EmbeddingProvider
	embeddings repositories.EmbeddingRepository
	search     repositories.KnowledgeSearchRepository
	cache      providers.CacheProvider
}

// NewRetrievalService creates a new retrieval service. embedder and cache
// may be nil; retrieval then runs keyword-only and uncached.
func NewRetrievalService(
	embedder providers.EmbeddingProvider,
	embeddings repositories.EmbeddingRepository,
	search repositories.KnowledgeSearchRepository,
	cache providers.CacheProvider,
) *RetrievalService {
	return &RetrievalService{
		embedder:   embedder,
		embeddings: embeddings,
		search:     search,
		cache:      cache,
	}
}

// Retrieve returns up to limit snippets ordered by descending relevance.
// An empty result means no documentation matched; the prompt composer
// translates that into an explicit marker for the model.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, limit int) []*entities.ContextSnippet {
	logger := observability.LoggerFromContext(ctx)

	if limit <= 0 || limit > semanticLimit {
		limit = semanticLimit
	}

	snippets := s.retrieveSemantic(ctx, query, limit)
	if len(snippets) > 0 {
		return snippets
	}

	snippets, err := s.retrieveKeyword(ctx, query)
	if err != nil {
		logger.Warn().Err(err).Msg("keyword retrieval failed, continuing without context")
		return nil
	}
	return snippets
}

func (s *RetrievalService) retrieveSemantic(ctx context.Context, query string, limit int) []*entities.ContextSnippet {
	logger := observability.LoggerFromContext(ctx)

	if s.embedder == nil {
		return nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn().Err(err).Msg("query embedding failed, falling back to keyword search")
		return nil
	}

	corpus, err := s.loadCorpus(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("embedding corpus load failed, falling back to keyword search")
		return nil
	}

	queryNorm := math.Sqrt(float64(vek32.Dot(queryVec, queryVec)))
	if queryNorm == 0 {
		return nil
	}

	scored := []*entities.ContextSnippet{}
	for _, doc := range corpus {
		if len(doc.Embedding) != len(queryVec) {
			continue
		}
		docNorm := math.Sqrt(float64(vek32.Dot(doc.Embedding, doc.Embedding)))
		if docNorm == 0 {
			continue
		}
		sim := float64(vek32.Dot(queryVec, doc.Embedding)) / (queryNorm * docNorm)
		if sim < similarityThreshold {
			continue
		}
		scored = append(scored, &entities.ContextSnippet{
			SourceType: doc.DocumentType,
			Title:      doc.Title,
			Excerpt:    excerpt(doc.Content),
			Relevance:  sim,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func (s *RetrievalService) retrieveKeyword(ctx context.Context, query string) ([]*entities.ContextSnippet, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return nil, nil
	}

	snippets := []*entities.ContextSnippet{}

	procedures, err := s.search.SearchProcedures(ctx, terms, keywordPerSource)
	if err != nil {
		return nil, err
	}
	for _, p := range procedures {
		snippets = append(snippets, &entities.ContextSnippet{
			SourceType: entities.DocumentProcedure,
			Title:      p.Title,
			Excerpt:    excerpt(p.Description),
			Relevance:  similarityThreshold,
		})
	}

	tips, err := s.search.SearchTips(ctx, terms, keywordPerSource)
	if err != nil {
		return nil, err
	}
	for _, t := range tips {
		snippets = append(snippets, &entities.ContextSnippet{
			SourceType: entities.DocumentTip,
			Title:      t.Title,
			Excerpt:    excerpt(t.Content),
			Relevance:  similarityThreshold,
		})
	}

	return snippets, nil
}

// loadCorpus reads the embedding corpus, going through the cache when one
// is wired. The corpus is small enough to scan in memory on every request.
func (s *RetrievalService) loadCorpus(ctx context.Context) ([]*entities.DocumentEmbedding, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, corpusCacheKey); err == nil {
			var corpus []*entities.DocumentEmbedding
			if err := json.Unmarshal(cached, &corpus); err == nil {
				return corpus, nil
			}
		}
	}

	corpus, err := s.embeddings.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(corpus) > 0 {
		if payload, err := json.Marshal(corpus); err == nil {
			_ = s.cache.Set(ctx, corpusCacheKey, payload, corpusCacheTTL)
		}
	}
	return corpus, nil
}

// tokenizeQuery lowercases the query and keeps at most keywordMaxTerms
// tokens longer than keywordMinTermLen characters. Short tokens carry too
// little signal for substring matching.
func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, keywordMaxTerms)
	for _, field := range fields {
		if len(field) <= keywordMinTermLen {
			continue
		}
		terms = append(terms, field)
		if len(terms) == keywordMaxTerms {
			break
		}
	}
	return terms
}

// excerpt truncates on rune boundaries; the corpus is not pure ASCII.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return string(runes[:excerptLength]) + "..."
}
