package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/solarmaint/backend/internal/adapters/database"
	"github.com/solarmaint/backend/internal/adapters/search"
	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/providers"
	"github.com/solarmaint/backend/internal/infrastructure/clients/openai"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	"github.com/solarmaint/backend/internal/infrastructure/clients/typesense"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
	"github.com/solarmaint/backend/pkg/config"
)

// Rebuilds the retrieval corpus: embeds every active procedure and tip into
// document_embeddings and mirrors them into the Typesense keyword index
// when one is configured. Run after bulk knowledge-base edits.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("solarmaint-indexer", cfg.Server.Env)
	logger := observability.GetLogger()

	if cfg.OpenAI.APIKey == "" {
		logger.Fatal().Msg("OPENAI_API_KEY is required to build embeddings")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	openaiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize OpenAI client")
	}

	var index providers.KnowledgeIndexer
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Warn().Err(err).Msg("Typesense unavailable, building embeddings only")
	} else {
		if err := typesenseClient.InitSchema(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to init Typesense schema")
		}
		index = search.NewTypesenseAdapter(typesenseClient)
	}

	indexer := services.NewIndexerService(
		database.NewProcedureAdapter(pgClient),
		database.NewTipAdapter(pgClient),
		database.NewEmbeddingAdapter(pgClient),
		openaiClient,
		index,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	start := time.Now()
	indexed, err := indexer.Reindex(ctx)
	if err != nil {
		logger.Fatal().Err(err).Int("indexed", indexed).Msg("reindex failed")
	}

	logger.Info().
		Int("indexed", indexed).
		Dur("duration", time.Since(start)).
		Msg("reindex complete")
}
