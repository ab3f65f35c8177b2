package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/solarmaint/backend/pkg/config"
	"github.com/solarmaint/backend/pkg/retry"
)

const (
	// KnowledgeCollection indexes procedures and tips for the keyword
	// retrieval fallback.
	KnowledgeCollection = "knowledge"
)

// Client represents a Typesense client.
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry.
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryConfig := retry.DefaultConfig()
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).
				Msg("typesense connection attempt failed")
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client.
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the knowledge collection exists.
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == KnowledgeCollection {
			return nil
		}
	}

	schema := &api.CollectionSchema{
		Name: KnowledgeCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "doc_type", Type: "string", Facet: pointer.True()},
			{Name: "title", Type: "string"},
			{Name: "body", Type: "string"},
			{Name: "tags", Type: "string[]", Optional: pointer.True()},
			{Name: "category", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
		},
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create knowledge collection: %w", err)
	}

	log.Info().Str("collection", KnowledgeCollection).Msg("typesense collection created")
	return nil
}
