package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	tsclient "github.com/solarmaint/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements knowledge keyword search using Typesense.
// Procedures and tips share one collection, discriminated by doc_type.

type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements KnowledgeSearchRepository
var _ repositories.KnowledgeSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// IndexProcedure indexes a procedure
func (a *TypesenseAdapter) IndexProcedure(ctx context.Context, procedure *entities.Procedure) error {
	document := map[string]interface{}{
		"id":       typesenseID(entities.DocumentProcedure, procedure.ID),
		"doc_type": string(entities.DocumentProcedure),
		"title":    procedure.Title,
		"body":     procedure.Description,
		"tags":     procedure.Tags,
		"category": procedure.Category,
	}

	_, err := a.client.Client().Collection(tsclient.KnowledgeCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index procedure: %w", err)
	}
	return nil
}

// IndexTip indexes a tip
func (a *TypesenseAdapter) IndexTip(ctx context.Context, tip *entities.Tip) error {
	document := map[string]interface{}{
		"id":       typesenseID(entities.DocumentTip, tip.ID),
		"doc_type": string(entities.DocumentTip),
		"title":    tip.Title,
		"body":     tip.Content,
		"tags":     tip.Tags,
		"category": tip.Category,
	}

	_, err := a.client.Client().Collection(tsclient.KnowledgeCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index tip: %w", err)
	}
	return nil
}

// Delete removes a document from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, docType entities.DocumentType, id string) error {
	_, err := a.client.Client().Collection(tsclient.KnowledgeCollection).Document(typesenseID(docType, id)).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document from index: %w", err)
	}
	return nil
}

// SearchProcedures searches the procedure partition of the index.
func (a *TypesenseAdapter) SearchProcedures(ctx context.Context, terms []string, limit int) ([]*entities.Procedure, error) {
	hits, err := a.search(ctx, terms, entities.DocumentProcedure, limit)
	if err != nil {
		return nil, err
	}

	procedures := make([]*entities.Procedure, 0, len(hits))
	for _, doc := range hits {
		procedures = append(procedures, &entities.Procedure{
			ID:          docString(doc, "source_id"),
			Title:       docString(doc, "title"),
			Description: docString(doc, "body"),
			Category:    docString(doc, "category"),
			IsActive:    true,
		})
	}
	return procedures, nil
}

// SearchTips searches the tip partition of the index.
func (a *TypesenseAdapter) SearchTips(ctx context.Context, terms []string, limit int) ([]*entities.Tip, error) {
	hits, err := a.search(ctx, terms, entities.DocumentTip, limit)
	if err != nil {
		return nil, err
	}

	tips := make([]*entities.Tip, 0, len(hits))
	for _, doc := range hits {
		tips = append(tips, &entities.Tip{
			ID:       docString(doc, "source_id"),
			Title:    docString(doc, "title"),
			Content:  docString(doc, "body"),
			Category: docString(doc, "category"),
		})
	}
	return tips, nil
}

func (a *TypesenseAdapter) search(ctx context.Context, terms []string, docType entities.DocumentType, limit int) ([]map[string]interface{}, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(strings.Join(terms, " ")),
		QueryBy:  pointer.String("title,body,tags"),
		FilterBy: pointer.String(fmt.Sprintf("doc_type:=%s", docType)),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.KnowledgeCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	if result.Hits == nil {
		return nil, nil
	}

	docs := make([]map[string]interface{}, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		// Recover the source row id from the namespaced document id.
		if id, ok := doc["id"].(string); ok {
			doc["source_id"] = strings.TrimPrefix(id, string(docType)+":")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// typesenseID namespaces document ids so procedures and tips cannot collide
// in the shared collection.
func typesenseID(docType entities.DocumentType, id string) string {
	return fmt.Sprintf("%s:%s", docType, id)
}

func docString(doc map[string]interface{}, key string) string {
	if val, ok := doc[key].(string); ok {
		return val
	}
	return ""
}
