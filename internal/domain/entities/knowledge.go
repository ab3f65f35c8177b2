package entities

import "time"

// DocumentType identifies the origin of a knowledge snippet.
type DocumentType string

const (
	DocumentProcedure DocumentType = "procedure"
	DocumentTip       DocumentType = "tip"
)

// DocumentEmbedding is a precomputed embedding of a procedure or tip,
// written by the indexer and scanned by the semantic retrieval path.
type DocumentEmbedding struct {
	ID           string       `json:"id" db:"id"`
	DocumentType DocumentType `json:"documentType" db:"document_type"`
	DocumentID   string       `json:"documentId" db:"document_id"`
	Title        string       `json:"title" db:"title"`
	Content      string       `json:"content" db:"content"`
	Embedding    []float32    `json:"embedding,omitempty" db:"embedding"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// ContextSnippet is one ranked retrieval result handed to the prompt
// composer. Relevance is in [0,1].
type ContextSnippet struct {
	SourceType DocumentType `json:"sourceType"`
	Title      string       `json:"title"`
	Excerpt    string       `json:"excerpt"`
	Relevance  float64      `json:"relevance"`
}
