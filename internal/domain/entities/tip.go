package entities

import "time"

// Tip is a free-form knowledge-base entry, searchable alongside procedures
// as a retrieval source for the assistant.
type Tip struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Category  string    `json:"category" db:"category"`
	Tags      []string  `json:"tags" db:"tags"`
	AuthorID  string    `json:"authorId,omitempty" db:"author_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
