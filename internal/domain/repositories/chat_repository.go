package repositories

import (
	"context"
	"encoding/json"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// ChatRepository defines conversation-log persistence operations.
//
// UpsertRating is keyed on message_id: one logical rating per message, the
// latest call wins. ListPositiveExamples returns the user's most recently
// positively-rated exchanges, newest first, for the auto-learning prompt
// block.
type ChatRepository interface {
	CreateMessage(ctx context.Context, message *entities.ChatMessage) error
	GetMessageByID(ctx context.Context, id string) (*entities.ChatMessage, error)
	UpdateResponse(ctx context.Context, messageID, response string) error
	UpdateResponseAndContext(ctx context.Context, messageID, response string, context json.RawMessage) error
	// ListByUser returns messages ascending by creation time along with the
	// user's total message count for pagination.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.ChatMessage, int, error)
	// ListRecent returns the user's newest messages, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]*entities.ChatMessage, error)
	DeleteAllByUser(ctx context.Context, userID string) error

	UpsertRating(ctx context.Context, rating *entities.MessageRating) error
	GetRatings(ctx context.Context, messageIDs []string) (map[string]*entities.MessageRating, error)
	ListPositiveExamples(ctx context.Context, userID string, limit int) ([]*entities.LearningExample, error)
}
