package entities

import (
	"encoding/json"
	"time"
)

// ChatMessage is one exchange in a user's conversation with the assistant.
// Response stays nil until generation completes; in dual mode it stays nil
// until the user selects one of the two alternatives.
type ChatMessage struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Message   string          `json:"message" db:"message"`
	Response  *string         `json:"response" db:"response"`
	Context   json.RawMessage `json:"context,omitempty" db:"context"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// Rating is a like/dislike signal on an assistant answer.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

// Valid reports whether the rating is one of the accepted values.
func (r Rating) Valid() bool {
	return r == RatingPositive || r == RatingNegative
}

// MessageRating is the single logical rating of a message. Re-rating
// overwrites; ratings never accumulate.
type MessageRating struct {
	ID        string    `json:"id" db:"id"`
	MessageID string    `json:"messageId" db:"message_id"`
	Rating    Rating    `json:"rating" db:"rating"`
	Feedback  *string   `json:"feedback" db:"feedback"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// LearningExample is a previously well-rated answer reused as a style
// exemplar in future prompts for the same user.
type LearningExample struct {
	Question string
	Answer   string
}

// ChatContext links a chat message to the procedure, step or execution the
// user was working on when asking.
type ChatContext struct {
	ProcedureID string `json:"procedureId,omitempty"`
	StepID      string `json:"stepId,omitempty"`
	ExecutionID string `json:"executionId,omitempty"`
}
