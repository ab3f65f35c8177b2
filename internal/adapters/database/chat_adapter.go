package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// ChatAdapter implements ChatRepository.
type ChatAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewChatAdapter creates a new chat adapter.
func NewChatAdapter(client *postgres.Client) repositories.ChatRepository {
	return &ChatAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CreateMessage inserts a chat message. Response may be nil at this point;
// it is filled in once generation finishes.
func (a *ChatAdapter) CreateMessage(ctx context.Context, message *entities.ChatMessage) error {
	record := goqu.Record{
		"id":         message.ID,
		"user_id":    message.UserID,
		"message":    message.Message,
		"response":   message.Response,
		"context":    nullableJSON(message.Context),
		"created_at": message.CreatedAt,
	}

	query, args, err := a.db.Insert("chat_messages").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create chat message", err)
	}
	return nil
}

// GetMessageByID retrieves a single message.
func (a *ChatAdapter) GetMessageByID(ctx context.Context, id string) (*entities.ChatMessage, error) {
	query, args, err := a.selectMessages().
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	message, err := a.scanMessage(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("message not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get message", err)
	}
	return message, nil
}

// UpdateResponse stores the generated answer on a message.
func (a *ChatAdapter) UpdateResponse(ctx context.Context, messageID, response string) error {
	query, args, err := a.db.Update("chat_messages").
		Set(goqu.Record{"response": response}).
		Where(goqu.Ex{"id": messageID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update response", err)
	}
	return requireRowsAffected(result, "message not found")
}

// UpdateResponseAndContext stores the answer and the updated context blob in
// one statement. Used by alternative selection, which records the chosen
// variant in the context.
func (a *ChatAdapter) UpdateResponseAndContext(ctx context.Context, messageID, response string, context json.RawMessage) error {
	query, args, err := a.db.Update("chat_messages").
		Set(goqu.Record{
			"response": response,
			"context":  nullableJSON(context),
		}).
		Where(goqu.Ex{"id": messageID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update response", err)
	}
	return requireRowsAffected(result, "message not found")
}

// ListByUser returns a page of the user's messages ascending by creation
// time, plus the user's total message count.
func (a *ChatAdapter) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.ChatMessage, int, error) {
	countQuery, countArgs, err := a.db.Select(goqu.COUNT("*")).
		From("chat_messages").
		Where(goqu.Ex{"user_id": userID}).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int
	if err = a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to count messages", err)
	}

	ds := a.selectMessages().
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("created_at").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	messages, err := a.queryMessages(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// ListRecent returns the user's newest messages, newest first.
func (a *ChatAdapter) ListRecent(ctx context.Context, userID string, limit int) ([]*entities.ChatMessage, error) {
	ds := a.selectMessages().
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit))
	return a.queryMessages(ctx, ds)
}

// DeleteAllByUser removes the user's whole conversation log. Ratings go
// with it through the foreign key cascade.
func (a *ChatAdapter) DeleteAllByUser(ctx context.Context, userID string) error {
	query, args, err := a.db.Delete("chat_messages").
		Where(goqu.Ex{"user_id": userID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete messages", err)
	}
	return nil
}

// UpsertRating stores a rating, overwriting any previous rating of the same
// message. The conflict target is the message_id unique constraint.
func (a *ChatAdapter) UpsertRating(ctx context.Context, rating *entities.MessageRating) error {
	record := goqu.Record{
		"id":         rating.ID,
		"message_id": rating.MessageID,
		"rating":     string(rating.Rating),
		"feedback":   rating.Feedback,
		"created_at": rating.CreatedAt,
		"updated_at": rating.UpdatedAt,
	}

	query, args, err := a.db.Insert("message_ratings").
		Rows(record).
		OnConflict(goqu.DoUpdate("message_id", goqu.Record{
			"rating":     string(rating.Rating),
			"feedback":   rating.Feedback,
			"updated_at": rating.UpdatedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}
	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert rating", err)
	}
	return nil
}

// GetRatings returns the ratings for the given messages keyed by message id.
func (a *ChatAdapter) GetRatings(ctx context.Context, messageIDs []string) (map[string]*entities.MessageRating, error) {
	ratings := map[string]*entities.MessageRating{}
	if len(messageIDs) == 0 {
		return ratings, nil
	}

	query, args, err := a.db.Select(
		"id", "message_id", "rating", "feedback", "created_at", "updated_at",
	).From("message_ratings").
		Where(goqu.Ex{"message_id": messageIDs}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get ratings", err)
	}
	defer rows.Close()

	for rows.Next() {
		rating := &entities.MessageRating{}
		var value string
		var feedback sql.NullString
		err = rows.Scan(
			&rating.ID,
			&rating.MessageID,
			&value,
			&feedback,
			&rating.CreatedAt,
			&rating.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan rating", err)
		}
		rating.Rating = entities.Rating(value)
		if feedback.Valid {
			rating.Feedback = &feedback.String
		}
		ratings[rating.MessageID] = rating
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate ratings", err)
	}
	return ratings, nil
}

// ListPositiveExamples returns the user's most recently positively rated
// exchanges, newest first, skipping messages whose answer was never stored.
func (a *ChatAdapter) ListPositiveExamples(ctx context.Context, userID string, limit int) ([]*entities.LearningExample, error) {
	query, args, err := a.db.Select(
		goqu.I("m.message"),
		goqu.I("m.response"),
	).From(goqu.T("chat_messages").As("m")).
		Join(
			goqu.T("message_ratings").As("r"),
			goqu.On(goqu.Ex{"r.message_id": goqu.I("m.id")}),
		).
		Where(goqu.Ex{
			"m.user_id": userID,
			"r.rating":  string(entities.RatingPositive),
		}).
		Where(goqu.I("m.response").IsNotNull()).
		Order(goqu.I("r.updated_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list examples", err)
	}
	defer rows.Close()

	examples := []*entities.LearningExample{}
	for rows.Next() {
		example := &entities.LearningExample{}
		if err = rows.Scan(&example.Question, &example.Answer); err != nil {
			return nil, apperrors.NewInternalError("failed to scan example", err)
		}
		examples = append(examples, example)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate examples", err)
	}
	return examples, nil
}

func (a *ChatAdapter) selectMessages() *goqu.SelectDataset {
	return a.db.Select(
		"id", "user_id", "message", "response", "context", "created_at",
	).From("chat_messages")
}

func (a *ChatAdapter) queryMessages(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.ChatMessage, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list messages", err)
	}
	defer rows.Close()

	messages := []*entities.ChatMessage{}
	for rows.Next() {
		message, err := a.scanMessage(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan message", err)
		}
		messages = append(messages, message)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate messages", err)
	}
	return messages, nil
}

func (a *ChatAdapter) scanMessage(row scannable) (*entities.ChatMessage, error) {
	message := &entities.ChatMessage{}
	var response, contextBlob sql.NullString

	err := row.Scan(
		&message.ID,
		&message.UserID,
		&message.Message,
		&response,
		&contextBlob,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if response.Valid {
		message.Response = &response.String
	}
	if contextBlob.Valid {
		message.Context = json.RawMessage(contextBlob.String)
	}
	return message, nil
}
