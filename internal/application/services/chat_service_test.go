package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/providers"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

type stubChatRepo struct {
	messages map[string]*entities.ChatMessage
	ratings  map[string]*entities.MessageRating
	examples []*entities.LearningExample
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{
		messages: map[string]*entities.ChatMessage{},
		ratings:  map[string]*entities.MessageRating{},
	}
}

func (r *stubChatRepo) CreateMessage(ctx context.Context, message *entities.ChatMessage) error {
	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *stubChatRepo) GetMessageByID(ctx context.Context, id string) (*entities.ChatMessage, error) {
	message, ok := r.messages[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("message not found")
	}
	copied := *message
	return &copied, nil
}

func (r *stubChatRepo) UpdateResponse(ctx context.Context, messageID, response string) error {
	message, ok := r.messages[messageID]
	if !ok {
		return apperrors.NewNotFoundError("message not found")
	}
	message.Response = &response
	return nil
}

func (r *stubChatRepo) UpdateResponseAndContext(ctx context.Context, messageID, response string, contextBlob json.RawMessage) error {
	message, ok := r.messages[messageID]
	if !ok {
		return apperrors.NewNotFoundError("message not found")
	}
	message.Response = &response
	message.Context = contextBlob
	return nil
}

func (r *stubChatRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.ChatMessage, int, error) {
	result := []*entities.ChatMessage{}
	for _, m := range r.messages {
		if m.UserID == userID {
			result = append(result, m)
		}
	}
	return result, len(result), nil
}

func (r *stubChatRepo) ListRecent(ctx context.Context, userID string, limit int) ([]*entities.ChatMessage, error) {
	return nil, nil
}

func (r *stubChatRepo) DeleteAllByUser(ctx context.Context, userID string) error {
	for id, m := range r.messages {
		if m.UserID == userID {
			delete(r.messages, id)
		}
	}
	return nil
}

func (r *stubChatRepo) UpsertRating(ctx context.Context, rating *entities.MessageRating) error {
	r.ratings[rating.MessageID] = rating
	return nil
}

func (r *stubChatRepo) GetRatings(ctx context.Context, messageIDs []string) (map[string]*entities.MessageRating, error) {
	result := map[string]*entities.MessageRating{}
	for _, id := range messageIDs {
		if rating, ok := r.ratings[id]; ok {
			result[id] = rating
		}
	}
	return result, nil
}

func (r *stubChatRepo) ListPositiveExamples(ctx context.Context, userID string, limit int) ([]*entities.LearningExample, error) {
	return r.examples, nil
}

type stubCompletionProvider struct {
	chunks   []string
	text     string
	err      error
	failAlt  bool
	cancel   context.CancelFunc
	requests []providers.CompletionRequest
}

func (p *stubCompletionProvider) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	if p.failAlt && req.Temperature > 0.5 {
		return "", errors.New("alternative leg failed")
	}
	return p.text, nil
}

// StreamCompletion plays back chunks, then fails with err or simulates a
// client disconnect by cancelling the request context.
func (p *stubCompletionProvider) StreamCompletion(ctx context.Context, req providers.CompletionRequest, handler providers.StreamHandler) error {
	p.requests = append(p.requests, req)
	for _, chunk := range p.chunks {
		if err := handler(chunk); err != nil {
			return err
		}
	}
	if p.err != nil {
		return p.err
	}
	if p.cancel != nil {
		p.cancel()
		return ctx.Err()
	}
	return nil
}

type stubSearchRepo struct {
	terms      []string
	procedures []*entities.Procedure
	tips       []*entities.Tip
	err        error
}

func (r *stubSearchRepo) SearchProcedures(ctx context.Context, terms []string, limit int) ([]*entities.Procedure, error) {
	r.terms = terms
	if r.err != nil {
		return nil, r.err
	}
	return r.procedures, nil
}

func (r *stubSearchRepo) SearchTips(ctx context.Context, terms []string, limit int) ([]*entities.Tip, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.tips, nil
}

type stubEmbeddingRepo struct {
	docs []*entities.DocumentEmbedding
	err  error
}

func (r *stubEmbeddingRepo) Upsert(ctx context.Context, embedding *entities.DocumentEmbedding) error {
	r.docs = append(r.docs, embedding)
	return nil
}

func (r *stubEmbeddingRepo) ListAll(ctx context.Context) ([]*entities.DocumentEmbedding, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.docs, nil
}

func (r *stubEmbeddingRepo) DeleteForDocument(ctx context.Context, docType entities.DocumentType, documentID string) error {
	return nil
}

func newChatService(chats *stubChatRepo, completions providers.CompletionProvider) *services.ChatService {
	retrieval := services.NewRetrievalService(nil, &stubEmbeddingRepo{}, &stubSearchRepo{}, nil)
	prompts := services.NewPromptService(chats)
	return services.NewChatService(chats, retrieval, prompts, completions, nil)
}

func collectFrames(t *testing.T, frames <-chan services.StreamFrame) []services.StreamFrame {
	t.Helper()
	collected := []services.StreamFrame{}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return collected
			}
			collected = append(collected, frame)
		case <-timeout:
			t.Fatal("timed out waiting for stream frames")
		}
	}
}

func TestChatService_Stream_FrameOrder(t *testing.T) {
	chats := newStubChatRepo()
	completions := &stubCompletionProvider{chunks: []string{"Check the ", "breaker first."}}
	svc := newChatService(chats, completions)
	identity := entities.Identity{UserID: "user-1"}

	frames, err := svc.Stream(context.Background(), identity, services.ChatRequest{Message: "inverter shows error 14"})
	require.NoError(t, err)

	collected := collectFrames(t, frames)
	require.Len(t, collected, 4)
	assert.Equal(t, services.FrameID, collected[0].Kind)
	assert.NotEmpty(t, collected[0].MessageID)
	assert.Equal(t, services.FrameChunk, collected[1].Kind)
	assert.Equal(t, "Check the ", collected[1].Content)
	assert.Equal(t, services.FrameChunk, collected[2].Kind)
	assert.Equal(t, services.FrameDone, collected[3].Kind)

	// Full text persisted on completion.
	stored, err := chats.GetMessageByID(context.Background(), collected[0].MessageID)
	require.NoError(t, err)
	require.NotNil(t, stored.Response)
	assert.Equal(t, "Check the breaker first.", *stored.Response)
}

func TestChatService_Stream_BackendFailure(t *testing.T) {
	chats := newStubChatRepo()
	completions := &stubCompletionProvider{err: errors.New("upstream down")}
	svc := newChatService(chats, completions)
	identity := entities.Identity{UserID: "user-1"}

	frames, err := svc.Stream(context.Background(), identity, services.ChatRequest{Message: "hello"})
	require.NoError(t, err)

	collected := collectFrames(t, frames)
	require.Len(t, collected, 3)
	assert.Equal(t, services.FrameID, collected[0].Kind)
	assert.Equal(t, services.FrameError, collected[1].Kind)
	assert.Equal(t, services.FrameDone, collected[2].Kind)

	// No text arrived, so the row keeps a null response.
	stored, err := chats.GetMessageByID(context.Background(), collected[0].MessageID)
	require.NoError(t, err)
	assert.Nil(t, stored.Response)
}

func TestChatService_Stream_MidStreamFailure(t *testing.T) {
	chats := newStubChatRepo()
	completions := &stubCompletionProvider{
		chunks: []string{"Check the "},
		err:    errors.New("upstream reset"),
	}
	svc := newChatService(chats, completions)

	frames, err := svc.Stream(context.Background(), entities.Identity{UserID: "user-1"}, services.ChatRequest{Message: "hello"})
	require.NoError(t, err)

	collected := collectFrames(t, frames)
	require.Len(t, collected, 4)
	assert.Equal(t, services.FrameChunk, collected[1].Kind)
	assert.Equal(t, services.FrameError, collected[2].Kind)
	assert.Equal(t, services.FrameDone, collected[3].Kind)

	// A backend failure discards the truncated partial.
	stored, err := chats.GetMessageByID(context.Background(), collected[0].MessageID)
	require.NoError(t, err)
	assert.Nil(t, stored.Response)
}

func TestChatService_Stream_ClientDisconnectPersistsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chats := newStubChatRepo()
	completions := &stubCompletionProvider{
		chunks: []string{"Check the ", "breaker"},
		cancel: cancel,
	}
	svc := newChatService(chats, completions)

	frames, err := svc.Stream(ctx, entities.Identity{UserID: "user-1"}, services.ChatRequest{Message: "hello"})
	require.NoError(t, err)

	collected := collectFrames(t, frames)
	require.GreaterOrEqual(t, len(collected), 2)
	assert.Equal(t, services.FrameID, collected[0].Kind)

	// The accumulated partial survives the disconnect.
	stored, err := chats.GetMessageByID(context.Background(), collected[0].MessageID)
	require.NoError(t, err)
	require.NotNil(t, stored.Response)
	assert.Equal(t, "Check the breaker", *stored.Response)
}

func TestChatService_NoProviderConfigured(t *testing.T) {
	svc := newChatService(newStubChatRepo(), nil)
	identity := entities.Identity{UserID: "user-1"}

	_, err := svc.Stream(context.Background(), identity, services.ChatRequest{Message: "hello"})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)

	_, err = svc.Dual(context.Background(), identity, services.ChatRequest{
		Message:  "hello",
		Settings: services.ChatSettings{DualResponse: true},
	})
	require.Error(t, err)
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)
}

func TestChatService_Stream_EmptyMessage(t *testing.T) {
	svc := newChatService(newStubChatRepo(), &stubCompletionProvider{})

	_, err := svc.Stream(context.Background(), entities.Identity{UserID: "u"}, services.ChatRequest{})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func TestChatService_Dual_BothLegs(t *testing.T) {
	chats := newStubChatRepo()
	completions := &stubCompletionProvider{text: "an answer"}
	svc := newChatService(chats, completions)
	identity := entities.Identity{UserID: "user-1"}

	result, err := svc.Dual(context.Background(), identity, services.ChatRequest{
		Message:  "test",
		Settings: services.ChatSettings{DualResponse: true},
	})
	require.NoError(t, err)

	require.Len(t, result.Responses, 2)
	assert.Equal(t, "A", result.Responses[0].ID)
	assert.Equal(t, "B", result.Responses[1].ID)
	assert.NotEqual(t, result.Responses[0].Label, result.Responses[1].Label)

	// Two legs with distinct temperatures, the hotter one carrying the
	// alternative-approach instruction.
	require.Len(t, completions.requests, 2)
	temps := []float64{completions.requests[0].Temperature, completions.requests[1].Temperature}
	assert.Contains(t, temps, 0.3)
	assert.Contains(t, temps, 0.7)

	// Dual-mode response stays null until the user selects, and the context
	// is flagged so history can tell it apart from a failed standard answer.
	stored, err := chats.GetMessageByID(context.Background(), result.MessageID)
	require.NoError(t, err)
	assert.Nil(t, stored.Response)

	var contextMeta map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Context, &contextMeta))
	assert.Equal(t, true, contextMeta["dualMode"])
}

func TestChatService_Dual_Atomicity(t *testing.T) {
	chats := newStubChatRepo()
	completions := &stubCompletionProvider{text: "an answer", failAlt: true}
	svc := newChatService(chats, completions)

	_, err := svc.Dual(context.Background(), entities.Identity{UserID: "user-1"}, services.ChatRequest{
		Message:  "test",
		Settings: services.ChatSettings{DualResponse: true},
	})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)
}

func TestChatService_Rate_LatestWins(t *testing.T) {
	chats := newStubChatRepo()
	svc := newChatService(chats, &stubCompletionProvider{})
	identity := entities.Identity{UserID: "user-1"}

	response := "answer"
	chats.messages["m1"] = &entities.ChatMessage{ID: "m1", UserID: "user-1", Message: "q", Response: &response}

	require.NoError(t, svc.Rate(context.Background(), identity, "m1", entities.RatingPositive, nil))
	require.NoError(t, svc.Rate(context.Background(), identity, "m1", entities.RatingNegative, nil))

	require.Len(t, chats.ratings, 1)
	assert.Equal(t, entities.RatingNegative, chats.ratings["m1"].Rating)
}

func TestChatService_Rate_NotOwner(t *testing.T) {
	chats := newStubChatRepo()
	svc := newChatService(chats, &stubCompletionProvider{})

	chats.messages["m1"] = &entities.ChatMessage{ID: "m1", UserID: "user-1", Message: "q"}

	err := svc.Rate(context.Background(), entities.Identity{UserID: "user-2"}, "m1", entities.RatingPositive, nil)
	requireNotFound(t, err)
}

func TestChatService_Rate_InvalidValue(t *testing.T) {
	svc := newChatService(newStubChatRepo(), &stubCompletionProvider{})

	err := svc.Rate(context.Background(), entities.Identity{UserID: "u"}, "m1", entities.Rating("meh"), nil)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func TestChatService_SelectAlternative(t *testing.T) {
	chats := newStubChatRepo()
	svc := newChatService(chats, &stubCompletionProvider{})
	identity := entities.Identity{UserID: "user-1"}

	chats.messages["m1"] = &entities.ChatMessage{
		ID:      "m1",
		UserID:  "user-1",
		Message: "q",
		Context: json.RawMessage(`{"procedureId":"proc-1"}`),
	}

	err := svc.SelectAlternative(context.Background(), identity, "m1", "the alternative text", "B")
	require.NoError(t, err)

	stored := chats.messages["m1"]
	require.NotNil(t, stored.Response)
	assert.Equal(t, "the alternative text", *stored.Response)

	var contextMeta map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Context, &contextMeta))
	assert.Equal(t, "B", contextMeta["selectedChoice"])
	assert.Equal(t, "proc-1", contextMeta["procedureId"])

	// Selection files an implicit positive rating.
	rating, ok := chats.ratings["m1"]
	require.True(t, ok)
	assert.Equal(t, entities.RatingPositive, rating.Rating)
	require.NotNil(t, rating.Feedback)
	assert.Contains(t, *rating.Feedback, "B")
}

func TestChatService_History_MergesRatings(t *testing.T) {
	chats := newStubChatRepo()
	svc := newChatService(chats, &stubCompletionProvider{})
	identity := entities.Identity{UserID: "user-1"}

	response := "a"
	chats.messages["m1"] = &entities.ChatMessage{ID: "m1", UserID: "user-1", Message: "q", Response: &response}
	chats.ratings["m1"] = &entities.MessageRating{MessageID: "m1", Rating: entities.RatingPositive}

	page, err := svc.History(context.Background(), identity, 50, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.NotNil(t, page.Messages[0].Rating)
	assert.Equal(t, "positive", *page.Messages[0].Rating)
	assert.False(t, page.HasMore)
}
