package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/providers"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

const (
	streamTemperature        = 0.5
	streamTemperatureConcise = 0.3
	streamMaxTokens          = 2000
	streamMaxTokensConcise   = 600

	dualTemperaturePrimary     = 0.3
	dualTemperatureAlternative = 0.7
	dualMaxTokens              = 1500
	dualMaxTokensConcise       = 500
	dualTimeout                = 90 * time.Second

	retrieveLimit = 10

	alternativeInstruction = "Propose a deliberately different approach from the most obvious one: another diagnostic angle, another repair strategy or another tool. Do not repeat the standard recommendation."
)

// ChatSettings are the per-request generation options.
type ChatSettings struct {
	Concise      bool `json:"concise"`
	DualResponse bool `json:"dualResponse"`
}

// ChatRequest is a user's chat submission.
type ChatRequest struct {
	Message  string                `json:"message"`
	Context  *entities.ChatContext `json:"context,omitempty"`
	Settings ChatSettings          `json:"settings"`
}

// FrameKind tags a streaming frame.
type FrameKind string

const (
	FrameID    FrameKind = "id"
	FrameChunk FrameKind = "chunk"
	FrameError FrameKind = "error"
	FrameDone  FrameKind = "done"
)

// StreamFrame is one event of a streaming chat response. The first frame
// carries the message id so the client can rate or select before generation
// finishes; chunk frames follow; the stream always ends with a done frame,
// preceded by an error frame when generation failed.
type StreamFrame struct {
	Kind      FrameKind
	MessageID string
	Content   string
	Err       string
}

// DualResponse is one of the two alternatives of a dual-mode answer.
type DualResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Label   string `json:"label"`
}

// DualResult is a complete dual-mode answer. Both alternatives are always
// present; a failure of either leg fails the whole request.
type DualResult struct {
	MessageID string         `json:"messageId"`
	Responses []DualResponse `json:"responses"`
}

// HistoryPage is one page of a user's conversation log with ratings merged.
type HistoryPage struct {
	Messages []*HistoryItem `json:"messages"`
	Total    int            `json:"total"`
	HasMore  bool           `json:"hasMore"`
}

// HistoryItem is a chat message with its rating, if any.
type HistoryItem struct {
	ID        string          `json:"id"`
	Message   string          `json:"message"`
	Response  *string         `json:"response"`
	Context   json.RawMessage `json:"context,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Rating    *string         `json:"rating"`
	Feedback  *string         `json:"feedback"`
}

// ChatService runs the chat pipeline: retrieval, prompt composition,
// completion dispatch and history/feedback persistence.
type ChatService struct {
	chats       repositories.ChatRepository
	retrieval   *RetrievalService
	prompts     *PromptService
	completions providers.CompletionProvider
	metrics     *observability.Metrics
}

// NewChatService creates a new chat service.
func NewChatService(
	chats repositories.ChatRepository,
	retrieval *RetrievalService,
	prompts *PromptService,
	completions providers.CompletionProvider,
	metrics *observability.Metrics,
) *ChatService {
	return &ChatService{
		chats:       chats,
		retrieval:   retrieval,
		prompts:     prompts,
		completions: completions,
		metrics:     metrics,
	}
}

// Stream answers a message in standard mode. It returns a frame channel
// immediately; generation runs in the background and the channel closes
// after the terminal done frame.
//
// The accumulated partial text is persisted when the client disconnects
// mid-stream: a half answer is still useful history for future turns.
// Backend failures leave the response null regardless of how much text had
// arrived; a truncated generation is never written as if it were complete.
func (s *ChatService) Stream(ctx context.Context, identity entities.Identity, req ChatRequest) (<-chan StreamFrame, error) {
	if s.completions == nil {
		return nil, apperrors.NewExternalError("generation unavailable", nil)
	}

	message, err := s.createMessage(ctx, identity, req, false)
	if err != nil {
		return nil, err
	}

	frames := make(chan StreamFrame, 16)
	go s.runStream(ctx, identity, req, message, frames)
	return frames, nil
}

func (s *ChatService) runStream(ctx context.Context, identity entities.Identity, req ChatRequest, message *entities.ChatMessage, frames chan<- StreamFrame) {
	defer close(frames)
	logger := observability.LoggerFromContext(ctx)

	frames <- StreamFrame{Kind: FrameID, MessageID: message.ID}

	completionReq := s.buildCompletionRequest(ctx, identity, req, false)

	var accumulated []byte
	err := s.completions.StreamCompletion(ctx, completionReq, func(chunk string) error {
		accumulated = append(accumulated, chunk...)
		select {
		case frames <- StreamFrame{Kind: FrameChunk, Content: chunk}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err != nil {
		observability.RecordChatStream(ctx, s.metrics, "standard", "error")
		logger.Error().Err(err).Str("message_id", message.ID).Msg("streaming completion failed")

		if len(accumulated) > 0 && ctx.Err() != nil {
			// Client gone. Keep what we have, detached from the dead
			// request context. A backend failure never reaches this branch:
			// its partial is discarded and the response stays null.
			persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if perr := s.chats.UpdateResponse(persistCtx, message.ID, string(accumulated)); perr != nil {
				logger.Error().Err(perr).Str("message_id", message.ID).Msg("failed to persist partial response")
			}
		}

		frames <- StreamFrame{Kind: FrameError, Err: "generation failed"}
		frames <- StreamFrame{Kind: FrameDone}
		return
	}

	if err := s.chats.UpdateResponse(ctx, message.ID, string(accumulated)); err != nil {
		logger.Error().Err(err).Str("message_id", message.ID).Msg("failed to persist response")
	}

	observability.RecordChatStream(ctx, s.metrics, "standard", "ok")
	frames <- StreamFrame{Kind: FrameDone}
}

// Dual answers a message with two complete alternatives generated in
// parallel: a conventional take at low temperature and a deliberately
// different one at high temperature. Both legs share one timeout and both
// must succeed; a single alternative is never returned. The message row
// keeps a null response until the user selects one; its context carries a
// dualMode flag so history can tell an unselected dual message from a
// failed standard one.
func (s *ChatService) Dual(ctx context.Context, identity entities.Identity, req ChatRequest) (*DualResult, error) {
	if s.completions == nil {
		return nil, apperrors.NewExternalError("generation unavailable", nil)
	}

	message, err := s.createMessage(ctx, identity, req, true)
	if err != nil {
		return nil, err
	}

	completionReq := s.buildCompletionRequest(ctx, identity, req, true)

	altReq := completionReq
	altReq.System += "\n\n" + alternativeInstruction
	altReq.Temperature = dualTemperatureAlternative

	groupCtx, cancel := context.WithTimeout(ctx, dualTimeout)
	defer cancel()

	var primary, alternative string
	g, groupCtx := errgroup.WithContext(groupCtx)
	g.Go(func() error {
		text, err := s.completions.Complete(groupCtx, completionReq)
		primary = text
		return err
	})
	g.Go(func() error {
		text, err := s.completions.Complete(groupCtx, altReq)
		alternative = text
		return err
	})

	if err := g.Wait(); err != nil {
		observability.RecordChatStream(ctx, s.metrics, "dual", "error")
		observability.LoggerFromContext(ctx).Error().Err(err).Str("message_id", message.ID).Msg("dual completion failed")
		return nil, apperrors.NewExternalError("generation failed", err)
	}

	observability.RecordChatStream(ctx, s.metrics, "dual", "ok")
	return &DualResult{
		MessageID: message.ID,
		Responses: []DualResponse{
			{ID: "A", Content: primary, Label: "Standard approach"},
			{ID: "B", Content: alternative, Label: "Alternative approach"},
		},
	}, nil
}

// Rate records a like/dislike on one of the caller's messages. Rating
// someone else's message reads as not-found so existence is never leaked.
func (s *ChatService) Rate(ctx context.Context, identity entities.Identity, messageID string, rating entities.Rating, feedback *string) error {
	if messageID == "" {
		return apperrors.NewValidationError("messageId is required")
	}
	if !rating.Valid() {
		return apperrors.NewValidationError("rating must be positive or negative")
	}

	if _, err := s.ownedMessage(ctx, identity, messageID); err != nil {
		return err
	}

	now := time.Now()
	return s.chats.UpsertRating(ctx, &entities.MessageRating{
		ID:        uuid.New().String(),
		MessageID: messageID,
		Rating:    rating,
		Feedback:  feedback,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// SelectAlternative commits one dual-mode alternative as the canonical
// response, records the choice in the message context and files a synthetic
// positive rating. Choosing is itself a quality signal.
func (s *ChatService) SelectAlternative(ctx context.Context, identity entities.Identity, messageID, selectedResponse, selectedID string) error {
	if messageID == "" || selectedResponse == "" || selectedID == "" {
		return apperrors.NewValidationError("messageId, selectedResponse and selectedId are required")
	}

	message, err := s.ownedMessage(ctx, identity, messageID)
	if err != nil {
		return err
	}

	contextMeta := map[string]interface{}{}
	if len(message.Context) > 0 {
		_ = json.Unmarshal(message.Context, &contextMeta)
	}
	contextMeta["selectedChoice"] = selectedID
	contextBlob, err := json.Marshal(contextMeta)
	if err != nil {
		return apperrors.NewInternalError("failed to encode context", err)
	}

	if err := s.chats.UpdateResponseAndContext(ctx, messageID, selectedResponse, contextBlob); err != nil {
		return err
	}

	now := time.Now()
	feedback := "Selected alternative " + selectedID
	return s.chats.UpsertRating(ctx, &entities.MessageRating{
		ID:        uuid.New().String(),
		MessageID: messageID,
		Rating:    entities.RatingPositive,
		Feedback:  &feedback,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// History returns a page of the caller's conversation log, oldest first,
// with ratings merged in.
func (s *ChatService) History(ctx context.Context, identity entities.Identity, limit, offset int) (*HistoryPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, total, err := s.chats.ListByUser(ctx, identity.UserID, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	ratings, err := s.chats.GetRatings(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*HistoryItem, 0, len(messages))
	for _, m := range messages {
		item := &HistoryItem{
			ID:        m.ID,
			Message:   m.Message,
			Response:  m.Response,
			Context:   m.Context,
			CreatedAt: m.CreatedAt,
		}
		if rating, ok := ratings[m.ID]; ok {
			value := string(rating.Rating)
			item.Rating = &value
			item.Feedback = rating.Feedback
		}
		items = append(items, item)
	}

	return &HistoryPage{
		Messages: items,
		Total:    total,
		HasMore:  offset+len(items) < total,
	}, nil
}

// ClearHistory deletes the caller's whole conversation log.
func (s *ChatService) ClearHistory(ctx context.Context, identity entities.Identity) error {
	return s.chats.DeleteAllByUser(ctx, identity.UserID)
}

func (s *ChatService) createMessage(ctx context.Context, identity entities.Identity, req ChatRequest, dual bool) (*entities.ChatMessage, error) {
	if req.Message == "" {
		return nil, apperrors.NewValidationError("message is required")
	}

	var contextBlob json.RawMessage
	if req.Context != nil || dual {
		meta := map[string]interface{}{}
		if req.Context != nil {
			blob, err := json.Marshal(req.Context)
			if err != nil {
				return nil, apperrors.NewInternalError("failed to encode context", err)
			}
			if err := json.Unmarshal(blob, &meta); err != nil {
				return nil, apperrors.NewInternalError("failed to encode context", err)
			}
		}
		if dual {
			meta["dualMode"] = true
		}
		blob, err := json.Marshal(meta)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode context", err)
		}
		contextBlob = blob
	}

	message := &entities.ChatMessage{
		ID:        uuid.New().String(),
		UserID:    identity.UserID,
		Message:   req.Message,
		Context:   contextBlob,
		CreatedAt: time.Now(),
	}
	if err := s.chats.CreateMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// buildCompletionRequest runs retrieval and prompt composition. Strictly
// sequential: the composed prompt depends on the retrieved snippets.
func (s *ChatService) buildCompletionRequest(ctx context.Context, identity entities.Identity, req ChatRequest, dual bool) providers.CompletionRequest {
	snippets := s.retrieval.Retrieve(ctx, req.Message, retrieveLimit)
	system := s.prompts.ComposeSystemPrompt(ctx, identity.UserID, snippets, req.Settings.Concise)

	turns := s.prompts.HistoryWindow(ctx, identity.UserID)
	turns = append(turns, providers.ChatTurn{Role: providers.RoleUser, Content: req.Message})

	temperature := streamTemperature
	maxTokens := streamMaxTokens
	if dual {
		temperature = dualTemperaturePrimary
		maxTokens = dualMaxTokens
		if req.Settings.Concise {
			maxTokens = dualMaxTokensConcise
		}
	} else if req.Settings.Concise {
		temperature = streamTemperatureConcise
		maxTokens = streamMaxTokensConcise
	}

	return providers.CompletionRequest{
		System:      system,
		Turns:       turns,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func (s *ChatService) ownedMessage(ctx context.Context, identity entities.Identity, messageID string) (*entities.ChatMessage, error) {
	message, err := s.chats.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.UserID != identity.UserID {
		return nil, apperrors.NewNotFoundError("message not found")
	}
	return message, nil
}
