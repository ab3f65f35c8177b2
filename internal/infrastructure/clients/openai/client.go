package openai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/solarmaint/backend/internal/domain/providers"
	apperrors "github.com/solarmaint/backend/pkg/errors"
	"github.com/solarmaint/backend/pkg/config"
)

// embeddingInputLimit caps embedding input length to satisfy the backend's
// input ceiling.
const embeddingInputLimit = 8000

// Client implements the completion and embedding providers on top of the
// OpenAI API.
type Client struct {
	api            openai.Client
	model          string
	embeddingModel string
	limiter        *tokenBucket
}

var _ providers.CompletionProvider = (*Client)(nil)
var _ providers.EmbeddingProvider = (*Client)(nil)

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}

	return &Client{
		api:            openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:          model,
		embeddingModel: embeddingModel,
		limiter:        newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// Complete runs a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		recordCompletionMetric(ctx, c.model, time.Since(start), err)
		return "", apperrors.NewExternalError("completion request failed", err)
	}
	recordCompletionMetric(ctx, c.model, time.Since(start), nil)

	if len(resp.Choices) == 0 {
		return "", apperrors.NewExternalError("completion returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamCompletion runs a streaming chat completion, forwarding each text
// delta to handler as it arrives.
func (c *Client) StreamCompletion(ctx context.Context, req providers.CompletionRequest, handler providers.StreamHandler) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	stream := c.api.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := handler(delta); err != nil {
			recordCompletionMetric(ctx, c.model, time.Since(start), err)
			return err
		}
	}

	if err := stream.Err(); err != nil {
		recordCompletionMetric(ctx, c.model, time.Since(start), err)
		return apperrors.NewExternalError("completion stream failed", err)
	}

	recordCompletionMetric(ctx, c.model, time.Since(start), nil)
	return nil
}

// Embed computes an embedding vector for text, truncated to the backend's
// input limit.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if len(text) > embeddingInputLimit {
		text = text[:embeddingInputLimit]
	}

	start := time.Now()
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		recordEmbeddingMetric(ctx, c.embeddingModel, time.Since(start), err)
		return nil, apperrors.NewExternalError("embedding request failed", err)
	}
	recordEmbeddingMetric(ctx, c.embeddingModel, time.Since(start), nil)

	if len(resp.Data) == 0 {
		return nil, apperrors.NewExternalError("embedding response empty", nil)
	}

	raw := resp.Data[0].Embedding
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (c *Client) buildParams(req providers.CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.Turns {
		switch turn.Role {
		case providers.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	recordRateLimitWait(ctx, c.model, time.Since(waitStart))
	return nil
}
