package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/providers"
)

type recentChatRepo struct {
	*stubChatRepo
	recent []*entities.ChatMessage
}

func (r *recentChatRepo) ListRecent(ctx context.Context, userID string, limit int) ([]*entities.ChatMessage, error) {
	if len(r.recent) > limit {
		return r.recent[:limit], nil
	}
	return r.recent, nil
}

func exchange(id, question, answer string) *entities.ChatMessage {
	m := &entities.ChatMessage{ID: id, UserID: "user-1", Message: question}
	if answer != "" {
		m.Response = &answer
	}
	return m
}

func TestPromptService_NoDocumentationMarker(t *testing.T) {
	svc := services.NewPromptService(newStubChatRepo())

	prompt := svc.ComposeSystemPrompt(context.Background(), "user-1", nil, false)

	assert.Contains(t, prompt, "No relevant documentation was found")
	assert.NotContains(t, prompt, "{context}")
}

func TestPromptService_SnippetFormatting(t *testing.T) {
	svc := services.NewPromptService(newStubChatRepo())
	snippets := []*entities.ContextSnippet{
		{SourceType: entities.DocumentProcedure, Title: "Inverter reset", Excerpt: "Power down first.", Relevance: 0.83},
		{SourceType: entities.DocumentTip, Title: "Grounding check", Excerpt: "Measure continuity.", Relevance: 0.5},
	}

	prompt := svc.ComposeSystemPrompt(context.Background(), "user-1", snippets, false)

	assert.Contains(t, prompt, "[procedure 0.83] Inverter reset\nPower down first.")
	assert.Contains(t, prompt, "[tip 0.50] Grounding check\nMeasure continuity.")
	assert.NotContains(t, prompt, "No relevant documentation was found")
}

func TestPromptService_ConciseTemplate(t *testing.T) {
	svc := services.NewPromptService(newStubChatRepo())

	standard := svc.ComposeSystemPrompt(context.Background(), "user-1", nil, false)
	concise := svc.ComposeSystemPrompt(context.Background(), "user-1", nil, true)

	assert.Contains(t, standard, "Diagnostic")
	assert.Contains(t, concise, "short on time")
	assert.NotEqual(t, standard, concise)
}

func TestPromptService_LearningBlock(t *testing.T) {
	chats := newStubChatRepo()
	chats.examples = []*entities.LearningExample{
		{Question: "Why is the inverter beeping?", Answer: strings.Repeat("a", 200)},
	}
	svc := services.NewPromptService(chats)

	prompt := svc.ComposeSystemPrompt(context.Background(), "user-1", nil, false)

	assert.Contains(t, prompt, "The technician appreciated these previous answers")
	assert.Contains(t, prompt, "1. Q: Why is the inverter beeping?")
	// Long answers are previewed, not inlined whole.
	assert.Contains(t, prompt, strings.Repeat("a", 150)+"...")
	assert.NotContains(t, prompt, strings.Repeat("a", 151))
}

func TestPromptService_HistoryWindow(t *testing.T) {
	// ListRecent contract: newest first.
	repo := &recentChatRepo{stubChatRepo: newStubChatRepo(), recent: []*entities.ChatMessage{
		exchange("m8", "question eight", "answer eight"),
		exchange("m7", "question seven", "answer seven"),
		exchange("m6", "question six", "answer six"),
		exchange("m5", "question five", "answer five"),
		exchange("m4", "question four", ""),
		exchange("m3", "question three", "answer three"),
		exchange("m2", "question two", "answer two"),
		exchange("m1", "question one", "answer one"),
	}}
	svc := services.NewPromptService(repo)

	turns := svc.HistoryWindow(context.Background(), "user-1")

	// Seven completed exchanges, pending m4 skipped, capped at the newest
	// six exchanges (twelve alternating turns).
	require.Len(t, turns, 12)
	assert.Equal(t, providers.RoleUser, turns[0].Role)
	assert.Equal(t, "question two", turns[0].Content)
	assert.Equal(t, providers.RoleAssistant, turns[1].Role)
	assert.Equal(t, "answer two", turns[1].Content)
	assert.Equal(t, "question three", turns[2].Content)
	assert.Equal(t, "question five", turns[4].Content)
	assert.Equal(t, "question eight", turns[10].Content)
	assert.Equal(t, "answer eight", turns[11].Content)
}

func TestPromptService_HistoryWindowEmpty(t *testing.T) {
	svc := services.NewPromptService(newStubChatRepo())

	turns := svc.HistoryWindow(context.Background(), "user-1")
	assert.Empty(t, turns)
}
