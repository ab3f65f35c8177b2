package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/providers"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
)

const (
	historyFetchLimit    = 10
	historyExchangeLimit = 6
	learningExampleMax   = 3
	learningPreviewSize  = 150

	// noDocumentationMarker tells the model the retrieval paths found
	// nothing so it should answer from general expertise instead of
	// pretending to cite sources.
	noDocumentationMarker = "No relevant documentation was found for this question. Answer from your general solar maintenance expertise and say so explicitly."

	contextPlaceholder = "{context}"
)

const standardTemplate = `You are an expert solar installation maintenance assistant. You help field technicians diagnose and fix problems with photovoltaic systems, inverters, batteries and related equipment.

Structure every answer with these sections:
1. Diagnostic: what is likely happening and why.
2. Primary solution: the recommended fix, step by step.
3. Alternatives: other approaches if the primary one is not applicable.
4. Precautions: safety warnings relevant to the intervention.
5. References: which documentation below supports the answer, if any.

Relevant documentation:
{context}

Ground your answer in the documentation above whenever it applies. Be precise about part names, tolerances and measurements.`

const conciseTemplate = `You are an expert solar installation maintenance assistant helping a field technician who is short on time.

Answer briefly: at most 5 sentences per point, no more than 2 clarifying questions. Lead with the most likely fix. Mention safety precautions only when skipping them is dangerous.

Relevant documentation:
{context}

Ground your answer in the documentation above whenever it applies.`

// PromptService composes the system prompt and conversation window for a
// chat request.
type PromptService struct {
	chats repositories.ChatRepository
}

// NewPromptService creates a new prompt service.
func NewPromptService(chats repositories.ChatRepository) *PromptService {
	return &PromptService{chats: chats}
}

// ComposeSystemPrompt builds the system prompt from the behavior template,
// the retrieved snippets and the user's appreciated-style examples. Empty
// snippets become the explicit no-documentation marker.
func (s *PromptService) ComposeSystemPrompt(ctx context.Context, userID string, snippets []*entities.ContextSnippet, concise bool) string {
	template := standardTemplate
	if concise {
		template = conciseTemplate
	}

	prompt := strings.Replace(template, contextPlaceholder, formatSnippets(snippets), 1)

	if block := s.learningBlock(ctx, userID); block != "" {
		prompt += "\n\n" + block
	}
	return prompt
}

// HistoryWindow returns the caller's recent completed exchanges as
// alternating user/assistant turns, oldest first. Messages without a stored
// response are skipped; only the newest 6 exchanges fit the window.
func (s *PromptService) HistoryWindow(ctx context.Context, userID string) []providers.ChatTurn {
	logger := observability.LoggerFromContext(ctx)

	messages, err := s.chats.ListRecent(ctx, userID, historyFetchLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("history load failed, continuing without history")
		return nil
	}

	// ListRecent is newest-first; walk backwards for chronological order.
	turns := []providers.ChatTurn{}
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Message == "" || m.Response == nil {
			continue
		}
		turns = append(turns,
			providers.ChatTurn{Role: providers.RoleUser, Content: m.Message},
			providers.ChatTurn{Role: providers.RoleAssistant, Content: *m.Response},
		)
	}

	if len(turns) > historyExchangeLimit*2 {
		turns = turns[len(turns)-historyExchangeLimit*2:]
	}
	return turns
}

// learningBlock formats the user's recent positively rated answers as style
// exemplars. Previews keep the prompt small; the point is tone and shape,
// not content.
func (s *PromptService) learningBlock(ctx context.Context, userID string) string {
	logger := observability.LoggerFromContext(ctx)

	examples, err := s.chats.ListPositiveExamples(ctx, userID, learningExampleMax)
	if err != nil {
		logger.Warn().Err(err).Msg("learning examples load failed, continuing without them")
		return ""
	}
	if len(examples) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The technician appreciated these previous answers. Match their style and level of detail:\n")
	for i, example := range examples {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, preview(example.Question), preview(example.Answer))
	}
	return b.String()
}

func formatSnippets(snippets []*entities.ContextSnippet) string {
	if len(snippets) == 0 {
		return noDocumentationMarker
	}

	var b strings.Builder
	for _, snippet := range snippets {
		fmt.Fprintf(&b, "[%s %.2f] %s\n%s\n\n", snippet.SourceType, snippet.Relevance, snippet.Title, snippet.Excerpt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// preview truncates on rune boundaries; the corpus is not pure ASCII.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= learningPreviewSize {
		return text
	}
	return string(runes[:learningPreviewSize]) + "..."
}
