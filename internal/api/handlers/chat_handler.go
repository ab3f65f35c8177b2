package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
)

// ChatService is the chat pipeline surface the handler needs.
type ChatService interface {
	Stream(ctx context.Context, identity entities.Identity, req services.ChatRequest) (<-chan services.StreamFrame, error)
	Dual(ctx context.Context, identity entities.Identity, req services.ChatRequest) (*services.DualResult, error)
	Rate(ctx context.Context, identity entities.Identity, messageID string, rating entities.Rating, feedback *string) error
	SelectAlternative(ctx context.Context, identity entities.Identity, messageID, selectedResponse, selectedID string) error
	History(ctx context.Context, identity entities.Identity, limit, offset int) (*services.HistoryPage, error)
	ClearHistory(ctx context.Context, identity entities.Identity) error
}

// RateLimiter gates expensive completion calls per user.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	chat    ChatService
	limiter RateLimiter
}

// NewChatHandler creates a new chat handler. limiter may be nil.
func NewChatHandler(chat ChatService, limiter RateLimiter) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		limiter: limiter,
	}
}

// HandleChat handles POST /api/chat. Standard mode answers with an SSE
// stream; dual mode answers with one JSON object carrying both
// alternatives.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req services.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "message is required")
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(r.Context(), identity.UserID)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("rate limiter unavailable")
		}
		if !allowed {
			respondWithError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
	}

	if req.Settings.DualResponse {
		h.handleDual(w, r, identity, req)
		return
	}
	h.handleStream(w, r, identity, req)
}

func (h *ChatHandler) handleDual(w http.ResponseWriter, r *http.Request, identity entities.Identity, req services.ChatRequest) {
	result, err := h.chat.Dual(r.Context(), identity, req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"messageId": result.MessageID,
		"dualMode":  true,
		"responses": result.Responses,
	})
}

func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request, identity entities.Identity, req services.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	frames, err := h.chat.Stream(r.Context(), identity, req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for frame := range frames {
		switch frame.Kind {
		case services.FrameID:
			writeSSE(w, map[string]string{"messageId": frame.MessageID})
		case services.FrameChunk:
			writeSSE(w, map[string]string{"content": frame.Content})
		case services.FrameError:
			writeSSE(w, map[string]string{"error": frame.Err})
		case services.FrameDone:
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
		flusher.Flush()
	}
}

// HandleSelection handles PUT /api/chat: commits a dual-mode alternative.
func (h *ChatHandler) HandleSelection(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		MessageID        string `json:"messageId"`
		SelectedResponse string `json:"selectedResponse"`
		SelectedID       string `json:"selectedId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.chat.SelectAlternative(r.Context(), identity, body.MessageID, body.SelectedResponse, body.SelectedID); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleFeedback handles POST /api/chat/feedback.
func (h *ChatHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		MessageID string  `json:"messageId"`
		Rating    string  `json:"rating"`
		Feedback  *string `json:"feedback,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.chat.Rate(r.Context(), identity, body.MessageID, entities.Rating(body.Rating), body.Feedback); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleHistory handles GET /api/chat/history.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.chat.History(r.Context(), identity, limit, offset)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// HandleClearHistory handles DELETE /api/chat/history.
func (h *ChatHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.chat.ClearHistory(r.Context(), identity); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeSSE(w http.ResponseWriter, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
