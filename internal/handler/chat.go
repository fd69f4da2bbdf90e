package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"drivechat/internal/handler/sse"
	"drivechat/internal/httputil"
	"drivechat/internal/stream"
	syncpkg "drivechat/internal/sync"
)

const keepAliveInterval = 10 * time.Second

// ChatHandler exposes the chat operations over HTTP.
type ChatHandler struct {
	syncer *syncpkg.ChatSyncer
	ai     AIClient
	logger *slog.Logger
}

// AIClient is the slice of the endpoint client the handler drives
// directly: the non-streaming fallback and document-scoped questions.
type AIClient interface {
	Ask(ctx context.Context, token, chatID, message string) (string, error)
	StreamQuestion(ctx context.Context, token, question string, docID *string, onFragment stream.FragmentFunc) (string, error)
}

// NewChatHandler creates a chat handler.
func NewChatHandler(syncer *syncpkg.ChatSyncer, ai AIClient, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{syncer: syncer, ai: ai, logger: logger}
}

type createChatRequest struct {
	Title string `json:"title"`
}

type updateChatRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// ListChats handles GET /api/chats
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.syncer.PullChats(r.Context(), httputil.GetUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"chats": chats,
		"total": len(chats),
	})
}

// CreateChat handles POST /api/chats
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	chat, err := h.syncer.CreateChat(r.Context(), httputil.GetUserID(r), req.Title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, chat)
}

// UpdateChat handles PATCH /api/chats/{id}
func (h *ChatHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	var req updateChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	chatID := r.PathValue("id")
	if err := h.syncer.UpdateTitle(r.Context(), httputil.GetUserID(r), chatID, req.Title); err != nil {
		writeError(w, h.logger, err)
		return
	}
	chat, _ := h.syncer.Store().Chat(chatID)
	httputil.RespondJSON(w, http.StatusOK, chat)
}

// DeleteChat handles DELETE /api/chats/{id}
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.syncer.DeleteChat(r.Context(), httputil.GetUserID(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearChats handles DELETE /api/chats
func (h *ChatHandler) ClearChats(w http.ResponseWriter, r *http.Request) {
	if err := h.syncer.ClearAll(r.Context(), httputil.GetUserID(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/chats/{id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.syncer.PullMessages(r.Context(), httputil.GetUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    len(msgs),
	})
}

// SendMessage handles POST /api/chats/{id}/messages. The response is an
// SSE stream relaying assistant fragments as they arrive, closed with a
// final message event and the end-of-stream sentinel.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	chatID := r.PathValue("id")
	ownerID := httputil.GetUserID(r)
	token := httputil.GetToken(r)

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepAlive := sse.NewTickerKeepAlive(keepAliveInterval)
	keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	reply, streamErr := h.syncer.StreamReply(r.Context(), token, ownerID, chatID, req.Message, func(fragment string) {
		if err := writer.WriteEvent(map[string]string{"content": fragment}); err != nil {
			h.logger.Debug("fragment relay failed", "chat_id", chatID, "error", err)
		}
	})
	if streamErr != nil {
		// The response already committed to 200, so failures travel in-band
		// the same way the platform endpoints report them.
		if err := writer.WriteEvent(map[string]string{"error": streamErr.Error()}); err == nil {
			writer.WriteDone()
		}
		return
	}

	if err := writer.WriteEvent(map[string]any{"message": reply}); err == nil {
		writer.WriteDone()
	}
}

// Ask handles POST /api/chats/{id}/ask, the non-streaming fallback.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	chatID := r.PathValue("id")
	answer, err := h.ai.Ask(r.Context(), httputil.GetToken(r), chatID, req.Message)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"response": answer})
}

type askDocumentRequest struct {
	Question string  `json:"question"`
	DocID    *string `json:"doc_id"`
}

// AskDocument handles POST /api/ask. It streams an answer scoped to one
// document, or to the whole corpus when doc_id is absent. Nothing is
// persisted; the transcript belongs to chats only.
func (h *ChatHandler) AskDocument(w http.ResponseWriter, r *http.Request) {
	var req askDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "question is required")
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepAlive := sse.NewTickerKeepAlive(keepAliveInterval)
	keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	_, streamErr := h.ai.StreamQuestion(r.Context(), httputil.GetToken(r), req.Question, req.DocID, func(fragment string) {
		if err := writer.WriteEvent(map[string]string{"content": fragment}); err != nil {
			h.logger.Debug("fragment relay failed", "error", err)
		}
	})
	if streamErr != nil {
		if err := writer.WriteEvent(map[string]string{"error": streamErr.Error()}); err == nil {
			writer.WriteDone()
		}
		return
	}
	writer.WriteDone()
}
