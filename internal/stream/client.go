package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"drivechat/internal/domain"
)

// Client calls the streaming AI endpoints. It owns the HTTP client and the
// per-chat thread-id state; thread ids live here, not in a package-level
// map, so tests and callers control their lifetime.
type Client struct {
	askAIURL    string
	askAgentURL string
	ingestURL   string
	httpClient  *http.Client
	logger      *slog.Logger

	mu        sync.Mutex
	threadIDs map[string]string // chat id -> upstream thread id
}

// NewClient creates an AI endpoint client.
func NewClient(askAIURL, askAgentURL, ingestURL string, logger *slog.Logger) *Client {
	return &Client{
		askAIURL:    askAIURL,
		askAgentURL: askAgentURL,
		ingestURL:   ingestURL,
		httpClient:  &http.Client{},
		logger:      logger,
		threadIDs:   make(map[string]string),
	}
}

// threadIDFor returns the chat's upstream thread id, minting one on first use.
func (c *Client) threadIDFor(chatID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.threadIDs[chatID]; ok {
		return id
	}
	id := fmt.Sprintf("thread_%s_%d", chatID, time.Now().UnixMilli())
	c.threadIDs[chatID] = id
	return id
}

// ResetThread drops the upstream thread id for a chat, forcing a fresh
// thread on the next stream. Called when a chat is deleted or cleared.
func (c *Client) ResetThread(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.threadIDs, chatID)
}

// StreamMessage sends one user message for a chat and streams the reply.
// Fragments are delivered through onFragment in stream order; the full
// accumulated reply is returned on completion.
func (c *Client) StreamMessage(ctx context.Context, token, chatID, message string, onFragment FragmentFunc) (string, error) {
	body := map[string]any{
		"message":  message,
		"threadId": c.threadIDFor(chatID),
	}
	req, err := c.newRequest(ctx, c.askAIURL, token, body, "text/event-stream")
	if err != nil {
		return "", err
	}

	session := NewSession(c.httpClient, onFragment, c.logger)
	text, err := session.Run(ctx, req)
	if c.logger != nil {
		c.logger.Debug("stream session finished",
			"chat_id", chatID,
			"state", session.State().String(),
			"reply_len", len(text),
		)
	}
	return text, err
}

// StreamQuestion asks the document-scoped endpoint. docID, when non-nil,
// restricts retrieval to one document.
func (c *Client) StreamQuestion(ctx context.Context, token, question string, docID *string, onFragment FragmentFunc) (string, error) {
	body := map[string]any{"question": question}
	if docID != nil {
		body["doc_id"] = *docID
	}
	req, err := c.newRequest(ctx, c.askAgentURL, token, body, "text/event-stream")
	if err != nil {
		return "", err
	}

	session := NewSession(c.httpClient, onFragment, c.logger)
	return session.Run(ctx, req)
}

// Ask is the non-streaming fallback: one POST, one synchronous reply.
func (c *Client) Ask(ctx context.Context, token, chatID, message string) (string, error) {
	body := map[string]any{
		"message":  message,
		"threadId": c.threadIDFor(chatID),
	}
	req, err := c.newRequest(ctx, c.askAIURL, token, body, "application/json")
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.StreamTransportError{Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", &domain.StreamTransportError{
			Status: resp.StatusCode,
			Detail: string(bytes.TrimSpace(excerpt)),
		}
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode fallback response: %w", err)
	}
	if parsed.Response == "" {
		return "", &domain.StreamContentError{}
	}
	return parsed.Response, nil
}

// TriggerIngest asks the backend to index an uploaded document. Failures
// here do not undo the upload; the caller decides whether to surface them.
func (c *Client) TriggerIngest(ctx context.Context, token, storagePath, fileName string) error {
	body := map[string]any{
		"storage_path": storagePath,
		"file_name":    fileName,
		"source":       fileName,
	}
	req, err := c.newRequest(ctx, c.ingestURL, token, body, "application/json")
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ingest request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("ingest failed (%d): %s", resp.StatusCode, bytes.TrimSpace(excerpt))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, url, token string, body map[string]any, accept string) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}
