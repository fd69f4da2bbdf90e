package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"drivechat/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStreamMessageReusesThreadID(t *testing.T) {
	var threadIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message  string `json:"message"`
			ThreadID string `json:"threadId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		threadIDs = append(threadIDs, body.ThreadID)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"content\":\"ok\"}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.URL, discardLogger())

	for range 2 {
		if _, err := client.StreamMessage(context.Background(), "tok", "chat-1", "hi", nil); err != nil {
			t.Fatalf("StreamMessage: %v", err)
		}
	}
	if _, err := client.StreamMessage(context.Background(), "tok", "chat-2", "hi", nil); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}

	if len(threadIDs) != 3 {
		t.Fatalf("requests = %d, want 3", len(threadIDs))
	}
	if threadIDs[0] == "" || threadIDs[0] != threadIDs[1] {
		t.Errorf("same chat got different thread ids: %q vs %q", threadIDs[0], threadIDs[1])
	}
	if threadIDs[2] == threadIDs[0] {
		t.Error("different chats share a thread id")
	}

	// Reset mints a fresh id on the next stream.
	client.ResetThread("chat-1")
	if _, err := client.StreamMessage(context.Background(), "tok", "chat-1", "hi", nil); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}
	if threadIDs[3] == threadIDs[0] {
		t.Error("thread id survived a reset")
	}
}

func TestAskParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"response":"forty-two"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.URL, discardLogger())
	answer, err := client.Ask(context.Background(), "tok", "chat-1", "question")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "forty-two" {
		t.Errorf("answer = %q", answer)
	}
}

func TestAskEmptyResponseIsContentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response":""}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.URL, discardLogger())
	_, err := client.Ask(context.Background(), "tok", "chat-1", "question")
	var content *domain.StreamContentError
	if !errors.As(err, &content) {
		t.Fatalf("err = %v, want content error", err)
	}
}

func TestAskNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.URL, discardLogger())
	_, err := client.Ask(context.Background(), "tok", "chat-1", "question")
	var transport *domain.StreamTransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if transport.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", transport.Status)
	}
}

func TestStreamQuestionSendsDocID(t *testing.T) {
	var gotDocID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotDocID, _ = body["doc_id"].(string)
		io.WriteString(w, "data: {\"content\":\"scoped\"}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.URL, discardLogger())
	docID := "doc-7"
	text, err := client.StreamQuestion(context.Background(), "tok", "what is this", &docID, nil)
	if err != nil {
		t.Fatalf("StreamQuestion: %v", err)
	}
	if text != "scoped" {
		t.Errorf("text = %q", text)
	}
	if gotDocID != "doc-7" {
		t.Errorf("doc_id = %q", gotDocID)
	}
}

func TestTriggerIngestReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.URL, discardLogger())
	if err := client.TriggerIngest(context.Background(), "tok", "u/1/a.pdf", "a.pdf"); err == nil {
		t.Fatal("expected ingest failure to surface")
	}
}
