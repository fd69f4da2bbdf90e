package stream

import (
	"errors"
	"testing"

	"drivechat/internal/domain"
)

func TestExtractLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind EventKind
		wantText string
	}{
		{
			name:     "empty line ignored",
			line:     "   ",
			wantKind: EventNone,
		},
		{
			name:     "comment line ignored",
			line:     ": keep-alive",
			wantKind: EventNone,
		},
		{
			name:     "done sentinel",
			line:     "data: [DONE]",
			wantKind: EventDone,
		},
		{
			name:     "nested delta wins over flat content",
			line:     `data: {"choices":[{"delta":{"content":"A"}}], "content":"B"}`,
			wantKind: EventFragment,
			wantText: "A",
		},
		{
			name:     "flat content",
			line:     `data: {"content":"hello"}`,
			wantKind: EventFragment,
			wantText: "hello",
		},
		{
			name:     "flat text",
			line:     `data: {"text":"t"}`,
			wantKind: EventFragment,
			wantText: "t",
		},
		{
			name:     "flat message",
			line:     `data: {"message":"m"}`,
			wantKind: EventFragment,
			wantText: "m",
		},
		{
			name:     "content priority skips empty strings",
			line:     `data: {"choices":[{"delta":{"content":""}}], "content":"B"}`,
			wantKind: EventFragment,
			wantText: "B",
		},
		{
			name:     "non-string content is not a fragment",
			line:     `data: {"content":42}`,
			wantKind: EventNone,
		},
		{
			name:     "metadata only",
			line:     `data: {"choices":[{"finish_reason":"stop"}]}`,
			wantKind: EventNone,
		},
		{
			name:     "non-JSON data payload passes through raw",
			line:     "data: plain text chunk",
			wantKind: EventFragment,
			wantText: "plain text chunk",
		},
		{
			name:     "bare JSON line without data prefix",
			line:     `{"content":"bare"}`,
			wantKind: EventFragment,
			wantText: "bare",
		},
		{
			name:     "bare unparseable line dropped",
			line:     "some stray log output",
			wantKind: EventNone,
		},
		{
			name:     "error event",
			line:     `data: {"error":"rate limited","details":"try later"}`,
			wantKind: EventError,
		},
		{
			name:     "bare error event",
			line:     `{"error":"boom"}`,
			wantKind: EventError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := ExtractLine(tt.line)
			if event.Kind != tt.wantKind {
				t.Fatalf("kind = %v, want %v", event.Kind, tt.wantKind)
			}
			if event.Kind == EventFragment && event.Fragment != tt.wantText {
				t.Errorf("fragment = %q, want %q", event.Fragment, tt.wantText)
			}
		})
	}
}

func TestExtractLineErrorDetails(t *testing.T) {
	event := ExtractLine(`data: {"error":"rate limited","details":"try later"}`)
	if event.Kind != EventError {
		t.Fatalf("kind = %v, want EventError", event.Kind)
	}
	var remote *domain.StreamRemoteError
	if !errors.As(event.Err, &remote) {
		t.Fatalf("err = %T, want *domain.StreamRemoteError", event.Err)
	}
	if remote.Message != "rate limited" || remote.Details != "try later" {
		t.Errorf("got message=%q details=%q", remote.Message, remote.Details)
	}
}

func TestExtractLineErrorObjectMessage(t *testing.T) {
	event := ExtractLine(`data: {"error":{"message":"bad request","code":400}}`)
	var remote *domain.StreamRemoteError
	if !errors.As(event.Err, &remote) {
		t.Fatalf("err = %T, want *domain.StreamRemoteError", event.Err)
	}
	if remote.Message != "bad request" {
		t.Errorf("message = %q, want %q", remote.Message, "bad request")
	}
}
