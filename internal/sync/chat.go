// Package sync keeps the local session caches and the remote store
// consistent. Pulls fully replace the local slice (remote is authoritative
// in that direction); pushes are optimistic for transcript appends and
// remote-first for structural mutations, so local state never violates the
// data model while a destructive write is still in flight.
package sync

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
	"drivechat/internal/store"
	"drivechat/internal/stream"
)

const untitledChat = "Untitled chat"

// Streamer is the slice of the AI endpoint client the syncer needs.
type Streamer interface {
	StreamMessage(ctx context.Context, token, chatID, message string, onFragment stream.FragmentFunc) (string, error)
	ResetThread(chatID string)
}

// ChatSyncer reconciles the local chat store with the remote chats and
// messages collections and drives streaming replies into both.
type ChatSyncer struct {
	store    *store.ChatStore
	chatRepo repositories.ChatRepository
	msgRepo  repositories.MessageRepository
	streamer Streamer
	logger   *slog.Logger
}

// NewChatSyncer creates a chat syncer.
func NewChatSyncer(
	chatStore *store.ChatStore,
	chatRepo repositories.ChatRepository,
	msgRepo repositories.MessageRepository,
	streamer Streamer,
	logger *slog.Logger,
) *ChatSyncer {
	return &ChatSyncer{
		store:    chatStore,
		chatRepo: chatRepo,
		msgRepo:  msgRepo,
		streamer: streamer,
		logger:   logger,
	}
}

// Store exposes the local store for read paths.
func (s *ChatSyncer) Store() *store.ChatStore { return s.store }

// requireOwner is the hard precondition for any remote operation.
func requireOwner(ownerID string) error {
	if ownerID == "" {
		return &domain.UnauthorizedError{Message: "not authenticated"}
	}
	return nil
}

// PullChats fetches the authoritative chat list and fully replaces the
// local slice. Untitled chats get a display fallback.
func (s *ChatSyncer) PullChats(ctx context.Context, ownerID string) ([]models.ChatSession, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	chats, err := s.chatRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if chats[i].Title == "" {
			chats[i].Title = untitledChat
		}
	}
	s.store.ReplaceChats(chats)
	return chats, nil
}

// PullMessages fetches one chat's authoritative transcript and fully
// replaces the local slice. Never merges field-by-field.
func (s *ChatSyncer) PullMessages(ctx context.Context, ownerID, chatID string) ([]models.ChatMessage, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if _, err := s.chatRepo.GetByID(ctx, chatID, ownerID); err != nil {
		return nil, err
	}
	msgs, err := s.msgRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.store.ReplaceMessages(chatID, msgs)
	return s.store.Messages(chatID), nil
}

// CreateChat creates a new chat remotely, then tracks it locally.
// Structural creation is remote-first.
func (s *ChatSyncer) CreateChat(ctx context.Context, ownerID, title string) (*models.ChatSession, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if title == "" {
		title = untitledChat
	}
	if err := validation.Validate(title, validation.Length(1, 200)); err != nil {
		return nil, &domain.ValidationError{Message: "chat title: " + err.Error()}
	}

	now := time.Now()
	chat := &models.ChatSession{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	s.store.AddChat(*chat)
	s.logger.Info("chat created", "id", chat.ID, "owner_id", ownerID)
	return chat, nil
}

// AppendMessage applies a message to the local transcript immediately under
// a client-generated provisional id, then issues the remote write. On
// remote failure the local message is kept and flagged unsynced; the
// primary interaction never blocks on network latency.
func (s *ChatSyncer) AppendMessage(ctx context.Context, ownerID, chatID, text, role string) (models.ChatMessage, error) {
	if err := requireOwner(ownerID); err != nil {
		return models.ChatMessage{}, err
	}
	if err := validation.Validate(text, validation.Required); err != nil {
		return models.ChatMessage{}, &domain.ValidationError{Message: "message text is required"}
	}

	msg := models.ChatMessage{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Text:        text,
		Role:        role,
		CreatedAt:   time.Now(),
		Provisional: true,
	}
	s.store.AppendMessage(msg)

	if err := s.msgRepo.Create(ctx, &msg); err != nil {
		s.store.MarkUnsynced(chatID, msg.ID)
		msg.Unsynced = true
		s.logger.Warn("message kept locally, remote write failed",
			"chat_id", chatID, "message_id", msg.ID, "error", err)
		return msg, nil
	}
	if err := s.chatRepo.Touch(ctx, chatID, ownerID); err != nil {
		s.logger.Warn("failed to bump chat timestamp", "chat_id", chatID, "error", err)
	}
	return msg, nil
}

// StreamReply sends the user message, streams the assistant reply into the
// local transcript fragment by fragment, and persists the final text once
// the stream completes. Fragments are also forwarded to onFragment when
// non-nil.
func (s *ChatSyncer) StreamReply(ctx context.Context, token, ownerID, chatID, userText string, onFragment stream.FragmentFunc) (models.ChatMessage, error) {
	userMsg, err := s.AppendMessage(ctx, ownerID, chatID, userText, models.RoleUser)
	if err != nil {
		return models.ChatMessage{}, err
	}

	// Placeholder assistant message grows as fragments arrive.
	reply := models.ChatMessage{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Role:        models.RoleAssistant,
		CreatedAt:   time.Now(),
		Provisional: true,
	}
	s.store.AppendMessage(reply)

	accumulated := ""
	text, streamErr := s.streamer.StreamMessage(ctx, token, chatID, userMsg.Text, func(fragment string) {
		accumulated += fragment
		s.store.UpdateMessage(chatID, reply.ID, accumulated)
		if onFragment != nil {
			onFragment(fragment)
		}
	})

	if streamErr != nil {
		if accumulated == "" {
			// Nothing arrived: drop the placeholder rather than keep an
			// empty assistant message in the transcript.
			s.store.RemoveMessage(chatID, reply.ID)
			return models.ChatMessage{}, streamErr
		}
		// Partial reply (cancelled or failed mid-stream): keep what the
		// user already saw, do not persist.
		s.store.MarkUnsynced(chatID, reply.ID)
		reply.Text = accumulated
		reply.Unsynced = true
		return reply, streamErr
	}

	reply.Text = text
	s.store.UpdateMessage(chatID, reply.ID, text)

	if err := s.msgRepo.Create(ctx, &reply); err != nil {
		// Stream succeeded; discarding the reply would lose data. Same
		// retention policy as user appends.
		s.store.MarkUnsynced(chatID, reply.ID)
		reply.Unsynced = true
		s.logger.Warn("assistant reply kept locally, remote write failed",
			"chat_id", chatID, "message_id", reply.ID, "error", err)
		return reply, nil
	}
	if err := s.chatRepo.Touch(ctx, chatID, ownerID); err != nil {
		s.logger.Warn("failed to bump chat timestamp", "chat_id", chatID, "error", err)
	}
	return reply, nil
}

// UpdateTitle renames a chat. Structural mutation: remote write first, the
// local store is only touched after confirmation.
func (s *ChatSyncer) UpdateTitle(ctx context.Context, ownerID, chatID, title string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := validation.Validate(title, validation.Required, validation.Length(1, 200)); err != nil {
		return &domain.ValidationError{Message: "chat title: " + err.Error()}
	}

	if err := s.chatRepo.UpdateTitle(ctx, chatID, ownerID, title); err != nil {
		return err
	}
	if chat, ok := s.store.Chat(chatID); ok {
		chat.Title = title
		s.store.AddChat(chat)
	}
	return nil
}

// DeleteChat removes a chat and its messages. Remote-first: the local copy
// survives a failed remote delete.
func (s *ChatSyncer) DeleteChat(ctx context.Context, ownerID, chatID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if _, err := s.chatRepo.GetByID(ctx, chatID, ownerID); err != nil {
		return err
	}
	if err := s.msgRepo.DeleteByChat(ctx, chatID); err != nil {
		return err
	}
	if err := s.chatRepo.Delete(ctx, chatID, ownerID); err != nil {
		return err
	}
	s.store.RemoveChat(chatID)
	s.streamer.ResetThread(chatID)
	s.logger.Info("chat deleted", "id", chatID, "owner_id", ownerID)
	return nil
}

// ClearAll removes every chat owned by the user. Remote-first.
func (s *ChatSyncer) ClearAll(ctx context.Context, ownerID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := s.msgRepo.DeleteAllByOwner(ctx, ownerID); err != nil {
		return err
	}
	if err := s.chatRepo.DeleteAllByOwner(ctx, ownerID); err != nil {
		return err
	}
	for _, chat := range s.store.Chats() {
		s.streamer.ResetThread(chat.ID)
	}
	s.store.Clear()
	return nil
}
