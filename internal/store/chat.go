// Package store holds the in-memory, authoritative-for-the-session caches
// behind the UI: the chat transcript and the file-tree listings. Stores are
// shared across request goroutines, so every operation holds the store's
// lock and readers get copies; every operation leaves the collection's
// ordering invariant intact and never introduces a duplicate id.
package store

import (
	"sort"
	"sync"

	"drivechat/internal/domain/models"
)

// ChatStore caches chat sessions and their message lists. Message lists are
// kept sorted ascending by CreatedAt, ties broken by insertion order.
// Safe for concurrent use.
type ChatStore struct {
	mu       sync.Mutex
	chats    []models.ChatSession
	messages map[string][]models.ChatMessage // chat id -> ordered transcript
}

// NewChatStore creates an empty chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		messages: make(map[string][]models.ChatMessage),
	}
}

// ReplaceChats fully replaces the tracked chat list with the remote
// authoritative state. Message lists for chats no longer present are
// dropped; lists for surviving chats are kept.
func (s *ChatStore) ReplaceChats(chats []models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = make([]models.ChatSession, len(chats))
	copy(s.chats, chats)

	alive := make(map[string]struct{}, len(chats))
	for _, c := range chats {
		alive[c.ID] = struct{}{}
	}
	for id := range s.messages {
		if _, ok := alive[id]; !ok {
			delete(s.messages, id)
		}
	}
}

// ReplaceMessages fully replaces one chat's transcript with the remote
// authoritative state, re-establishing the ordering invariant.
func (s *ChatStore) ReplaceMessages(chatID string, msgs []models.ChatMessage) {
	list := make([]models.ChatMessage, len(msgs))
	copy(list, msgs)
	sortMessages(list)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[chatID] = list
}

// AddChat inserts a chat. If a chat with the same id exists it is
// merge-replaced in place, preserving position, rather than duplicated.
func (s *ChatStore) AddChat(chat models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.chats {
		if s.chats[i].ID == chat.ID {
			s.chats[i] = chat
			return
		}
	}
	s.chats = append(s.chats, chat)
}

// Chats returns a copy of the tracked chat list.
func (s *ChatStore) Chats() []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatSession, len(s.chats))
	copy(out, s.chats)
	return out
}

// Chat returns the chat with the given id, or false.
func (s *ChatStore) Chat(chatID string) (models.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chats {
		if c.ID == chatID {
			return c, true
		}
	}
	return models.ChatSession{}, false
}

// Messages returns a copy of one chat's transcript in presentation order.
func (s *ChatStore) Messages(chatID string) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[chatID]
	if list == nil {
		return nil
	}
	out := make([]models.ChatMessage, len(list))
	copy(out, list)
	return out
}

// AppendMessage inserts a message into its chat's transcript and re-sorts
// the transcript by creation time. An existing message with the same id is
// merge-replaced in place instead of duplicated.
func (s *ChatStore) AppendMessage(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[msg.ChatID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			sortMessages(list)
			s.messages[msg.ChatID] = list
			return
		}
	}
	list = append(list, msg)
	sortMessages(list)
	s.messages[msg.ChatID] = list
}

// UpdateMessage applies new text to a message. Returns false when the
// message is absent; callers treat that as a recoverable miss.
func (s *ChatStore) UpdateMessage(chatID, messageID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[chatID]
	for i := range list {
		if list[i].ID == messageID {
			list[i].Text = text
			return true
		}
	}
	return false
}

// MarkUnsynced flags a message whose remote write failed. Returns false
// when the message is absent.
func (s *ChatStore) MarkUnsynced(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[chatID]
	for i := range list {
		if list[i].ID == messageID {
			list[i].Unsynced = true
			return true
		}
	}
	return false
}

// RemoveMessage deletes a message from its chat. Returns false when absent.
func (s *ChatStore) RemoveMessage(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[chatID]
	for i := range list {
		if list[i].ID == messageID {
			s.messages[chatID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// ClearChat empties a chat's transcript while keeping the chat itself.
func (s *ChatStore) ClearChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, chatID)
}

// RemoveChat drops a chat and its transcript.
func (s *ChatStore) RemoveChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.chats {
		if s.chats[i].ID == chatID {
			s.chats = append(s.chats[:i], s.chats[i+1:]...)
			break
		}
	}
	delete(s.messages, chatID)
}

// Clear drops everything.
func (s *ChatStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = nil
	s.messages = make(map[string][]models.ChatMessage)
}

// sortMessages establishes the transcript ordering invariant: ascending
// creation time, stable so equal timestamps keep insertion order.
func sortMessages(list []models.ChatMessage) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
