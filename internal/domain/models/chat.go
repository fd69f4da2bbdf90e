package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession is one conversation owned by a single user.
// UpdatedAt is bumped on every appended message.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage belongs to exactly one ChatSession. Messages are presented
// sorted ascending by CreatedAt, ties broken by insertion order.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Text      string    `json:"text"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Provisional marks a client-generated ID not yet acknowledged by the
	// remote store. Unsynced marks a message whose remote write failed and
	// which is retained locally.
	Provisional bool `json:"provisional,omitempty"`
	Unsynced    bool `json:"unsynced,omitempty"`
}
