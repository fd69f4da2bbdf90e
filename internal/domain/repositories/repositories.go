package repositories

import (
	"context"

	"drivechat/internal/domain/models"
)

// ChatRepository provides access to the remote chats collection.
// Single-row lookups report a miss as domain.ErrNotFound, never a panic.
type ChatRepository interface {
	Create(ctx context.Context, chat *models.ChatSession) error
	GetByID(ctx context.Context, id, ownerID string) (*models.ChatSession, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ChatSession, error)
	UpdateTitle(ctx context.Context, id, ownerID, title string) error
	Touch(ctx context.Context, id, ownerID string) error
	Delete(ctx context.Context, id, ownerID string) error
	DeleteAllByOwner(ctx context.Context, ownerID string) error
}

// MessageRepository provides access to the remote messages collection.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	ListByChat(ctx context.Context, chatID string) ([]models.ChatMessage, error)
	DeleteByChat(ctx context.Context, chatID string) error
	DeleteAllByOwner(ctx context.Context, ownerID string) error
}

// FileRepository provides access to the remote files collection.
type FileRepository interface {
	Create(ctx context.Context, node *models.FileNode) error
	GetByID(ctx context.Context, id, ownerID string) (*models.FileNode, error)
	ListChildren(ctx context.Context, parentID *string, ownerID string) ([]models.FileNode, error)
	// ListChildrenOf returns the immediate children of every parent in one
	// query. Used by the worklist subtree traversal.
	ListChildrenOf(ctx context.Context, parentIDs []string, ownerID string) ([]models.FileNode, error)
	Update(ctx context.Context, node *models.FileNode) error
	// DeleteMany removes all given ids in one statement.
	DeleteMany(ctx context.Context, ids []string, ownerID string) error
	SearchByName(ctx context.Context, ownerID, query string, limit int) ([]models.FileNode, error)
	ListRecent(ctx context.Context, ownerID string, limit int) ([]models.FileNode, error)
}
