package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
)

// PostgresChatRepository implements the ChatRepository interface
type PostgresChatRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewChatRepository creates a new chat repository
func NewChatRepository(config *RepositoryConfig) repositories.ChatRepository {
	return &PostgresChatRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a new chat. The caller assigns the id.
func (r *PostgresChatRepository) Create(ctx context.Context, chat *models.ChatSession) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, r.tables.Chats)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		chat.ID,
		chat.Title,
		chat.OwnerID,
		chat.CreatedAt,
		chat.UpdatedAt,
	).Scan(&chat.CreatedAt, &chat.UpdatedAt)

	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("chat %s: %w", chat.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

// GetByID retrieves a chat scoped to its owner.
func (r *PostgresChatRepository) GetByID(ctx context.Context, id, ownerID string) (*models.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT id, title, owner_id, created_at, updated_at
		FROM %s
		WHERE id = $1 AND owner_id = $2
	`, r.tables.Chats)

	var chat models.ChatSession
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id, ownerID).Scan(
		&chat.ID,
		&chat.Title,
		&chat.OwnerID,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &chat, nil
}

// ListByOwner returns all chats for a user, most recently updated first.
func (r *PostgresChatRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT id, title, owner_id, created_at, updated_at
		FROM %s
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, r.tables.Chats)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.ChatSession
	for rows.Next() {
		var chat models.ChatSession
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.OwnerID, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// UpdateTitle renames a chat.
func (r *PostgresChatRepository) UpdateTitle(ctx context.Context, id, ownerID, title string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
	`, r.tables.Chats)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, title, time.Now(), id, ownerID)
	if err != nil {
		return fmt.Errorf("update chat title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Touch bumps the chat's updated_at so it sorts to the top of the list.
func (r *PostgresChatRepository) Touch(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = $1
		WHERE id = $2 AND owner_id = $3
	`, r.tables.Chats)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, time.Now(), id, ownerID)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a chat.
func (r *PostgresChatRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND owner_id = $2
	`, r.tables.Chats)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteAllByOwner removes every chat for a user.
func (r *PostgresChatRepository) DeleteAllByOwner(ctx context.Context, ownerID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1`, r.tables.Chats)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ownerID); err != nil {
		return fmt.Errorf("delete all chats: %w", err)
	}
	return nil
}
