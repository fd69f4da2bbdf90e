package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
)

// PostgresMessageRepository implements the MessageRepository interface
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a message. The caller assigns the id; once the row exists
// the provisional flag no longer applies.
func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, chat_id, text, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, r.tables.Messages)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.Text,
		msg.Role,
		msg.CreatedAt,
	).Scan(&msg.CreatedAt)

	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("message %s: %w", msg.ID, domain.ErrConflict)
		}
		if isPgForeignKeyError(err) {
			return fmt.Errorf("chat %s: %w", msg.ChatID, domain.ErrNotFound)
		}
		return fmt.Errorf("create message: %w", err)
	}
	msg.Provisional = false
	return nil
}

// ListByChat returns a chat's transcript in chronological order.
func (r *PostgresMessageRepository) ListByChat(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, text, role, created_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`, r.tables.Messages)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Text, &msg.Role, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// DeleteByChat removes a chat's transcript.
func (r *PostgresMessageRepository) DeleteByChat(ctx context.Context, chatID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE chat_id = $1`, r.tables.Messages)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, chatID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// DeleteAllByOwner removes every message in every chat owned by the user.
func (r *PostgresMessageRepository) DeleteAllByOwner(ctx context.Context, ownerID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE chat_id IN (SELECT id FROM %s WHERE owner_id = $1)
	`, r.tables.Messages, r.tables.Chats)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ownerID); err != nil {
		return fmt.Errorf("delete all messages: %w", err)
	}
	return nil
}
