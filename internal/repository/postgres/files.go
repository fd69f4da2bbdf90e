package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
)

const fileColumns = "id, name, kind, mime_type, size_bytes, parent_id, storage_path, owner_id, created_at, updated_at"

// PostgresFileRepository implements the FileRepository interface
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFileRepository creates a new file repository
func NewFileRepository(config *RepositoryConfig) repositories.FileRepository {
	return &PostgresFileRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanFileNode(row interface{ Scan(dest ...any) error }) (*models.FileNode, error) {
	var node models.FileNode
	err := row.Scan(
		&node.ID,
		&node.Name,
		&node.Kind,
		&node.MimeType,
		&node.SizeBytes,
		&node.ParentID,
		&node.StoragePath,
		&node.OwnerID,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// Create inserts a new node.
func (r *PostgresFileRepository) Create(ctx context.Context, node *models.FileNode) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, kind, mime_type, size_bytes, parent_id, storage_path, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, r.tables.Files)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		node.ID,
		node.Name,
		node.Kind,
		node.MimeType,
		node.SizeBytes,
		node.ParentID,
		node.StoragePath,
		node.OwnerID,
		node.CreatedAt,
		node.UpdatedAt,
	).Scan(&node.CreatedAt, &node.UpdatedAt)

	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("node %q: %w", node.Name, domain.ErrConflict)
		}
		if isPgForeignKeyError(err) {
			return fmt.Errorf("parent folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create node: %w", err)
	}
	return nil
}

// GetByID retrieves a node scoped to its owner.
func (r *PostgresFileRepository) GetByID(ctx context.Context, id, ownerID string) (*models.FileNode, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = $1 AND owner_id = $2
	`, fileColumns, r.tables.Files)

	node, err := scanFileNode(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

// ListChildren returns the direct children of one folder. parentID nil
// selects the root level.
func (r *PostgresFileRepository) ListChildren(ctx context.Context, parentID *string, ownerID string) ([]models.FileNode, error) {
	var query string
	var args []any
	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE parent_id IS NULL AND owner_id = $1
			ORDER BY kind DESC, name ASC
		`, fileColumns, r.tables.Files)
		args = []any{ownerID}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE parent_id = $1 AND owner_id = $2
			ORDER BY kind DESC, name ASC
		`, fileColumns, r.tables.Files)
		args = []any{*parentID, ownerID}
	}
	return r.queryNodes(ctx, query, args...)
}

// ListChildrenOf returns the direct children of every given parent in a
// single query. Feeds the breadth-first subtree traversal.
func (r *PostgresFileRepository) ListChildrenOf(ctx context.Context, parentIDs []string, ownerID string) ([]models.FileNode, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = ANY($1) AND owner_id = $2
	`, fileColumns, r.tables.Files)
	return r.queryNodes(ctx, query, parentIDs, ownerID)
}

// Update rewrites a node's mutable fields.
func (r *PostgresFileRepository) Update(ctx context.Context, node *models.FileNode) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, parent_id = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5
	`, r.tables.Files)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		node.Name, node.ParentID, node.UpdatedAt, node.ID, node.OwnerID)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("node %q: %w", node.Name, domain.ErrConflict)
		}
		return fmt.Errorf("update node: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteMany removes all given ids in one statement.
func (r *PostgresFileRepository) DeleteMany(ctx context.Context, ids []string, ownerID string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = ANY($1) AND owner_id = $2
	`, r.tables.Files)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ids, ownerID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	return nil
}

// SearchByName returns nodes whose name contains the query, case
// insensitively.
func (r *PostgresFileRepository) SearchByName(ctx context.Context, ownerID, query string, limit int) ([]models.FileNode, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND name ILIKE '%%' || $2 || '%%'
		ORDER BY kind DESC, name ASC
		LIMIT $3
	`, fileColumns, r.tables.Files)
	return r.queryNodes(ctx, sql, ownerID, query, limit)
}

// ListRecent returns the most recently updated files, newest first.
// Folders are excluded.
func (r *PostgresFileRepository) ListRecent(ctx context.Context, ownerID string, limit int) ([]models.FileNode, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND kind = $2
		ORDER BY updated_at DESC
		LIMIT $3
	`, fileColumns, r.tables.Files)
	return r.queryNodes(ctx, query, ownerID, models.KindFile, limit)
}

func (r *PostgresFileRepository) queryNodes(ctx context.Context, query string, args ...any) ([]models.FileNode, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.FileNode
	for rows.Next() {
		node, err := scanFileNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}
