// Package postgres implements the repository interfaces against a
// Supabase-hosted PostgreSQL database.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drivechat/internal/domain/repositories"
)

// RepositoryConfig holds the shared dependencies of every repository.
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds the environment-prefixed table names.
type TableNames struct {
	Chats    string
	Messages string
	Files    string
}

// NewTableNames creates table names with the given prefix.
// The prefix is interpolated into SQL before it reaches the database, so
// each environment gets its own set of statements.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Chats:    fmt.Sprintf("%schats", prefix),
		Messages: fmt.Sprintf("%smessages", prefix),
		Files:    fmt.Sprintf("%sfiles", prefix),
	}
}

// CreateConnectionPool creates a pgx pool. Supabase's transaction pooler
// (port 6543) does not support prepared statements, so when that port is
// detected and the user has not chosen a mode explicitly, the pool falls
// back to cache_describe which stays PgBouncer-compatible.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction from the context when one is active,
// otherwise the pool. Repositories call this on every query so they
// automatically participate in surrounding transactions.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
