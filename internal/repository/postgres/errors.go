package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// pgErrCode extracts the SQLSTATE code from a pgx error, or "" when the
// error did not come from the server.
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isPgDuplicateError(err error) bool {
	return pgErrCode(err) == codeUniqueViolation
}

func isPgForeignKeyError(err error) bool {
	return pgErrCode(err) == codeForeignKeyViolation
}

func isPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
