package repositories

import (
	"context"
	"database/sql"
)

// queryExecutor is satisfied by both *sql.DB and *sql.Tx, so a repository
// bound to a transaction runs the same statements.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}
