package repository

import (
	"context"
	"database/sql"

	"github.com/anungis437/nzila-automation-sub005/internal/application/port"
	"github.com/anungis437/nzila-automation-sub005/pkg/database"
	"go.uber.org/zap"
)

type contextKey string

const txKey contextKey = "tx"

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getExecutor returns the transaction bound to the context, or the plain
// connection when none is.
func getExecutor(ctx context.Context, db *database.DB) executor {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}

// TxManager implements port.TransactionManager by carrying the open
// transaction through the context, so repositories join it transparently.
type TxManager struct {
	db     *database.DB
	logger *zap.Logger
}

// NewTxManager creates a new transaction manager
func NewTxManager(db *database.DB, logger *zap.Logger) port.TransactionManager {
	return &TxManager{
		db:     db,
		logger: logger,
	}
}

// WithTransaction runs fn inside a transaction. Nested calls join the
// enclosing transaction instead of opening a second one.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}

	return m.db.WithTransaction(func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// Verify interface compliance
var _ port.TransactionManager = (*TxManager)(nil)
