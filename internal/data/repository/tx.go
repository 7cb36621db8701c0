package repository

import (
	"context"

	"visitor-booking/pkg/database"
)

// TxManager runs a unit of work atomically. Repositories called with the
// context handed to fn take part in the same transaction.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

type txManager struct {
	db database.PgxIface
}

func NewTxManager(db database.PgxIface) TxManager {
	return &txManager{db: db}
}

func (m *txManager) WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return database.RunInTx(ctx, m.db, fn)
}
