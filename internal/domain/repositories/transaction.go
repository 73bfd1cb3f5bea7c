package repositories

import "context"

// TxFn is the unit of work handed to a TransactionManager
type TxFn func(ctx context.Context) error

// TransactionManager runs multi-statement writes (a conversation and its
// message rows) atomically
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
