// internal/domain/ledger/repository.go
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the store boundary for cycles and their transactions.
type Repository interface {
	// WithinTx runs fn against a repository bound to a single store transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithinTx on an already bound repository reuses its transaction.
	WithinTx(ctx context.Context, fn func(repo Repository) error) error

	// Cycle methods
	EnsureCycle(ctx context.Context, name string, now time.Time) (*Cycle, error) // upsert by exact name
	GetCycleByID(ctx context.Context, id uuid.UUID) (*Cycle, error)
	GetCycleByName(ctx context.Context, name string) (*Cycle, error)
	ListCycles(ctx context.Context) ([]*Cycle, error) // ordered by creation
	RenameCycle(ctx context.Context, id uuid.UUID, name string, now time.Time) (*Cycle, error)
	DeleteCycle(ctx context.Context, id uuid.UUID) error
	// LockCycles takes row locks on the given cycles until the transaction ends.
	LockCycles(ctx context.Context, ids ...uuid.UUID) error

	// Transaction methods
	InsertTransaction(ctx context.Context, t Transaction) error  // assigns Seq
	ListTransactions(ctx context.Context) ([]Transaction, error) // chronological
	ListTransactionsByCycle(ctx context.Context, cycleID uuid.UUID) ([]Transaction, error)
	LastTransactionInCycle(ctx context.Context, cycleID uuid.UUID) (Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	DeleteTransactionsByCycle(ctx context.Context, cycleID uuid.UUID) (int64, error)
	// DeleteSettlement removes both legs of a settlement.
	DeleteSettlement(ctx context.Context, settlementID uuid.UUID) (int64, error)
}
