// internal/infra/database/postgres_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array and *pq.Error
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresLedgerRepository struct {
	db *sql.DB // nil when bound to a transaction
	q  querier
}

var _ ledger.Repository = (*PostgresLedgerRepository)(nil)

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db, q: db}
}

func (r *PostgresLedgerRepository) WithinTx(ctx context.Context, fn func(repo ledger.Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(&PostgresLedgerRepository{q: txn}); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// --- Cycle Methods ---

const cycleColumns = `id, name, created_at, updated_at`

func scanCycle(row interface{ Scan(dest ...any) error }) (*ledger.Cycle, error) {
	c := ledger.Cycle{}
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// EnsureCycle inserts the cycle unless the name exists and returns the stored
// row. DO NOTHING leaves an existing row unlocked; row locks are taken by LockCycles only.
func (r *PostgresLedgerRepository) EnsureCycle(ctx context.Context, name string, now time.Time) (*ledger.Cycle, error) {
	query := `INSERT INTO trade_cycles (id, name, created_at, updated_at)
               VALUES ($1, $2, $3, $3)
               ON CONFLICT (name) DO NOTHING
               RETURNING ` + cycleColumns
	c, err := scanCycle(r.q.QueryRowContext(ctx, query, uuid.New(), name, now))
	if err == sql.ErrNoRows {
		return r.GetCycleByName(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("error ensuring cycle: %w", err)
	}
	return c, nil
}

func (r *PostgresLedgerRepository) GetCycleByID(ctx context.Context, id uuid.UUID) (*ledger.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM trade_cycles WHERE id = $1`
	c, err := scanCycle(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting cycle by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresLedgerRepository) GetCycleByName(ctx context.Context, name string) (*ledger.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM trade_cycles WHERE name = $1`
	c, err := scanCycle(r.q.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting cycle by name: %w", err)
	}
	return c, nil
}

func (r *PostgresLedgerRepository) ListCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM trade_cycles ORDER BY created_at ASC, id ASC`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*ledger.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning cycle row: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}
	return cycles, nil
}

func (r *PostgresLedgerRepository) RenameCycle(ctx context.Context, id uuid.UUID, name string, now time.Time) (*ledger.Cycle, error) {
	query := `UPDATE trade_cycles SET name = $1, updated_at = $2 WHERE id = $3 RETURNING ` + cycleColumns
	c, err := scanCycle(r.q.QueryRowContext(ctx, query, name, now, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrCycleNotFound
		}
		if mapped := mapPQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("error renaming cycle: %w", err)
	}
	return c, nil
}

// DeleteCycle removes the cycle row; its transactions go with it via ON DELETE CASCADE.
func (r *PostgresLedgerRepository) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM trade_cycles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting cycle: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted cycle rows: %w", err)
	}
	if n == 0 {
		return ledger.ErrCycleNotFound
	}
	return nil
}

// LockCycles takes FOR UPDATE locks in id order. It is the only statement that
// row-locks cycles, so writers touching the same pair wait instead of deadlocking.
func (r *PostgresLedgerRepository) LockCycles(ctx context.Context, ids ...uuid.UUID) error {
	unique := make(map[uuid.UUID]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, seen := unique[id]; seen {
			continue
		}
		unique[id] = struct{}{}
		keys = append(keys, id.String())
	}
	if len(keys) == 0 {
		return nil
	}

	query := `SELECT id FROM trade_cycles WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("error locking cycles: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating locked cycles: %w", err)
	}
	if locked != len(keys) {
		return ledger.ErrCycleNotFound
	}
	return nil
}

// --- Transaction Methods ---

const transactionColumns = `t.id, t.seq, t.cycle_id, c.name, t.type, t.occurred_at, t.created_at, t.updated_at,
               t.received_currency, t.transaction_value, t.transaction_currency, t.usd_try_rate_at_buy,
               t.amount_received, t.amount_sold, t.price_per_unit, t.commission_percent, t.effective_rate_try,
               t.settlement_id, t.counterpart_cycle_id`

const chronological = ` ORDER BY t.occurred_at ASC, t.created_at ASC, t.seq ASC`

func (r *PostgresLedgerRepository) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	row := fromDomain(t)
	query := `INSERT INTO trade_transactions (id, cycle_id, type, occurred_at, created_at, updated_at, received_currency,
                   transaction_value, transaction_currency, usd_try_rate_at_buy, amount_received, amount_sold,
                   price_per_unit, commission_percent, effective_rate_try, settlement_id, counterpart_cycle_id)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
               RETURNING seq`
	err := r.q.QueryRowContext(ctx, query,
		row.ID, row.CycleID, row.Type, row.OccurredAt, row.CreatedAt, row.UpdatedAt, row.ReceivedCurrency,
		row.TransactionValue, row.TransactionCurrency, row.USDTRYRateAtBuy, row.AmountReceived, row.AmountSold,
		row.PricePerUnit, row.CommissionPercent, row.EffectiveRateTry, row.SettlementID, row.CounterpartCycleID,
	).Scan(&t.Meta().Seq)
	if err != nil {
		if mapped := mapPQError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("error inserting %s transaction: %w", row.Type, err)
	}
	return nil
}

func (r *PostgresLedgerRepository) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
               FROM trade_transactions t JOIN trade_cycles c ON c.id = t.cycle_id` + chronological
	return r.queryTransactions(ctx, query)
}

func (r *PostgresLedgerRepository) ListTransactionsByCycle(ctx context.Context, cycleID uuid.UUID) ([]ledger.Transaction, error) {
	if _, err := r.GetCycleByID(ctx, cycleID); err != nil {
		return nil, err
	}
	query := `SELECT ` + transactionColumns + `
               FROM trade_transactions t JOIN trade_cycles c ON c.id = t.cycle_id
               WHERE t.cycle_id = $1` + chronological
	return r.queryTransactions(ctx, query, cycleID)
}

func (r *PostgresLedgerRepository) LastTransactionInCycle(ctx context.Context, cycleID uuid.UUID) (ledger.Transaction, error) {
	if _, err := r.GetCycleByID(ctx, cycleID); err != nil {
		return nil, err
	}
	query := `SELECT ` + transactionColumns + `
               FROM trade_transactions t JOIN trade_cycles c ON c.id = t.cycle_id
               WHERE t.cycle_id = $1
               ORDER BY t.occurred_at DESC, t.created_at DESC, t.seq DESC
               LIMIT 1`
	txs, err := r.queryTransactions(ctx, query, cycleID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ledger.ErrTransactionNotFound
	}
	return txs[0], nil
}

func (r *PostgresLedgerRepository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	n, err := r.exec(ctx, `DELETE FROM trade_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting transaction: %w", err)
	}
	if n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresLedgerRepository) DeleteTransactionsByCycle(ctx context.Context, cycleID uuid.UUID) (int64, error) {
	if _, err := r.GetCycleByID(ctx, cycleID); err != nil {
		return 0, err
	}
	n, err := r.exec(ctx, `DELETE FROM trade_transactions WHERE cycle_id = $1`, cycleID)
	if err != nil {
		return 0, fmt.Errorf("error deleting transactions of cycle: %w", err)
	}
	return n, nil
}

func (r *PostgresLedgerRepository) DeleteSettlement(ctx context.Context, settlementID uuid.UUID) (int64, error) {
	n, err := r.exec(ctx, `DELETE FROM trade_transactions WHERE settlement_id = $1`, settlementID)
	if err != nil {
		return 0, fmt.Errorf("error deleting settlement: %w", err)
	}
	if n == 0 {
		return 0, ledger.ErrTransactionNotFound
	}
	return n, nil
}

func (r *PostgresLedgerRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PostgresLedgerRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		row := transactionRow{}
		err := rows.Scan(
			&row.ID, &row.Seq, &row.CycleID, &row.CycleName, &row.Type, &row.OccurredAt, &row.CreatedAt, &row.UpdatedAt,
			&row.ReceivedCurrency, &row.TransactionValue, &row.TransactionCurrency, &row.USDTRYRateAtBuy,
			&row.AmountReceived, &row.AmountSold, &row.PricePerUnit, &row.CommissionPercent, &row.EffectiveRateTry,
			&row.SettlementID, &row.CounterpartCycleID,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txs, nil
}

// mapPQError translates constraint violations into ledger errors. It returns
// nil for anything it does not recognise.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case "23505": // unique_violation
		if pqErr.Constraint == "trade_cycles_name_key" {
			return ledger.ErrDuplicateCycleName
		}
	case "23503": // foreign_key_violation
		return ledger.ErrCycleNotFound
	}
	return nil
}

// transactionRow is the flat shape of a 'trade_transactions' row. Settlement
// and correction amounts live in amount_sold (outflow) or amount_received (inflow).
type transactionRow struct {
	ID                  uuid.UUID
	Seq                 int64
	CycleID             uuid.UUID
	CycleName           string
	Type                string
	OccurredAt          time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ReceivedCurrency    string
	TransactionValue    decimal.NullDecimal
	TransactionCurrency sql.NullString
	USDTRYRateAtBuy     decimal.NullDecimal
	AmountReceived      decimal.NullDecimal
	AmountSold          decimal.NullDecimal
	PricePerUnit        decimal.NullDecimal
	CommissionPercent   decimal.NullDecimal
	EffectiveRateTry    decimal.NullDecimal
	SettlementID        uuid.NullUUID
	CounterpartCycleID  uuid.NullUUID
}

func fromDomain(t ledger.Transaction) transactionRow {
	h := t.Meta()
	row := transactionRow{
		ID:               h.ID,
		Seq:              h.Seq,
		CycleID:          h.CycleID,
		CycleName:        h.CycleName,
		Type:             string(t.Kind()),
		OccurredAt:       h.OccurredAt,
		CreatedAt:        h.CreatedAt,
		UpdatedAt:        h.UpdatedAt,
		ReceivedCurrency: string(h.ReceivedCurrency),
	}
	if row.ReceivedCurrency == "" {
		row.ReceivedCurrency = string(ledger.CurrencyTRY)
	}

	switch v := t.(type) {
	case *ledger.Buy:
		row.TransactionValue = decimal.NewNullDecimal(v.TransactionValue)
		row.TransactionCurrency = sql.NullString{String: string(v.TransactionCurrency), Valid: true}
		row.USDTRYRateAtBuy = v.USDTRYRateAtBuy
		row.AmountReceived = decimal.NewNullDecimal(v.AmountReceived)
		row.CommissionPercent = v.CommissionPercent
		row.EffectiveRateTry = v.EffectiveRateTry
	case *ledger.Sell:
		row.AmountSold = decimal.NewNullDecimal(v.AmountSold)
		row.AmountReceived = decimal.NewNullDecimal(v.AmountReceived)
		row.PricePerUnit = v.PricePerUnit
		row.CommissionPercent = v.CommissionPercent
		row.EffectiveRateTry = v.EffectiveRateTry
	case *ledger.Settlement:
		row.SettlementID = uuid.NullUUID{UUID: v.SettlementID, Valid: true}
		row.CounterpartCycleID = uuid.NullUUID{UUID: v.CounterpartCycleID, Valid: v.CounterpartCycleID != uuid.Nil}
		if v.Direction == ledger.DirectionOut {
			row.AmountSold = decimal.NewNullDecimal(v.Amount)
		} else {
			row.AmountReceived = decimal.NewNullDecimal(v.Amount)
		}
	case *ledger.DepositCorrection:
		row.AmountReceived = decimal.NewNullDecimal(v.Amount)
	case *ledger.WithdrawCorrection:
		row.AmountSold = decimal.NewNullDecimal(v.Amount)
	}
	return row
}

func (row transactionRow) toDomain() (ledger.Transaction, error) {
	h := ledger.Header{
		ID:               row.ID,
		CycleID:          row.CycleID,
		CycleName:        row.CycleName,
		OccurredAt:       row.OccurredAt.UTC(),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		Seq:              row.Seq,
		ReceivedCurrency: ledger.Currency(row.ReceivedCurrency),
	}

	switch ledger.Kind(row.Type) {
	case ledger.KindBuy:
		return &ledger.Buy{
			Header:              h,
			TransactionValue:    row.TransactionValue.Decimal,
			TransactionCurrency: ledger.Currency(row.TransactionCurrency.String),
			USDTRYRateAtBuy:     row.USDTRYRateAtBuy,
			AmountReceived:      row.AmountReceived.Decimal,
			CommissionPercent:   row.CommissionPercent,
			EffectiveRateTry:    row.EffectiveRateTry,
		}, nil
	case ledger.KindSell:
		return &ledger.Sell{
			Header:            h,
			AmountSold:        row.AmountSold.Decimal,
			AmountReceived:    row.AmountReceived.Decimal,
			PricePerUnit:      row.PricePerUnit,
			CommissionPercent: row.CommissionPercent,
			EffectiveRateTry:  row.EffectiveRateTry,
		}, nil
	case ledger.KindCycleSettlement:
		s := &ledger.Settlement{
			Header:             h,
			SettlementID:       row.SettlementID.UUID,
			CounterpartCycleID: row.CounterpartCycleID.UUID,
			Direction:          ledger.DirectionIn,
			Amount:             row.AmountReceived.Decimal,
		}
		if row.AmountSold.Valid {
			s.Direction = ledger.DirectionOut
			s.Amount = row.AmountSold.Decimal
		}
		return s, nil
	case ledger.KindDepositBalanceCorrection:
		return &ledger.DepositCorrection{Header: h, Amount: row.AmountReceived.Decimal}, nil
	case ledger.KindWithdrawBalanceCorrection:
		return &ledger.WithdrawCorrection{Header: h, Amount: row.AmountSold.Decimal}, nil
	}
	return nil, fmt.Errorf("unknown transaction type %q in row %s", row.Type, row.ID)
}
