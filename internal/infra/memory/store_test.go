package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func deposit(cycle *ledger.Cycle, at time.Time, amount int64) *ledger.DepositCorrection {
	return &ledger.DepositCorrection{
		Header: ledger.Header{
			ID:         uuid.New(),
			CycleID:    cycle.ID,
			OccurredAt: at,
			CreatedAt:  at,
			UpdatedAt:  at,
		},
		Amount: decimal.NewFromInt(amount),
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(repo ledger.Repository) error {
		c, err := repo.EnsureCycle(ctx, "A", t0)
		require.NoError(t, err)
		require.NoError(t, repo.InsertTransaction(ctx, deposit(c, t0, 1)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cycles, err := s.ListCycles(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_WithinTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewStore().WithinTx(ctx, func(ledger.Repository) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_SeqAndChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	c, err := s.EnsureCycle(ctx, "A", t0)
	require.NoError(t, err)

	late := deposit(c, t0.Add(time.Hour), 1)
	early := deposit(c, t0, 2)
	tie := deposit(c, t0, 3)
	for _, tx := range []*ledger.DepositCorrection{late, early, tie} {
		require.NoError(t, s.InsertTransaction(ctx, tx))
	}
	assert.Less(t, late.Seq, early.Seq)
	assert.Less(t, early.Seq, tie.Seq)

	txs, err := s.ListTransactionsByCycle(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, early.ID, txs[0].Meta().ID)
	assert.Equal(t, tie.ID, txs[1].Meta().ID)
	assert.Equal(t, late.ID, txs[2].Meta().ID)
	assert.Equal(t, "A", txs[0].Meta().CycleName)

	last, err := s.LastTransactionInCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, late.ID, last.Meta().ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	c, err := s.EnsureCycle(ctx, "A", t0)
	require.NoError(t, err)
	tx := deposit(c, t0, 5)
	require.NoError(t, s.InsertTransaction(ctx, tx))
	tx.Amount = decimal.NewFromInt(500)

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	txs[0].(*ledger.DepositCorrection).Amount = decimal.NewFromInt(900)

	txs, err = s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.True(t, txs[0].(*ledger.DepositCorrection).Amount.Equal(decimal.NewFromInt(5)))
}

func TestStore_Cycles(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, err := s.EnsureCycle(ctx, "A", t0)
	require.NoError(t, err)
	again, err := s.EnsureCycle(ctx, "A", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	b, err := s.EnsureCycle(ctx, "B", t0)
	require.NoError(t, err)

	cycles, err := s.ListCycles(ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, a.ID, cycles[0].ID, "same CreatedAt falls back to insertion order")

	_, err = s.RenameCycle(ctx, b.ID, "A", t0)
	assert.ErrorIs(t, err, ledger.ErrDuplicateCycleName)
	renamed, err := s.RenameCycle(ctx, b.ID, "Beta", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Beta", renamed.Name)
	assert.Equal(t, t0.Add(time.Hour), renamed.UpdatedAt)

	got, err := s.GetCycleByName(ctx, "Beta")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	_, err = s.GetCycleByName(ctx, "B")
	assert.ErrorIs(t, err, ledger.ErrCycleNotFound)

	assert.ErrorIs(t, s.LockCycles(ctx, a.ID, uuid.New()), ledger.ErrNotFound)
	assert.NoError(t, s.LockCycles(ctx, a.ID, b.ID))
}

func TestStore_DeleteCycleCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, err := s.EnsureCycle(ctx, "A", t0)
	require.NoError(t, err)
	b, err := s.EnsureCycle(ctx, "B", t0)
	require.NoError(t, err)
	require.NoError(t, s.InsertTransaction(ctx, deposit(a, t0, 1)))
	require.NoError(t, s.InsertTransaction(ctx, deposit(b, t0, 2)))

	require.NoError(t, s.DeleteCycle(ctx, a.ID))
	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, b.ID, txs[0].Meta().CycleID)

	_, err = s.ListTransactionsByCycle(ctx, a.ID)
	assert.ErrorIs(t, err, ledger.ErrCycleNotFound)
	assert.ErrorIs(t, s.DeleteCycle(ctx, a.ID), ledger.ErrCycleNotFound)
}

func TestStore_DeleteSettlement(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, err := s.EnsureCycle(ctx, "A", t0)
	require.NoError(t, err)
	b, err := s.EnsureCycle(ctx, "B", t0)
	require.NoError(t, err)

	link := uuid.New()
	for _, leg := range []*ledger.Settlement{
		{Header: ledger.Header{ID: uuid.New(), CycleID: a.ID, OccurredAt: t0, CreatedAt: t0}, SettlementID: link, Direction: ledger.DirectionOut, CounterpartCycleID: b.ID, Amount: decimal.NewFromInt(3)},
		{Header: ledger.Header{ID: uuid.New(), CycleID: b.ID, OccurredAt: t0, CreatedAt: t0}, SettlementID: link, Direction: ledger.DirectionIn, CounterpartCycleID: a.ID, Amount: decimal.NewFromInt(3)},
	} {
		require.NoError(t, s.InsertTransaction(ctx, leg))
	}
	require.NoError(t, s.InsertTransaction(ctx, deposit(a, t0, 7)))

	n, err := s.DeleteSettlement(ctx, link)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	_, err = s.DeleteSettlement(ctx, link)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
