// Package memory is an in-process ledger.Repository. Each WithinTx call works on
// a copy of the state and swaps it in only when the callback succeeds, so
// transactions are serialized and atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
)

type cycleRow struct {
	cycle ledger.Cycle
	seq   int64
}

type state struct {
	cycles map[uuid.UUID]cycleRow
	txs    map[uuid.UUID]ledger.Transaction
	seq    int64
}

func (st *state) clone() *state {
	c := &state{
		cycles: make(map[uuid.UUID]cycleRow, len(st.cycles)),
		txs:    make(map[uuid.UUID]ledger.Transaction, len(st.txs)),
		seq:    st.seq,
	}
	for k, v := range st.cycles {
		c.cycles[k] = v
	}
	// rows are never mutated in place, sharing them is safe
	for k, v := range st.txs {
		c.txs[k] = v
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ ledger.Repository = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: &state{
		cycles: make(map[uuid.UUID]cycleRow),
		txs:    make(map[uuid.UUID]ledger.Transaction),
	}}
}

// WithinTx runs fn on a private copy of the state. The copy replaces the
// shared state only when fn returns nil. fn must use the repository it is
// given; calling back into the Store deadlocks.
func (s *Store) WithinTx(ctx context.Context, fn func(repo ledger.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(&view{st: draft}); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// read runs a read-only call against the shared state.
func read[T any](s *Store, fn func(v *view) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st})
}

// write runs a single mutating call as its own transaction.
func write[T any](ctx context.Context, s *Store, fn func(v *view) (T, error)) (T, error) {
	var out T
	err := s.WithinTx(ctx, func(repo ledger.Repository) error {
		var err error
		out, err = fn(repo.(*view))
		return err
	})
	return out, err
}

func (s *Store) EnsureCycle(ctx context.Context, name string, now time.Time) (*ledger.Cycle, error) {
	return write(ctx, s, func(v *view) (*ledger.Cycle, error) { return v.EnsureCycle(ctx, name, now) })
}

func (s *Store) GetCycleByID(ctx context.Context, id uuid.UUID) (*ledger.Cycle, error) {
	return read(s, func(v *view) (*ledger.Cycle, error) { return v.GetCycleByID(ctx, id) })
}

func (s *Store) GetCycleByName(ctx context.Context, name string) (*ledger.Cycle, error) {
	return read(s, func(v *view) (*ledger.Cycle, error) { return v.GetCycleByName(ctx, name) })
}

func (s *Store) ListCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	return read(s, func(v *view) ([]*ledger.Cycle, error) { return v.ListCycles(ctx) })
}

func (s *Store) RenameCycle(ctx context.Context, id uuid.UUID, name string, now time.Time) (*ledger.Cycle, error) {
	return write(ctx, s, func(v *view) (*ledger.Cycle, error) { return v.RenameCycle(ctx, id, name, now) })
}

func (s *Store) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	_, err := write(ctx, s, func(v *view) (struct{}, error) { return struct{}{}, v.DeleteCycle(ctx, id) })
	return err
}

func (s *Store) LockCycles(ctx context.Context, ids ...uuid.UUID) error {
	_, err := read(s, func(v *view) (struct{}, error) { return struct{}{}, v.LockCycles(ctx, ids...) })
	return err
}

func (s *Store) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	_, err := write(ctx, s, func(v *view) (struct{}, error) { return struct{}{}, v.InsertTransaction(ctx, t) })
	return err
}

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return read(s, func(v *view) ([]ledger.Transaction, error) { return v.ListTransactions(ctx) })
}

func (s *Store) ListTransactionsByCycle(ctx context.Context, cycleID uuid.UUID) ([]ledger.Transaction, error) {
	return read(s, func(v *view) ([]ledger.Transaction, error) { return v.ListTransactionsByCycle(ctx, cycleID) })
}

func (s *Store) LastTransactionInCycle(ctx context.Context, cycleID uuid.UUID) (ledger.Transaction, error) {
	return read(s, func(v *view) (ledger.Transaction, error) { return v.LastTransactionInCycle(ctx, cycleID) })
}

func (s *Store) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	_, err := write(ctx, s, func(v *view) (struct{}, error) { return struct{}{}, v.DeleteTransaction(ctx, id) })
	return err
}

func (s *Store) DeleteTransactionsByCycle(ctx context.Context, cycleID uuid.UUID) (int64, error) {
	return write(ctx, s, func(v *view) (int64, error) { return v.DeleteTransactionsByCycle(ctx, cycleID) })
}

func (s *Store) DeleteSettlement(ctx context.Context, settlementID uuid.UUID) (int64, error) {
	return write(ctx, s, func(v *view) (int64, error) { return v.DeleteSettlement(ctx, settlementID) })
}

// view is a Repository bound to one state snapshot. The Store mutex is held
// by whoever created it.
type view struct {
	st *state
}

func (v *view) WithinTx(_ context.Context, fn func(repo ledger.Repository) error) error {
	return fn(v)
}

func (v *view) EnsureCycle(_ context.Context, name string, now time.Time) (*ledger.Cycle, error) {
	if c, ok := v.findByName(name); ok {
		return c, nil
	}
	v.st.seq++
	row := cycleRow{
		cycle: ledger.Cycle{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now},
		seq:   v.st.seq,
	}
	v.st.cycles[row.cycle.ID] = row
	c := row.cycle
	return &c, nil
}

func (v *view) GetCycleByID(_ context.Context, id uuid.UUID) (*ledger.Cycle, error) {
	row, ok := v.st.cycles[id]
	if !ok {
		return nil, ledger.ErrCycleNotFound
	}
	c := row.cycle
	return &c, nil
}

func (v *view) GetCycleByName(_ context.Context, name string) (*ledger.Cycle, error) {
	if c, ok := v.findByName(name); ok {
		return c, nil
	}
	return nil, ledger.ErrCycleNotFound
}

func (v *view) findByName(name string) (*ledger.Cycle, bool) {
	for _, row := range v.st.cycles {
		if row.cycle.Name == name {
			c := row.cycle
			return &c, true
		}
	}
	return nil, false
}

func (v *view) ListCycles(_ context.Context) ([]*ledger.Cycle, error) {
	rows := make([]cycleRow, 0, len(v.st.cycles))
	for _, row := range v.st.cycles {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].cycle.CreatedAt.Equal(rows[j].cycle.CreatedAt) {
			return rows[i].cycle.CreatedAt.Before(rows[j].cycle.CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	cycles := make([]*ledger.Cycle, 0, len(rows))
	for _, row := range rows {
		c := row.cycle
		cycles = append(cycles, &c)
	}
	return cycles, nil
}

func (v *view) RenameCycle(_ context.Context, id uuid.UUID, name string, now time.Time) (*ledger.Cycle, error) {
	row, ok := v.st.cycles[id]
	if !ok {
		return nil, ledger.ErrCycleNotFound
	}
	if other, ok := v.findByName(name); ok && other.ID != id {
		return nil, ledger.ErrDuplicateCycleName
	}
	row.cycle.Name = name
	row.cycle.UpdatedAt = now
	v.st.cycles[id] = row
	c := row.cycle
	return &c, nil
}

// DeleteCycle cascades to the cycle's transactions and clears the
// counterpart of settlement legs left in other cycles.
func (v *view) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	if _, ok := v.st.cycles[id]; !ok {
		return ledger.ErrCycleNotFound
	}
	if _, err := v.DeleteTransactionsByCycle(ctx, id); err != nil {
		return err
	}
	for txID, t := range v.st.txs {
		if leg, ok := t.(*ledger.Settlement); ok && leg.CounterpartCycleID == id {
			orphan := ledger.Clone(leg).(*ledger.Settlement)
			orphan.CounterpartCycleID = uuid.Nil
			v.st.txs[txID] = orphan
		}
	}
	delete(v.st.cycles, id)
	return nil
}

// LockCycles only checks existence: the Store mutex already serializes writers.
func (v *view) LockCycles(_ context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		if _, ok := v.st.cycles[id]; !ok {
			return ledger.ErrCycleNotFound
		}
	}
	return nil
}

func (v *view) InsertTransaction(_ context.Context, t ledger.Transaction) error {
	h := t.Meta()
	if _, ok := v.st.cycles[h.CycleID]; !ok {
		return ledger.ErrCycleNotFound
	}
	v.st.seq++
	h.Seq = v.st.seq
	v.st.txs[h.ID] = ledger.Clone(t)
	return nil
}

func (v *view) ListTransactions(_ context.Context) ([]ledger.Transaction, error) {
	return v.collect(func(ledger.Transaction) bool { return true }), nil
}

func (v *view) ListTransactionsByCycle(_ context.Context, cycleID uuid.UUID) ([]ledger.Transaction, error) {
	if _, ok := v.st.cycles[cycleID]; !ok {
		return nil, ledger.ErrCycleNotFound
	}
	return v.collect(func(t ledger.Transaction) bool { return t.Meta().CycleID == cycleID }), nil
}

func (v *view) LastTransactionInCycle(ctx context.Context, cycleID uuid.UUID) (ledger.Transaction, error) {
	txs, err := v.ListTransactionsByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ledger.ErrTransactionNotFound
	}
	return txs[len(txs)-1], nil
}

func (v *view) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	if _, ok := v.st.txs[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(v.st.txs, id)
	return nil
}

func (v *view) DeleteTransactionsByCycle(_ context.Context, cycleID uuid.UUID) (int64, error) {
	if _, ok := v.st.cycles[cycleID]; !ok {
		return 0, ledger.ErrCycleNotFound
	}
	return v.deleteWhere(func(t ledger.Transaction) bool { return t.Meta().CycleID == cycleID }), nil
}

func (v *view) DeleteSettlement(_ context.Context, settlementID uuid.UUID) (int64, error) {
	n := v.deleteWhere(func(t ledger.Transaction) bool {
		s, ok := t.(*ledger.Settlement)
		return ok && s.SettlementID == settlementID
	})
	if n == 0 {
		return 0, ledger.ErrTransactionNotFound
	}
	return n, nil
}

func (v *view) deleteWhere(match func(ledger.Transaction) bool) int64 {
	var n int64
	for id, t := range v.st.txs {
		if match(t) {
			delete(v.st.txs, id)
			n++
		}
	}
	return n
}

// collect returns chronologically ordered copies of the matching rows with
// the current cycle name filled in.
func (v *view) collect(match func(ledger.Transaction) bool) []ledger.Transaction {
	out := make([]ledger.Transaction, 0, len(v.st.txs))
	for _, t := range v.st.txs {
		if !match(t) {
			continue
		}
		c := ledger.Clone(t)
		c.Meta().CycleName = v.st.cycles[c.Meta().CycleID].cycle.Name
		out = append(out, c)
	}
	return ledger.SortChronological(out)
}
