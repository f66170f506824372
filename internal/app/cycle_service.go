package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CycleService manages the named cycles that partition the ledger.
type CycleService struct {
	repo   ledger.Repository
	logger *logrus.Entry
	now    func() time.Time
}

func NewCycleService(repo ledger.Repository, logger *logrus.Entry) *CycleService {
	return &CycleService{
		repo:   repo,
		logger: logger.WithField("component", "cycle_service"),
		now:    utcNow,
	}
}

func utcNow() time.Time { return time.Now().UTC() }

// CreateOrGetCycle returns the cycle named name, creating it if needed.
// Repeated calls with the same trimmed name return the same cycle.
func (s *CycleService) CreateOrGetCycle(ctx context.Context, name string) (*ledger.Cycle, error) {
	normalized, err := ledger.NormalizeCycleName(name)
	if err != nil {
		return nil, err
	}
	cycle, err := s.repo.EnsureCycle(ctx, normalized, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure cycle %q: %w", normalized, err)
	}
	s.logger.WithFields(logrus.Fields{"cycle_id": cycle.ID, "cycle": cycle.Name}).Debug("Cycle ensured")
	return cycle, nil
}

// RenameCycle changes the name of cycle id. A name already used by another
// cycle fails with ErrDuplicateCycleName.
func (s *CycleService) RenameCycle(ctx context.Context, id uuid.UUID, name string) (*ledger.Cycle, error) {
	normalized, err := ledger.NormalizeCycleName(name)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"cycle_id": id, "new_name": normalized})

	var renamed *ledger.Cycle
	err = s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		if _, err := repo.GetCycleByID(ctx, id); err != nil {
			return err
		}
		other, err := repo.GetCycleByName(ctx, normalized)
		switch {
		case err == nil && other.ID != id:
			return ledger.ErrDuplicateCycleName
		case err != nil && !errors.Is(err, ledger.ErrNotFound):
			return err
		}
		renamed, err = repo.RenameCycle(ctx, id, normalized, s.now())
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Cycle rename rejected")
		return nil, err
	}
	log.Info("Cycle renamed")
	return renamed, nil
}

// DeleteCycle removes the cycle and all of its transactions in one store transaction.
func (s *CycleService) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	var removed int64
	err := s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		if err := repo.LockCycles(ctx, id); err != nil {
			return err
		}
		var err error
		if removed, err = repo.DeleteTransactionsByCycle(ctx, id); err != nil {
			return err
		}
		return repo.DeleteCycle(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"cycle_id": id, "deleted_transactions": removed}).Info("Cycle deleted")
	return nil
}

// ResetCycle deletes every transaction of the cycle and keeps the cycle itself.
func (s *CycleService) ResetCycle(ctx context.Context, id uuid.UUID) (int64, error) {
	var removed int64
	err := s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		if err := repo.LockCycles(ctx, id); err != nil {
			return err
		}
		var err error
		removed, err = repo.DeleteTransactionsByCycle(ctx, id)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"cycle_id": id, "deleted_transactions": removed}).Info("Cycle reset")
	return removed, nil
}

// UndoLastTransaction deletes the latest transaction of the cycle by
// (occurredAt, createdAt, seq) and returns its id. Undoing a settlement leg
// removes both legs, which takes the amount back out of the destination
// cycle, so the destination must still hold it whichever leg is undone.
func (s *CycleService) UndoLastTransaction(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		if _, err := repo.GetCycleByID(ctx, id); err != nil {
			return err
		}
		peek, err := repo.LastTransactionInCycle(ctx, id)
		if err != nil {
			return err
		}
		// Both cycles of a settlement are locked in one ordered call.
		if err := repo.LockCycles(ctx, undoScope(id, peek)...); err != nil {
			return err
		}
		last, err := repo.LastTransactionInCycle(ctx, id)
		if err != nil {
			return err
		}
		if last.Meta().ID != peek.Meta().ID {
			return ledger.ErrCycleChanged
		}
		deleted = last.Meta().ID

		leg, ok := last.(*ledger.Settlement)
		if !ok {
			return repo.DeleteTransaction(ctx, deleted)
		}
		if destination := settlementDestination(leg); destination != uuid.Nil {
			txs, err := repo.ListTransactionsByCycle(ctx, destination)
			if err != nil {
				return err
			}
			balance := ledger.BalanceOf(txs)
			if !ledger.Covers(balance, leg.Amount) {
				return ledger.InsufficientBalancef("Destination cycle balance (%s) no longer covers the settled amount (%s)",
					balance.StringFixed(4), leg.Amount.StringFixed(4))
			}
		}
		_, err = repo.DeleteSettlement(ctx, leg.SettlementID)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.WithFields(logrus.Fields{"cycle_id": id, "transaction_id": deleted}).Info("Last transaction undone")
	return deleted, nil
}

// undoScope lists the cycles an undo of last touches.
func undoScope(id uuid.UUID, last ledger.Transaction) []uuid.UUID {
	leg, ok := last.(*ledger.Settlement)
	if !ok || leg.CounterpartCycleID == uuid.Nil {
		return []uuid.UUID{id}
	}
	return []uuid.UUID{id, leg.CounterpartCycleID}
}

// settlementDestination is the cycle that received the settled amount. It is
// uuid.Nil when that cycle has been deleted.
func settlementDestination(leg *ledger.Settlement) uuid.UUID {
	if leg.Direction == ledger.DirectionIn {
		return leg.CycleID
	}
	return leg.CounterpartCycleID
}
