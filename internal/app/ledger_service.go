package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CycleSummary is the headline view of one cycle.
type CycleSummary struct {
	Cycle *ledger.Cycle
	ledger.Stats
}

// LedgerService is the read side. Every figure is replayed from the stored rows.
type LedgerService struct {
	repo   ledger.Repository
	logger *logrus.Entry
}

func NewLedgerService(repo ledger.Repository, logger *logrus.Entry) *LedgerService {
	return &LedgerService{
		repo:   repo,
		logger: logger.WithField("component", "ledger_service"),
	}
}

func (s *LedgerService) ListCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	cycles, err := s.repo.ListCycles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	return cycles, nil
}

// ListTransactions returns the rows of every cycle in chronological order.
func (s *LedgerService) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) CycleSummary(ctx context.Context, cycleID uuid.UUID) (*CycleSummary, error) {
	cycle, err := s.repo.GetCycleByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactionsByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of cycle %s: %w", cycle.ID, err)
	}
	return s.summarize(cycle, txs), nil
}

// CycleSummaryByName resolves the cycle by its trimmed name.
func (s *LedgerService) CycleSummaryByName(ctx context.Context, name string) (*CycleSummary, error) {
	cycle, err := s.cycleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.CycleSummary(ctx, cycle.ID)
}

// Summaries returns one summary per cycle, most profitable first. Cycles with
// equal profit keep their creation order.
func (s *LedgerService) Summaries(ctx context.Context) ([]*CycleSummary, error) {
	cycles, err := s.ListCycles(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	byCycle := make(map[uuid.UUID][]ledger.Transaction, len(cycles))
	for _, t := range txs {
		id := t.Meta().CycleID
		byCycle[id] = append(byCycle[id], t)
	}
	summaries := make([]*CycleSummary, 0, len(cycles))
	for _, c := range cycles {
		summaries = append(summaries, s.summarize(c, byCycle[c.ID]))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].RealizedProfitTry.GreaterThan(summaries[j].RealizedProfitTry)
	})
	return summaries, nil
}

// Ledger projects the rows of cycleName, or of every cycle when cycleName is blank.
func (s *LedgerService) Ledger(ctx context.Context, cycleName string) ([]ledger.Row, error) {
	txs, err := s.scope(ctx, cycleName)
	if err != nil {
		return nil, err
	}
	return ledger.Project(txs, ""), nil
}

// Insights returns the chart series of cycleName, or of every cycle when blank.
func (s *LedgerService) Insights(ctx context.Context, cycleName string) ([]ledger.InsightPoint, error) {
	txs, err := s.scope(ctx, cycleName)
	if err != nil {
		return nil, err
	}
	return ledger.Insights(txs), nil
}

func (s *LedgerService) scope(ctx context.Context, cycleName string) ([]ledger.Transaction, error) {
	if strings.TrimSpace(cycleName) == "" {
		return s.ListTransactions(ctx)
	}
	cycle, err := s.cycleByName(ctx, cycleName)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactionsByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of cycle %s: %w", cycle.ID, err)
	}
	return txs, nil
}

func (s *LedgerService) cycleByName(ctx context.Context, name string) (*ledger.Cycle, error) {
	normalized, err := ledger.NormalizeCycleName(name)
	if err != nil {
		return nil, err
	}
	return s.repo.GetCycleByName(ctx, normalized)
}

func (s *LedgerService) summarize(cycle *ledger.Cycle, txs []ledger.Transaction) *CycleSummary {
	summary := &CycleSummary{Cycle: cycle, Stats: ledger.Summarize(txs)}
	if len(summary.Warnings) > 0 {
		s.logger.WithFields(logrus.Fields{
			"cycle_id": cycle.ID,
			"warnings": len(summary.Warnings),
		}).Debug("Cost-basis matching approximated")
	}
	return summary
}

// RequireExact fails on the first summary whose realized profit relies on a
// cost-basis approximation.
func RequireExact(summaries ...*CycleSummary) error {
	for _, sum := range summaries {
		if err := sum.Strict(); err != nil {
			return ledger.Validationf("Cycle %q: %s", sum.Cycle.Name, err)
		}
	}
	return nil
}

func isBusinessError(err error) bool {
	var e *ledger.Error
	return errors.As(err, &e)
}
