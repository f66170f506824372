package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SellPolicy decides whether a SELL may take its cycle below zero.
type SellPolicy string

const (
	SellPolicyPermissive SellPolicy = "permissive" // never balance-checked
	SellPolicyStrict     SellPolicy = "strict"     // checked like a withdrawal
)

func ParseSellPolicy(s string) (SellPolicy, error) {
	switch p := SellPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return SellPolicyPermissive, nil
	case SellPolicyPermissive, SellPolicyStrict:
		return p, nil
	}
	return "", fmt.Errorf("unknown sell balance policy %q", s)
}

// Input is one of BuyInput, SellInput, SettlementInput, DepositInput, WithdrawInput.
// A zero OccurredAt means the time of the write.
type Input interface {
	isInput()
}

type BuyInput struct {
	Cycle               string
	OccurredAt          time.Time
	TransactionValue    decimal.Decimal
	TransactionCurrency ledger.Currency
	USDTRYRateAtBuy     decimal.NullDecimal
	AmountReceived      decimal.Decimal
	CommissionPercent   decimal.NullDecimal
}

type SellInput struct {
	Cycle             string
	OccurredAt        time.Time
	AmountSold        decimal.Decimal
	AmountReceived    decimal.NullDecimal
	PricePerUnit      decimal.NullDecimal
	CommissionPercent decimal.NullDecimal
}

type SettlementInput struct {
	FromCycle  string
	ToCycle    string
	OccurredAt time.Time
	Amount     decimal.Decimal
}

type DepositInput struct {
	Cycle      string
	OccurredAt time.Time
	Amount     decimal.Decimal
}

type WithdrawInput struct {
	Cycle      string
	OccurredAt time.Time
	Amount     decimal.Decimal
}

func (BuyInput) isInput()        {}
func (SellInput) isInput()       {}
func (SettlementInput) isInput() {}
func (DepositInput) isInput()    {}
func (WithdrawInput) isInput()   {}

// TransactionService is the only writer of ledger transactions.
type TransactionService struct {
	repo       ledger.Repository
	logger     *logrus.Entry
	sellPolicy SellPolicy
	now        func() time.Time
}

func NewTransactionService(repo ledger.Repository, sellPolicy SellPolicy, logger *logrus.Entry) *TransactionService {
	return &TransactionService{
		repo:       repo,
		logger:     logger.WithField("component", "transaction_service"),
		sellPolicy: sellPolicy,
		now:        utcNow,
	}
}

// Create dispatches in to the matching operation. Settlements return both legs,
// outflow first; every other input returns a single row.
func (s *TransactionService) Create(ctx context.Context, in Input) ([]ledger.Transaction, error) {
	switch v := in.(type) {
	case BuyInput:
		t, err := s.Buy(ctx, v)
		return one(t, err)
	case SellInput:
		t, err := s.Sell(ctx, v)
		return one(t, err)
	case SettlementInput:
		out, inflow, err := s.Settle(ctx, v)
		if err != nil {
			return nil, err
		}
		return []ledger.Transaction{out, inflow}, nil
	case DepositInput:
		t, err := s.Deposit(ctx, v)
		return one(t, err)
	case WithdrawInput:
		t, err := s.Withdraw(ctx, v)
		return one(t, err)
	}
	return nil, ledger.Validationf("Unsupported transaction type")
}

func one[T ledger.Transaction](t T, err error) ([]ledger.Transaction, error) {
	if err != nil {
		return nil, err
	}
	return []ledger.Transaction{t}, nil
}

// Buy records a purchase of USDT. Buys are never balance-checked.
func (s *TransactionService) Buy(ctx context.Context, in BuyInput) (*ledger.Buy, error) {
	name, err := ledger.NormalizeCycleName(in.Cycle)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("transactionValue", in.TransactionValue); err != nil {
		return nil, err
	}
	if err := requirePositive("amountReceived", in.AmountReceived); err != nil {
		return nil, err
	}
	if !in.TransactionCurrency.Valid() {
		return nil, ledger.Validationf("transactionCurrency must be USD or TRY")
	}
	if in.TransactionCurrency == ledger.CurrencyUSD && !(in.USDTRYRateAtBuy.Valid && in.USDTRYRateAtBuy.Decimal.IsPositive()) {
		return nil, ledger.Validationf("For USD BUY transactions, usdTryRateAtBuy is required")
	}
	if err := validCommission(in.CommissionPercent); err != nil {
		return nil, err
	}

	buy := &ledger.Buy{
		TransactionValue:    in.TransactionValue,
		TransactionCurrency: in.TransactionCurrency,
		AmountReceived:      in.AmountReceived,
	}
	if in.TransactionCurrency == ledger.CurrencyUSD {
		buy.USDTRYRateAtBuy = in.USDTRYRateAtBuy
	}
	buy.CommissionPercent = ledger.DeriveBuyCommission(in.TransactionValue, in.TransactionCurrency, in.AmountReceived, in.CommissionPercent)
	buy.EffectiveRateTry = ledger.EffectiveRateTry(in.TransactionValue, in.TransactionCurrency, buy.USDTRYRateAtBuy, in.AmountReceived, buy.CommissionPercent)

	now := s.now()
	err = s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		cycle, err := repo.EnsureCycle(ctx, name, now)
		if err != nil {
			return err
		}
		buy.Header = newHeader(cycle, in.OccurredAt, now)
		return repo.InsertTransaction(ctx, buy)
	})
	if err != nil {
		return nil, s.failed(err, ledger.KindBuy, name)
	}
	s.recorded(buy)
	return buy, nil
}

// Sell records a sale of USDT for TRY. Under SellPolicyStrict the cycle balance
// must cover AmountSold.
func (s *TransactionService) Sell(ctx context.Context, in SellInput) (*ledger.Sell, error) {
	name, err := ledger.NormalizeCycleName(in.Cycle)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amountSold", in.AmountSold); err != nil {
		return nil, err
	}
	if in.AmountReceived.Valid {
		if err := requirePositive("amountReceived", in.AmountReceived.Decimal); err != nil {
			return nil, err
		}
	}
	if in.PricePerUnit.Valid {
		if err := requirePositive("pricePerUnit", in.PricePerUnit.Decimal); err != nil {
			return nil, err
		}
	}
	if err := validCommission(in.CommissionPercent); err != nil {
		return nil, err
	}
	received, price, err := ledger.SellProceeds(in.AmountSold, in.AmountReceived, in.PricePerUnit, in.CommissionPercent)
	if err != nil {
		return nil, err
	}

	sell := &ledger.Sell{
		AmountSold:        in.AmountSold,
		AmountReceived:    received,
		PricePerUnit:      decimal.NewNullDecimal(price),
		CommissionPercent: in.CommissionPercent,
		EffectiveRateTry:  decimal.NewNullDecimal(price),
	}

	now := s.now()
	err = s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		cycle, err := repo.EnsureCycle(ctx, name, now)
		if err != nil {
			return err
		}
		if s.sellPolicy == SellPolicyStrict {
			if err := requireBalance(ctx, repo, cycle, in.AmountSold, "Sell amount"); err != nil {
				return err
			}
		}
		sell.Header = newHeader(cycle, in.OccurredAt, now)
		return repo.InsertTransaction(ctx, sell)
	})
	if err != nil {
		return nil, s.failed(err, ledger.KindSell, name)
	}
	s.recorded(sell)
	return sell, nil
}

// Settle moves Amount from FromCycle to ToCycle as two linked rows written in
// one store transaction.
func (s *TransactionService) Settle(ctx context.Context, in SettlementInput) (*ledger.Settlement, *ledger.Settlement, error) {
	if strings.TrimSpace(in.FromCycle) == "" || strings.TrimSpace(in.ToCycle) == "" {
		return nil, nil, ledger.Validationf("Source and destination cycles are required")
	}
	from, err := ledger.NormalizeCycleName(in.FromCycle)
	if err != nil {
		return nil, nil, err
	}
	to, err := ledger.NormalizeCycleName(in.ToCycle)
	if err != nil {
		return nil, nil, err
	}
	if from == to {
		return nil, nil, ledger.Validationf("Source and destination cycles must be different")
	}
	if err := requirePositive("amount", in.Amount); err != nil {
		return nil, nil, err
	}

	settlementID := uuid.New()
	out := &ledger.Settlement{SettlementID: settlementID, Direction: ledger.DirectionOut, Amount: in.Amount}
	inflow := &ledger.Settlement{SettlementID: settlementID, Direction: ledger.DirectionIn, Amount: in.Amount}

	now := s.now()
	err = s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		source, destination, err := ensurePair(ctx, repo, from, to, now)
		if err != nil {
			return err
		}
		if err := repo.LockCycles(ctx, source.ID, destination.ID); err != nil {
			return err
		}
		balance, err := cycleBalance(ctx, repo, source.ID)
		if err != nil {
			return err
		}
		if !ledger.Covers(balance, in.Amount) {
			return ledger.InsufficientBalancef("Settlement amount (%s) exceeds source cycle balance (%s)",
				in.Amount.StringFixed(4), balance.StringFixed(4))
		}

		out.Header = newHeader(source, in.OccurredAt, now)
		out.CounterpartCycleID = destination.ID
		inflow.Header = newHeader(destination, out.OccurredAt, now)
		inflow.CounterpartCycleID = source.ID
		if err := repo.InsertTransaction(ctx, out); err != nil {
			return err
		}
		return repo.InsertTransaction(ctx, inflow)
	})
	if err != nil {
		return nil, nil, s.failed(err, ledger.KindCycleSettlement, from)
	}
	s.logger.WithFields(logrus.Fields{
		"settlement_id": settlementID,
		"from":          from,
		"to":            to,
		"amount":        in.Amount.String(),
	}).Info("Settlement recorded")
	return out, inflow, nil
}

// Deposit records a manual balance increase. It creates no cost-basis lot.
func (s *TransactionService) Deposit(ctx context.Context, in DepositInput) (*ledger.DepositCorrection, error) {
	name, err := ledger.NormalizeCycleName(in.Cycle)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", in.Amount); err != nil {
		return nil, err
	}

	deposit := &ledger.DepositCorrection{Amount: in.Amount}
	now := s.now()
	err = s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		cycle, err := repo.EnsureCycle(ctx, name, now)
		if err != nil {
			return err
		}
		deposit.Header = newHeader(cycle, in.OccurredAt, now)
		return repo.InsertTransaction(ctx, deposit)
	})
	if err != nil {
		return nil, s.failed(err, ledger.KindDepositBalanceCorrection, name)
	}
	s.recorded(deposit)
	return deposit, nil
}

// Withdraw records a manual balance decrease the cycle balance must cover.
func (s *TransactionService) Withdraw(ctx context.Context, in WithdrawInput) (*ledger.WithdrawCorrection, error) {
	name, err := ledger.NormalizeCycleName(in.Cycle)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", in.Amount); err != nil {
		return nil, err
	}

	withdraw := &ledger.WithdrawCorrection{Amount: in.Amount}
	now := s.now()
	err = s.repo.WithinTx(ctx, func(repo ledger.Repository) error {
		cycle, err := repo.EnsureCycle(ctx, name, now)
		if err != nil {
			return err
		}
		if err := requireBalance(ctx, repo, cycle, in.Amount, "Withdraw amount"); err != nil {
			return err
		}
		withdraw.Header = newHeader(cycle, in.OccurredAt, now)
		return repo.InsertTransaction(ctx, withdraw)
	})
	if err != nil {
		return nil, s.failed(err, ledger.KindWithdrawBalanceCorrection, name)
	}
	s.recorded(withdraw)
	return withdraw, nil
}

func newHeader(cycle *ledger.Cycle, occurredAt, now time.Time) ledger.Header {
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return ledger.Header{
		ID:               uuid.New(),
		CycleID:          cycle.ID,
		CycleName:        cycle.Name,
		OccurredAt:       occurredAt.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
		ReceivedCurrency: ledger.CurrencyTRY,
	}
}

// ensurePair ensures both cycles in name order, so concurrent settlements in
// opposite directions create or wait on cycle rows in the same order.
func ensurePair(ctx context.Context, repo ledger.Repository, from, to string, now time.Time) (*ledger.Cycle, *ledger.Cycle, error) {
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	a, err := repo.EnsureCycle(ctx, first, now)
	if err != nil {
		return nil, nil, err
	}
	b, err := repo.EnsureCycle(ctx, second, now)
	if err != nil {
		return nil, nil, err
	}
	if a.Name == from {
		return a, b, nil
	}
	return b, a, nil
}

// requireBalance locks the cycle and checks its balance covers amount.
func requireBalance(ctx context.Context, repo ledger.Repository, cycle *ledger.Cycle, amount decimal.Decimal, what string) error {
	if err := repo.LockCycles(ctx, cycle.ID); err != nil {
		return err
	}
	balance, err := cycleBalance(ctx, repo, cycle.ID)
	if err != nil {
		return err
	}
	if !ledger.Covers(balance, amount) {
		return ledger.InsufficientBalancef("%s (%s) exceeds cycle balance (%s)", what, amount.StringFixed(4), balance.StringFixed(4))
	}
	return nil
}

func cycleBalance(ctx context.Context, repo ledger.Repository, cycleID uuid.UUID) (decimal.Decimal, error) {
	txs, err := repo.ListTransactionsByCycle(ctx, cycleID)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.BalanceOf(txs), nil
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return ledger.Validationf("%s must be greater than 0", field)
	}
	return nil
}

func validCommission(c decimal.NullDecimal) error {
	if !c.Valid {
		return nil
	}
	if c.Decimal.IsNegative() || c.Decimal.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return ledger.Validationf("commissionPercent must be between 0 and 100")
	}
	return nil
}

func (s *TransactionService) recorded(t ledger.Transaction) {
	h := t.Meta()
	s.logger.WithFields(logrus.Fields{
		"transaction_id": h.ID,
		"cycle_id":       h.CycleID,
		"type":           t.Kind(),
		"unit_delta":     t.UnitDelta().String(),
	}).Info("Transaction recorded")
}

// failed logs err at Warn for rejected business rules and at Error otherwise.
func (s *TransactionService) failed(err error, kind ledger.Kind, cycle string) error {
	log := s.logger.WithError(err).WithFields(logrus.Fields{"type": kind, "cycle": cycle})
	if isBusinessError(err) {
		log.Warn("Transaction rejected")
		return err
	}
	log.Error("Transaction write failed")
	return fmt.Errorf("failed to record %s transaction: %w", kind, err)
}
