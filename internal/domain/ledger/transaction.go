// internal/domain/ledger/transaction.go
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Header holds the fields shared by every row in the 'trade_transactions' table.
type Header struct {
	ID               uuid.UUID
	CycleID          uuid.UUID
	CycleName        string
	OccurredAt       time.Time // caller supplied, or the write time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Seq              int64 // insertion order, assigned by the store
	ReceivedCurrency Currency
}

// Meta gives access to the common fields of any variant.
func (h *Header) Meta() *Header { return h }

// Transaction is the closed set of ledger rows: *Buy, *Sell, *Settlement,
// *DepositCorrection and *WithdrawCorrection.
type Transaction interface {
	Meta() *Header
	Kind() Kind
	// UnitDelta is the signed change the row applies to its cycle's USDT balance.
	UnitDelta() decimal.Decimal
	isTransaction()
}

// Buy acquires AmountReceived USDT at a TRY-denominated effective unit cost.
type Buy struct {
	Header
	TransactionValue    decimal.Decimal
	TransactionCurrency Currency
	USDTRYRateAtBuy     decimal.NullDecimal // required when TransactionCurrency is USD
	AmountReceived      decimal.Decimal     // USDT
	CommissionPercent   decimal.NullDecimal
	EffectiveRateTry    decimal.NullDecimal
}

// Sell disposes AmountSold USDT for AmountReceived TRY.
type Sell struct {
	Header
	AmountSold        decimal.Decimal     // USDT
	AmountReceived    decimal.Decimal     // TRY
	PricePerUnit      decimal.NullDecimal // TRY per net USDT sold
	CommissionPercent decimal.NullDecimal
	EffectiveRateTry  decimal.NullDecimal
}

// Settlement is one leg of a balance transfer between two cycles. Both legs
// share SettlementID and OccurredAt.
type Settlement struct {
	Header
	SettlementID       uuid.UUID
	Direction          Direction
	CounterpartCycleID uuid.UUID
	Amount             decimal.Decimal
}

// DepositCorrection manually increases a cycle balance. It creates no cost-basis lot.
type DepositCorrection struct {
	Header
	Amount decimal.Decimal
}

// WithdrawCorrection manually decreases a cycle balance.
type WithdrawCorrection struct {
	Header
	Amount decimal.Decimal
}

func (Buy) Kind() Kind                { return KindBuy }
func (Sell) Kind() Kind               { return KindSell }
func (Settlement) Kind() Kind         { return KindCycleSettlement }
func (DepositCorrection) Kind() Kind  { return KindDepositBalanceCorrection }
func (WithdrawCorrection) Kind() Kind { return KindWithdrawBalanceCorrection }

func (b Buy) UnitDelta() decimal.Decimal                { return b.AmountReceived }
func (s Sell) UnitDelta() decimal.Decimal               { return s.AmountSold.Neg() }
func (d DepositCorrection) UnitDelta() decimal.Decimal  { return d.Amount }
func (w WithdrawCorrection) UnitDelta() decimal.Decimal { return w.Amount.Neg() }

func (s Settlement) UnitDelta() decimal.Decimal {
	if s.Direction == DirectionOut {
		return s.Amount.Neg()
	}
	return s.Amount
}

func (Buy) isTransaction()                {}
func (Sell) isTransaction()               {}
func (Settlement) isTransaction()         {}
func (DepositCorrection) isTransaction()  {}
func (WithdrawCorrection) isTransaction() {}

// Clone returns a deep copy of t so stores can hand out rows without aliasing.
func Clone(t Transaction) Transaction {
	switch v := t.(type) {
	case *Buy:
		c := *v
		return &c
	case *Sell:
		c := *v
		return &c
	case *Settlement:
		c := *v
		return &c
	case *DepositCorrection:
		c := *v
		return &c
	case *WithdrawCorrection:
		c := *v
		return &c
	}
	return nil
}
