package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

var seqCounter int64

func header(cycle string, minute int) Header {
	seqCounter++
	at := base.Add(time.Duration(minute) * time.Minute)
	return Header{
		ID:               uuid.New(),
		CycleID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(cycle)),
		CycleName:        cycle,
		OccurredAt:       at,
		CreatedAt:        at,
		UpdatedAt:        at,
		Seq:              seqCounter,
		ReceivedCurrency: CurrencyTRY,
	}
}

func tryBuy(cycle string, minute int, value, received string) *Buy {
	b := &Buy{
		Header:              header(cycle, minute),
		TransactionValue:    d(value),
		TransactionCurrency: CurrencyTRY,
		AmountReceived:      d(received),
	}
	b.EffectiveRateTry = EffectiveRateTry(b.TransactionValue, b.TransactionCurrency, b.USDTRYRateAtBuy, b.AmountReceived, b.CommissionPercent)
	return b
}

// lotBuy opens a lot of units at the given TRY unit cost.
func lotBuy(cycle string, minute int, units, unitCost string) *Buy {
	return tryBuy(cycle, minute, d(units).Mul(d(unitCost)).String(), units)
}

func sellAt(cycle string, minute int, sold, price string) *Sell {
	s := &Sell{
		Header:       header(cycle, minute),
		AmountSold:   d(sold),
		PricePerUnit: nd(price),
	}
	s.AmountReceived = d(sold).Mul(d(price))
	s.EffectiveRateTry = s.PricePerUnit
	return s
}

func deposit(cycle string, minute int, amount string) *DepositCorrection {
	return &DepositCorrection{Header: header(cycle, minute), Amount: d(amount)}
}

func withdraw(cycle string, minute int, amount string) *WithdrawCorrection {
	return &WithdrawCorrection{Header: header(cycle, minute), Amount: d(amount)}
}

func settlementLeg(cycle string, minute int, dir Direction, amount string) *Settlement {
	return &Settlement{Header: header(cycle, minute), SettlementID: uuid.New(), Direction: dir, Amount: d(amount)}
}
