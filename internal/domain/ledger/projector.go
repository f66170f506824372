package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Row is one line of the tradebook table.
type Row struct {
	No                 int
	ID                 uuid.UUID
	Cycle              string
	OccurredAt         time.Time
	Type               Kind
	Direction          Direction // settlements only
	PaidLabel          string
	ReceivedLabel      string
	UnitPriceTry       decimal.NullDecimal
	CommissionPercent  decimal.NullDecimal
	UsdtDelta          decimal.Decimal
	TryDelta           decimal.Decimal
	RunningUsdtBalance decimal.Decimal
}

// Project filters txs by cycleName (all cycles when empty), orders them
// chronologically and derives display rows with a running USDT balance.
func Project(txs []Transaction, cycleName string) []Row {
	ordered := SortChronological(FilterByCycleName(txs, cycleName))
	rows := make([]Row, 0, len(ordered))
	running := decimal.Zero

	for i, t := range ordered {
		h := t.Meta()
		row := Row{
			No:         i + 1,
			ID:         h.ID,
			Cycle:      h.CycleName,
			OccurredAt: h.OccurredAt,
			Type:       t.Kind(),
			UsdtDelta:  t.UnitDelta(),
			TryDelta:   decimal.Zero,
		}

		switch v := t.(type) {
		case *Buy:
			row.PaidLabel = "-" + FormatAmount(v.TransactionValue, string(v.TransactionCurrency))
			row.ReceivedLabel = "+" + FormatAmount(v.AmountReceived, UnitCode)
			row.UnitPriceTry = v.EffectiveRateTry
			row.CommissionPercent = v.CommissionPercent
			if v.TransactionCurrency == CurrencyTRY {
				row.TryDelta = v.TransactionValue.Neg()
			}
		case *Sell:
			row.PaidLabel = "-" + FormatAmount(v.AmountSold, UnitCode)
			row.ReceivedLabel = "+" + FormatAmount(v.AmountReceived, string(CurrencyTRY))
			row.UnitPriceTry = v.PricePerUnit
			if !row.UnitPriceTry.Valid {
				row.UnitPriceTry = v.EffectiveRateTry
			}
			row.CommissionPercent = v.CommissionPercent
			row.TryDelta = v.AmountReceived
		case *Settlement:
			row.Direction = v.Direction
			if v.Direction == DirectionOut {
				row.PaidLabel = "-" + FormatAmount(v.Amount, UnitCode)
			} else {
				row.ReceivedLabel = "+" + FormatAmount(v.Amount, UnitCode)
			}
		case *DepositCorrection:
			row.ReceivedLabel = "+" + FormatAmount(v.Amount, UnitCode)
		case *WithdrawCorrection:
			row.PaidLabel = "-" + FormatAmount(v.Amount, UnitCode)
		}

		running = running.Add(row.UsdtDelta)
		row.RunningUsdtBalance = running
		rows = append(rows, row)
	}
	return rows
}
