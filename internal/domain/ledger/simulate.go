package ledger

import "github.com/shopspring/decimal"

// MaxSimulatedLoops bounds LoopParams.Loops.
const MaxSimulatedLoops = 1000

// LoopParams describe a what-if buy/sell loop. Rates are TRY per unit of
// foreign currency and percentages are given as 1 for 1%.
type LoopParams struct {
	StartingCapitalUsd decimal.Decimal
	ExchangeRate       decimal.Decimal // USD/TRY
	BankTaxPercent     decimal.NullDecimal
	BuyCommission      decimal.Decimal // seller commission on the USDT buy
	SellRate           decimal.Decimal // TRY received per USDT
	Loops              int
	Compound           bool
}

// LoopResult is one row of a simulation.
type LoopResult struct {
	Loop        int
	BuyUsd      decimal.Decimal
	BuyRateTry  decimal.Decimal // exchange rate including bank tax
	UsdtBought  decimal.Decimal
	SellTry     decimal.Decimal
	SellRateTry decimal.Decimal
	ProfitTry   decimal.Decimal
	ProfitUsd   decimal.Decimal

	// Change against the previous loop's profit. Unset on the first loop, and
	// the percentage is unset when the previous profit was zero.
	ChangeTry     decimal.NullDecimal
	ChangePercent decimal.NullDecimal
}

// LoopTotals sum the loops. FinalCapitalUsd is what the last loop leaves in
// USD, with withdrawn profits added back when not compounding.
type LoopTotals struct {
	BuyUsd          decimal.Decimal
	UsdtBought      decimal.Decimal
	SellTry         decimal.Decimal
	ProfitTry       decimal.Decimal
	ProfitUsd       decimal.Decimal
	FinalCapitalUsd decimal.Decimal
}

type Simulation struct {
	Loops  []LoopResult
	Totals LoopTotals
}

func (p LoopParams) validate() error {
	switch {
	case !p.StartingCapitalUsd.IsPositive():
		return Validationf("Starting capital must be greater than 0")
	case !p.ExchangeRate.IsPositive():
		return Validationf("Exchange rate must be greater than 0")
	case !p.SellRate.IsPositive():
		return Validationf("Sell rate must be greater than 0")
	case p.BuyCommission.IsNegative() || !p.BuyCommission.LessThan(hundred):
		return Validationf("Buy commission must be between 0 and 100 percent")
	case p.BankTaxPercent.Valid && p.BankTaxPercent.Decimal.IsNegative():
		return Validationf("Bank tax cannot be negative")
	case p.Loops < 1 || p.Loops > MaxSimulatedLoops:
		return Validationf("Loop count must be between 1 and %d", MaxSimulatedLoops)
	}
	return nil
}

// SimulateLoops projects p.Loops rounds of: pay USD (bought at the exchange
// rate plus bank tax) for USDT less the seller commission, then sell all of it
// at the sell rate. With Compound the whole TRY proceeds are converted back
// into the next loop's capital, otherwise every loop restarts from the
// starting capital.
func SimulateLoops(p LoopParams) (*Simulation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	buyRate := p.ExchangeRate
	if p.BankTaxPercent.Valid {
		buyRate = buyRate.Mul(one.Add(p.BankTaxPercent.Decimal.Div(hundred)))
	}
	keep := one.Sub(p.BuyCommission.Div(hundred))

	sim := &Simulation{Loops: make([]LoopResult, 0, p.Loops)}
	totals := LoopTotals{
		BuyUsd:     decimal.Zero,
		UsdtBought: decimal.Zero,
		SellTry:    decimal.Zero,
		ProfitTry:  decimal.Zero,
		ProfitUsd:  decimal.Zero,
	}

	capital := p.StartingCapitalUsd
	for i := 1; i <= p.Loops; i++ {
		usdt := capital.Mul(keep)
		sellTry := usdt.Mul(p.SellRate)
		profitTry := sellTry.Sub(capital.Mul(buyRate))
		row := LoopResult{
			Loop:        i,
			BuyUsd:      capital,
			BuyRateTry:  buyRate,
			UsdtBought:  usdt,
			SellTry:     sellTry,
			SellRateTry: p.SellRate,
			ProfitTry:   profitTry,
			ProfitUsd:   profitTry.Div(p.ExchangeRate),
		}
		if n := len(sim.Loops); n > 0 {
			prev := sim.Loops[n-1].ProfitTry
			change := profitTry.Sub(prev)
			row.ChangeTry = decimal.NewNullDecimal(change)
			if !prev.IsZero() {
				row.ChangePercent = decimal.NewNullDecimal(change.Div(prev).Mul(hundred))
			}
		}
		sim.Loops = append(sim.Loops, row)

		totals.BuyUsd = totals.BuyUsd.Add(row.BuyUsd)
		totals.UsdtBought = totals.UsdtBought.Add(usdt)
		totals.SellTry = totals.SellTry.Add(sellTry)
		totals.ProfitTry = totals.ProfitTry.Add(profitTry)
		totals.ProfitUsd = totals.ProfitUsd.Add(row.ProfitUsd)

		if p.Compound {
			capital = sellTry.Div(buyRate)
		}
	}
	totals.FinalCapitalUsd = capital
	if !p.Compound {
		totals.FinalCapitalUsd = capital.Add(totals.ProfitTry.Div(buyRate))
	}
	sim.Totals = totals
	return sim, nil
}
