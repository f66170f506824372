package ledger

import (
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	// BalanceEpsilon is the tolerance used when an outflow is compared with a balance.
	BalanceEpsilon = decimal.New(1, -12)
)

// GrossUnits backs out a commission that was already netted out of received.
// Commissions outside (0, 100) percent leave received unchanged.
func GrossUnits(received decimal.Decimal, commissionPercent decimal.NullDecimal) decimal.Decimal {
	if !commissionPercent.Valid {
		return received
	}
	ratio := commissionPercent.Decimal.Div(hundred)
	if ratio.IsPositive() && ratio.LessThan(one) {
		return received.Div(one.Sub(ratio))
	}
	return received
}

// DeriveBuyCommission returns supplied when present. Otherwise USD buys get the
// spread between paid dollars and received USDT as a percentage, TRY buys get none.
func DeriveBuyCommission(value decimal.Decimal, currency Currency, received decimal.Decimal, supplied decimal.NullDecimal) decimal.NullDecimal {
	if supplied.Valid {
		return supplied
	}
	if currency == CurrencyUSD && value.IsPositive() {
		return decimal.NewNullDecimal(value.Sub(received).Div(value).Mul(hundred))
	}
	return decimal.NullDecimal{}
}

// EffectiveRateTry is the TRY cost of one gross USDT bought. It is invalid when
// the inputs do not allow a positive rate, e.g. a USD buy without an exchange rate.
func EffectiveRateTry(value decimal.Decimal, currency Currency, usdTryRate decimal.NullDecimal, received decimal.Decimal, commissionPercent decimal.NullDecimal) decimal.NullDecimal {
	gross := GrossUnits(received, commissionPercent)
	if !gross.IsPositive() || !value.IsPositive() {
		return decimal.NullDecimal{}
	}
	switch currency {
	case CurrencyTRY:
		return decimal.NewNullDecimal(value.Div(gross))
	case CurrencyUSD:
		if usdTryRate.Valid && usdTryRate.Decimal.IsPositive() {
			return decimal.NewNullDecimal(value.Mul(usdTryRate.Decimal).Div(gross))
		}
	}
	return decimal.NullDecimal{}
}

// NetSoldUnits is amountSold after the sell commission.
func NetSoldUnits(amountSold decimal.Decimal, commissionPercent decimal.NullDecimal) decimal.Decimal {
	if !commissionPercent.Valid {
		return amountSold
	}
	return amountSold.Mul(one.Sub(commissionPercent.Decimal.Div(hundred)))
}

// SellProceeds resolves amountReceived and pricePerUnit for a SELL. Whichever is
// supplied is kept as is and the missing one is derived from the net sold units.
func SellProceeds(amountSold decimal.Decimal, received, price, commissionPercent decimal.NullDecimal) (decimal.Decimal, decimal.Decimal, error) {
	if !received.Valid && !price.Valid {
		return decimal.Zero, decimal.Zero, Validationf("For SELL transactions, amountReceived or pricePerUnit must be provided")
	}
	net := NetSoldUnits(amountSold, commissionPercent)
	if !net.IsPositive() {
		return decimal.Zero, decimal.Zero, Validationf("Net sold amount must be greater than 0")
	}

	amountReceived := received.Decimal
	if !received.Valid {
		amountReceived = price.Decimal.Mul(net)
	}
	pricePerUnit := price.Decimal
	if !price.Valid {
		pricePerUnit = amountReceived.Div(net)
	}
	return amountReceived, pricePerUnit, nil
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}
