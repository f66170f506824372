package ledger

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

func init() {
	money.AddCurrency(UnitCode, UnitCode+" ", "$1", ".", ",", 2)
}

// FormatAmount renders the absolute value of amount in the display format of
// code, truncated (not rounded) to the currency's fraction digits.
func FormatAmount(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.Abs().Truncate(2).StringFixed(2) + " " + code
	}
	minor := amount.Abs().Shift(int32(cur.Fraction)).IntPart()
	return cur.Formatter().Format(minor)
}

// FormatSigned prefixes FormatAmount with the sign of amount; zero gets none.
func FormatSigned(amount decimal.Decimal, code string) string {
	switch amount.Sign() {
	case 1:
		return "+" + FormatAmount(amount, code)
	case -1:
		return "-" + FormatAmount(amount, code)
	}
	return FormatAmount(amount, code)
}
