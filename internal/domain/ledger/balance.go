package ledger

import "github.com/shopspring/decimal"

// BalanceOf is a cycle's USDT balance: the sum of every row's UnitDelta.
// Order does not matter and an empty list yields zero.
func BalanceOf(txs []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range txs {
		balance = balance.Add(t.UnitDelta())
	}
	return balance
}

// Covers reports whether balance can absorb an outflow of amount, within BalanceEpsilon.
func Covers(balance, amount decimal.Decimal) bool {
	return !amount.GreaterThan(balance.Add(BalanceEpsilon))
}
