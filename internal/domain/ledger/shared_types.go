// internal/domain/ledger/shared_types.go
package ledger

// Kind discriminates the transaction variants stored in a cycle.
type Kind string

const (
	KindBuy                       Kind = "BUY"
	KindSell                      Kind = "SELL"
	KindCycleSettlement           Kind = "CYCLE_SETTLEMENT"
	KindDepositBalanceCorrection  Kind = "DEPOSIT_BALANCE_CORRECTION"
	KindWithdrawBalanceCorrection Kind = "WITHDRAW_BALANCE_CORRECTION"
)

// Valid reports whether k is one of the known transaction kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBuy, KindSell, KindCycleSettlement, KindDepositBalanceCorrection, KindWithdrawBalanceCorrection:
		return true
	}
	return false
}

// Currency is a fiat currency a BUY can be paid in, or the currency proceeds are received in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyTRY Currency = "TRY"
)

// UnitCode is the synthetic unit every cycle balance is kept in.
const UnitCode = "USDT"

func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyTRY
}

// Direction tells which leg of a cycle settlement a row is.
type Direction string

const (
	DirectionOut Direction = "OUT" // source cycle, balance decreases
	DirectionIn  Direction = "IN"  // destination cycle, balance increases
)
