package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stats are the headline numbers shown for a cycle (or for all cycles).
type Stats struct {
	Balance             decimal.Decimal // USDT
	BoughtUsdt          decimal.Decimal
	SoldUsdt            decimal.Decimal
	ReceivedTry         decimal.Decimal
	AverageSellPriceTry decimal.Decimal
	RealizedProfitTry   decimal.Decimal
	TransactionCount    int
	OpenUnits           decimal.Decimal // USDT left in FIFO lots
	UnmatchedUnits      decimal.Decimal // USDT sold without a lot to match
	Warnings            []Warning
}

// Strict fails when the realized profit relies on an approximation.
func (s Stats) Strict() error {
	return warningsError(s.Warnings)
}

// Summarize computes Stats over txs.
func Summarize(txs []Transaction) Stats {
	stats := Stats{
		Balance:             BalanceOf(txs),
		BoughtUsdt:          decimal.Zero,
		SoldUsdt:            decimal.Zero,
		ReceivedTry:         decimal.Zero,
		AverageSellPriceTry: decimal.Zero,
		TransactionCount:    len(txs),
	}
	for _, t := range txs {
		switch v := t.(type) {
		case *Buy:
			stats.BoughtUsdt = stats.BoughtUsdt.Add(v.AmountReceived)
		case *Sell:
			stats.SoldUsdt = stats.SoldUsdt.Add(v.AmountSold)
			stats.ReceivedTry = stats.ReceivedTry.Add(v.AmountReceived)
		}
	}
	if stats.SoldUsdt.IsPositive() {
		stats.AverageSellPriceTry = stats.ReceivedTry.Div(stats.SoldUsdt)
	}

	match := Match(txs)
	stats.RealizedProfitTry = match.RealizedProfit
	stats.OpenUnits = match.OpenUnits()
	stats.UnmatchedUnits = match.UnmatchedUnits
	stats.Warnings = match.Warnings
	return stats
}

// InsightPoint is one step of the chart series, taken right after a transaction.
type InsightPoint struct {
	TransactionID    uuid.UUID
	OccurredAt       time.Time
	Type             Kind
	UsdtBalance      decimal.Decimal
	SellRateTry      decimal.NullDecimal // SELL rows only
	CumulativeProfit decimal.Decimal
}

// Insights returns the running balance, sell rate and cumulative profit series.
func Insights(txs []Transaction) []InsightPoint {
	ordered := SortChronological(txs)
	series := Match(ordered).Series
	points := make([]InsightPoint, 0, len(ordered))
	balance := decimal.Zero

	for i, t := range ordered {
		balance = balance.Add(t.UnitDelta())
		point := InsightPoint{
			TransactionID:    t.Meta().ID,
			OccurredAt:       t.Meta().OccurredAt,
			Type:             t.Kind(),
			UsdtBalance:      balance,
			CumulativeProfit: series[i].CumulativeProfit,
		}
		if s, ok := t.(*Sell); ok {
			if rate, ok := sellRate(s); ok {
				point.SellRateTry = decimal.NewNullDecimal(rate)
			}
		}
		points = append(points, point)
	}
	return points
}
