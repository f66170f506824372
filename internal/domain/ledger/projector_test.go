package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_RunningBalanceAndDeltas(t *testing.T) {
	buy := tryBuy("C1", 0, "1000", "20")
	sell := sellAt("C1", 1, "10", "55")
	dep := deposit("C1", 2, "5")
	out := settlementLeg("C1", 3, DirectionOut, "3")
	other := deposit("C2", 4, "100")

	rows := Project([]Transaction{out, other, dep, sell, buy}, "C1")
	require.Len(t, rows, 4)

	assert.Equal(t, buy.ID, rows[0].ID)
	assert.Equal(t, 1, rows[0].No)
	assert.Equal(t, KindBuy, rows[0].Type)
	assert.Contains(t, rows[0].PaidLabel, "₺")
	assert.Equal(t, "+USDT 20.00", rows[0].ReceivedLabel)
	assert.True(t, rows[0].TryDelta.Equal(d("-1000")))
	assert.True(t, rows[0].UnitPriceTry.Decimal.Equal(d("50")))

	assert.Equal(t, "-USDT 10.00", rows[1].PaidLabel)
	assert.True(t, rows[1].TryDelta.Equal(d("550")))
	assert.True(t, rows[1].UnitPriceTry.Decimal.Equal(d("55")))

	assert.Equal(t, "+USDT 5.00", rows[2].ReceivedLabel)
	assert.Empty(t, rows[2].PaidLabel)

	assert.Equal(t, DirectionOut, rows[3].Direction)
	assert.Equal(t, "-USDT 3.00", rows[3].PaidLabel)

	expected := []string{"20", "10", "15", "12"}
	for i, want := range expected {
		assert.True(t, rows[i].RunningUsdtBalance.Equal(d(want)), "row %d: got %s want %s", i, rows[i].RunningUsdtBalance, want)
	}
}

func TestProject_AllCycles(t *testing.T) {
	rows := Project([]Transaction{deposit("B", 1, "2"), deposit("A", 0, "1")}, "")
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Cycle)
	assert.Equal(t, "B", rows[1].Cycle)
	assert.True(t, rows[1].RunningUsdtBalance.Equal(d("3")))
}

func TestProject_USDBuyHasNoTryDelta(t *testing.T) {
	buy := &Buy{
		Header:              header("C1", 0),
		TransactionValue:    d("100"),
		TransactionCurrency: CurrencyUSD,
		USDTRYRateAtBuy:     nd("30"),
		AmountReceived:      d("99"),
	}
	rows := Project([]Transaction{buy}, "")
	require.Len(t, rows, 1)
	assert.Equal(t, "-$100.00", rows[0].PaidLabel)
	assert.True(t, rows[0].TryDelta.IsZero())
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		lotBuy("C1", 0, "20", "50"),
		sellAt("C1", 1, "10", "55"),
		sellAt("C1", 2, "5", "58"),
		deposit("C1", 3, "1"),
	}
	stats := Summarize(txs)
	assert.Equal(t, 4, stats.TransactionCount)
	assert.True(t, stats.Balance.Equal(d("6")))
	assert.True(t, stats.BoughtUsdt.Equal(d("20")))
	assert.True(t, stats.SoldUsdt.Equal(d("15")))
	assert.True(t, stats.ReceivedTry.Equal(d("840")))
	assert.True(t, stats.AverageSellPriceTry.Equal(d("56")), "got %s", stats.AverageSellPriceTry)
	// 10*5 + 5*8
	assert.True(t, stats.RealizedProfitTry.Equal(d("90")))
	assert.True(t, stats.OpenUnits.Equal(d("5")))
	assert.True(t, stats.UnmatchedUnits.IsZero())
	assert.Empty(t, stats.Warnings)
	assert.NoError(t, stats.Strict())
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)
	assert.True(t, stats.Balance.IsZero())
	assert.True(t, stats.AverageSellPriceTry.IsZero())
	assert.True(t, stats.RealizedProfitTry.IsZero())
	assert.True(t, stats.OpenUnits.IsZero())
}

func TestInsights(t *testing.T) {
	txs := []Transaction{
		sellAt("C1", 2, "10", "60"),
		lotBuy("C1", 0, "20", "50"),
		withdraw("C1", 1, "2"),
	}
	points := Insights(txs)
	require.Len(t, points, 3)
	assert.Equal(t, KindBuy, points[0].Type)
	assert.True(t, points[0].UsdtBalance.Equal(d("20")))
	assert.False(t, points[0].SellRateTry.Valid)
	assert.True(t, points[1].UsdtBalance.Equal(d("18")))
	assert.True(t, points[2].UsdtBalance.Equal(d("8")))
	assert.True(t, points[2].SellRateTry.Decimal.Equal(d("60")))
	assert.True(t, points[2].CumulativeProfit.Equal(d("100")))
}
