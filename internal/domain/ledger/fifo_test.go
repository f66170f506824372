package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealizedProfit_RoundTrip(t *testing.T) {
	txs := []Transaction{
		tryBuy("C1", 0, "1000", "20"), // unit cost 50
		sellAt("C1", 1, "20", "55"),
	}
	got := RealizedProfit(txs)
	assert.True(t, got.Equal(d("100")), "got %s", got)
}

func TestRealizedProfit_PartialMatchAcrossLots(t *testing.T) {
	txs := []Transaction{
		lotBuy("C1", 0, "10", "50"),
		lotBuy("C1", 1, "10", "60"),
		sellAt("C1", 2, "15", "70"),
	}
	res := Match(txs)
	// 10*70-10*50 + 5*70-5*60
	assert.True(t, res.RealizedProfit.Equal(d("250")), "got %s", res.RealizedProfit)
	require.Len(t, res.OpenLots, 1)
	assert.True(t, res.OpenLots[0].RemainingUnits.Equal(d("5")))
	assert.True(t, res.OpenLots[0].UnitCost.Equal(d("60")))
	assert.Empty(t, res.Warnings)
}

func TestMatch_ExcessSoldUnitsAreNotMatched(t *testing.T) {
	txs := []Transaction{
		lotBuy("C1", 0, "10", "50"),
		sellAt("C1", 1, "15", "70"),
	}
	res := Match(txs)
	assert.True(t, res.RealizedProfit.Equal(d("200")), "only the 10 covered units realize profit, got %s", res.RealizedProfit)
	assert.True(t, res.UnmatchedUnits.Equal(d("5")))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnSellExceedsLots, res.Warnings[0].Code)
	assert.Empty(t, res.OpenLots)
	assert.Error(t, res.Strict())
}

func TestMatch_BuyWithoutDerivableCostIsSkipped(t *testing.T) {
	noRate := &Buy{
		Header:              header("C1", 0),
		TransactionValue:    d("100"),
		TransactionCurrency: CurrencyUSD,
		AmountReceived:      d("100"),
	}
	txs := []Transaction{noRate, sellAt("C1", 1, "50", "40")}
	res := Match(txs)
	assert.True(t, res.RealizedProfit.IsZero())
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, WarnBuyWithoutCost, res.Warnings[0].Code)
	assert.Equal(t, WarnSellExceedsLots, res.Warnings[1].Code)
}

func TestMatch_RecomputesMissingEffectiveRate(t *testing.T) {
	legacy := &Buy{
		Header:              header("C1", 0),
		TransactionValue:    d("100"),
		TransactionCurrency: CurrencyUSD,
		USDTRYRateAtBuy:     nd("30"),
		AmountReceived:      d("100"),
	}
	txs := []Transaction{legacy, sellAt("C1", 1, "100", "31")}
	got := RealizedProfit(txs)
	assert.True(t, got.Equal(d("100")), "got %s", got)
}

func TestMatch_SellFallsBackToEffectiveRate(t *testing.T) {
	s := sellAt("C1", 1, "10", "70")
	s.PricePerUnit = decimal.NullDecimal{}
	txs := []Transaction{lotBuy("C1", 0, "10", "50"), s}
	assert.True(t, RealizedProfit(txs).Equal(d("200")))

	s.EffectiveRateTry = decimal.NullDecimal{}
	res := Match(txs)
	assert.True(t, res.RealizedProfit.IsZero())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnSellWithoutRate, res.Warnings[0].Code)
	require.Len(t, res.OpenLots, 1, "a sell without a rate consumes nothing")
}

func TestMatch_IgnoresSettlementsAndCorrections(t *testing.T) {
	txs := []Transaction{
		deposit("C1", 0, "100"),
		settlementLeg("C1", 1, DirectionIn, "100"),
		lotBuy("C1", 2, "10", "50"),
		withdraw("C1", 3, "5"),
		settlementLeg("C1", 4, DirectionOut, "5"),
		sellAt("C1", 5, "10", "52"),
	}
	res := Match(txs)
	assert.True(t, res.RealizedProfit.Equal(d("20")), "got %s", res.RealizedProfit)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Series, len(txs))
}

func TestRealizedProfit_InvariantToStorageOrder(t *testing.T) {
	txs := []Transaction{
		lotBuy("C1", 0, "10", "50"),
		lotBuy("C1", 1, "10", "60"),
		sellAt("C1", 2, "10", "70"),
	}
	shuffled := []Transaction{txs[2], txs[0], txs[1]}
	assert.True(t, RealizedProfit(txs).Equal(RealizedProfit(shuffled)))
	assert.True(t, RealizedProfit(txs).Equal(d("200")))
}

func TestRealizedProfit_SensitiveToTimestamps(t *testing.T) {
	cheap := lotBuy("C1", 0, "10", "50")
	dear := lotBuy("C1", 1, "10", "60")
	sell := sellAt("C1", 2, "10", "70")
	assert.True(t, RealizedProfit([]Transaction{cheap, dear, sell}).Equal(d("200")))

	cheap.OccurredAt, dear.OccurredAt = dear.OccurredAt, cheap.OccurredAt
	assert.True(t, RealizedProfit([]Transaction{cheap, dear, sell}).Equal(d("100")))
}

func TestRealizedProfit_CreatedAtBreaksTies(t *testing.T) {
	cheap := lotBuy("C1", 0, "10", "50")
	dear := lotBuy("C1", 0, "10", "60")
	dear.CreatedAt = cheap.CreatedAt.Add(-time.Second)
	sell := sellAt("C1", 1, "10", "70")
	assert.True(t, RealizedProfit([]Transaction{cheap, dear, sell}).Equal(d("100")))
}

func TestMatch_SeriesIsCumulative(t *testing.T) {
	txs := []Transaction{
		lotBuy("C1", 0, "20", "50"),
		sellAt("C1", 1, "10", "55"),
		sellAt("C1", 2, "10", "60"),
	}
	res := Match(txs)
	require.Len(t, res.Series, 3)
	assert.True(t, res.Series[0].CumulativeProfit.IsZero())
	assert.True(t, res.Series[1].CumulativeProfit.Equal(d("50")))
	assert.True(t, res.Series[2].CumulativeProfit.Equal(d("150")))
	assert.NoError(t, res.Strict())
}
