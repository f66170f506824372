package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateLoops(t *testing.T) {
	type row struct {
		buyUsd, usdt, sellTry, profitTry, profitUsd string
		changeTry, changePct                        string // empty means unset
	}
	cases := []struct {
		name   string
		params LoopParams
		rows   []row
		final  string
	}{
		{
			name: "compounding reinvests the proceeds",
			params: LoopParams{
				StartingCapitalUsd: d("1000"),
				ExchangeRate:       d("40"),
				BuyCommission:      d("1"),
				SellRate:           d("42"),
				Loops:              3,
				Compound:           true,
			},
			rows: []row{
				{"1000", "990", "41580", "1580", "39.5", "", ""},
				{"1039.5", "1029.105", "43222.41", "1642.41", "41.06025", "62.41", "3.95"},
				{"1080.56025", "1069.7546475", "44929.695195", "1707.285195", "42.682129875", "64.875195", "3.95"},
			},
			final: "1123.242379875",
		},
		{
			name: "flat loops with bank tax",
			params: LoopParams{
				StartingCapitalUsd: d("1000"),
				ExchangeRate:       d("40"),
				BankTaxPercent:     nd("0.5"),
				BuyCommission:      d("1"),
				SellRate:           d("42"),
				Loops:              2,
			},
			rows: []row{
				{"1000", "990", "41580", "1380", "34.5", "", ""},
				{"1000", "990", "41580", "1380", "34.5", "0", "0"},
			},
			final: "1068.656716",
		},
		{
			name: "losing loop",
			params: LoopParams{
				StartingCapitalUsd: d("100"),
				ExchangeRate:       d("40"),
				BuyCommission:      d("0"),
				SellRate:           d("38"),
				Loops:              1,
				Compound:           true,
			},
			rows:  []row{{"100", "100", "3800", "-200", "-5", "", ""}},
			final: "95",
		},
	}

	optional := func(t *testing.T, want string, got decimal.NullDecimal) {
		t.Helper()
		if want == "" {
			assert.False(t, got.Valid)
			return
		}
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.Equal(d(want)), "want %s, got %s", want, got.Decimal)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim, err := SimulateLoops(tc.params)
			require.NoError(t, err)
			require.Len(t, sim.Loops, len(tc.rows))

			for i, want := range tc.rows {
				got := sim.Loops[i]
				assert.Equal(t, i+1, got.Loop)
				assert.True(t, got.BuyUsd.Equal(d(want.buyUsd)), "loop %d buy: %s", i+1, got.BuyUsd)
				assert.True(t, got.UsdtBought.Equal(d(want.usdt)), "loop %d usdt: %s", i+1, got.UsdtBought)
				assert.True(t, got.SellTry.Equal(d(want.sellTry)), "loop %d sell: %s", i+1, got.SellTry)
				assert.True(t, got.ProfitTry.Equal(d(want.profitTry)), "loop %d profit: %s", i+1, got.ProfitTry)
				assert.True(t, got.ProfitUsd.Equal(d(want.profitUsd)), "loop %d profit usd: %s", i+1, got.ProfitUsd)
				optional(t, want.changeTry, got.ChangeTry)
				optional(t, want.changePct, got.ChangePercent)
			}
			assert.True(t, sim.Totals.FinalCapitalUsd.Round(6).Equal(d(tc.final)), "final: %s", sim.Totals.FinalCapitalUsd)
		})
	}
}

func TestSimulateLoops_Totals(t *testing.T) {
	sim, err := SimulateLoops(LoopParams{
		StartingCapitalUsd: d("1000"),
		ExchangeRate:       d("40"),
		BuyCommission:      d("1"),
		SellRate:           d("42"),
		Loops:              2,
		Compound:           true,
	})
	require.NoError(t, err)

	assert.True(t, sim.Totals.BuyUsd.Equal(d("2039.5")))
	assert.True(t, sim.Totals.UsdtBought.Equal(d("2019.105")))
	assert.True(t, sim.Totals.SellTry.Equal(d("84802.41")))
	assert.True(t, sim.Totals.ProfitTry.Equal(d("3222.41")))
	assert.True(t, sim.Totals.ProfitUsd.Equal(d("80.56025")))
}

func TestSimulateLoops_ZeroProfitHasNoPercentChange(t *testing.T) {
	sim, err := SimulateLoops(LoopParams{
		StartingCapitalUsd: d("10"),
		ExchangeRate:       d("40"),
		BuyCommission:      d("0"),
		SellRate:           d("40"),
		Loops:              2,
	})
	require.NoError(t, err)
	require.True(t, sim.Loops[1].ChangeTry.Valid)
	assert.True(t, sim.Loops[1].ChangeTry.Decimal.IsZero())
	assert.False(t, sim.Loops[1].ChangePercent.Valid)
}

func TestSimulateLoops_Rejects(t *testing.T) {
	valid := LoopParams{
		StartingCapitalUsd: d("1000"),
		ExchangeRate:       d("40"),
		BuyCommission:      d("1"),
		SellRate:           d("42"),
		Loops:              1,
	}
	cases := map[string]func(p *LoopParams){
		"zero capital":       func(p *LoopParams) { p.StartingCapitalUsd = decimal.Zero },
		"zero exchange rate": func(p *LoopParams) { p.ExchangeRate = decimal.Zero },
		"negative sell rate": func(p *LoopParams) { p.SellRate = d("-1") },
		"full commission":    func(p *LoopParams) { p.BuyCommission = d("100") },
		"negative tax":       func(p *LoopParams) { p.BankTaxPercent = nd("-0.1") },
		"no loops":           func(p *LoopParams) { p.Loops = 0 },
		"too many loops":     func(p *LoopParams) { p.Loops = MaxSimulatedLoops + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			_, err := SimulateLoops(p)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
