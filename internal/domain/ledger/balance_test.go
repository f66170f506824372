package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mixedCycle() []Transaction {
	return []Transaction{
		tryBuy("C1", 0, "1000", "20"),
		sellAt("C1", 1, "5", "55"),
		deposit("C1", 2, "3.5"),
		withdraw("C1", 3, "1.25"),
		settlementLeg("C1", 4, DirectionIn, "10"),
		settlementLeg("C1", 5, DirectionOut, "4"),
	}
}

func TestBalanceOf_Empty(t *testing.T) {
	assert.True(t, BalanceOf(nil).IsZero())
}

func TestBalanceOf_AllKinds(t *testing.T) {
	// 20 - 5 + 3.5 - 1.25 + 10 - 4
	got := BalanceOf(mixedCycle())
	assert.True(t, got.Equal(d("23.25")), "got %s", got)
}

func TestBalanceOf_Additivity(t *testing.T) {
	txs := mixedCycle()
	total := BalanceOf(txs)
	for k := 0; k <= len(txs); k++ {
		left := SortChronological(txs[:k])
		right := SortChronological(txs[k:])
		sum := BalanceOf(left).Add(BalanceOf(right))
		assert.True(t, sum.Equal(total), "split %d: %s != %s", k, sum, total)
	}
}

func TestBalanceOf_OrderIndependent(t *testing.T) {
	txs := mixedCycle()
	reversed := make([]Transaction, len(txs))
	for i, tx := range txs {
		reversed[len(txs)-1-i] = tx
	}
	assert.True(t, BalanceOf(txs).Equal(BalanceOf(reversed)))
}

func TestCovers(t *testing.T) {
	assert.True(t, Covers(d("10"), d("10")))
	assert.True(t, Covers(d("10"), d("10.0000000000001")))
	assert.False(t, Covers(d("10"), d("10.001")))
	assert.False(t, Covers(d("0"), d("0.01")))
}
