package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"exchange_profitbook/internal/app"
	"exchange_profitbook/internal/domain/ledger"
	"exchange_profitbook/internal/infra/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommands(t *testing.T) *Commands {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	store := memory.NewStore()
	return NewCommands(
		app.NewCycleService(store, entry),
		app.NewTransactionService(store, app.SellPolicyPermissive, entry),
		app.NewLedgerService(store, entry),
		entry,
	)
}

func TestCommands_BuySellFlow(t *testing.T) {
	ctx := context.Background()
	cmds := newCommands(t)

	text, err := cmds.BuyTRY(ctx, []string{"C1", "1000", "20"})
	require.NoError(t, err)
	assert.Contains(t, text, "Bought USDT 20.00")
	assert.Contains(t, text, "Balance: +USDT 20.00")

	text, err = cmds.BuyUSD(ctx, []string{"C1", "100", "30", "99", "1%"})
	require.NoError(t, err)
	assert.Contains(t, text, "Bought USDT 99.00")
	assert.Contains(t, text, "Balance: +USDT 119.00")

	text, err = cmds.Sell(ctx, []string{"C1", "20", "55,5"})
	require.NoError(t, err)
	assert.Contains(t, text, "Sold USDT 20.00")
	assert.Contains(t, text, "Balance: +USDT 99.00")

	text, err = cmds.Summary(ctx, []string{"C1"})
	require.NoError(t, err)
	assert.Contains(t, text, `Cycle "C1"`)
	assert.Contains(t, text, "Transactions: 3")

	text, err = cmds.Cycles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cycles:\nC1: +USDT 99.00 (3 transactions)", text)
}

func TestCommands_Usage(t *testing.T) {
	ctx := context.Background()
	cmds := newCommands(t)

	cases := map[string]argsCommand{
		"summary":  cmds.Summary,
		"buy_try":  cmds.BuyTRY,
		"buy_usd":  cmds.BuyUSD,
		"sell":     cmds.Sell,
		"deposit":  cmds.Deposit,
		"withdraw": cmds.Withdraw,
		"settle":   cmds.Settle,
		"simulate": cmds.Simulate,
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := run(ctx, nil)
			var usageErr *UsageError
			require.ErrorAs(t, err, &usageErr)
			assert.Contains(t, usageErr.Error(), "/"+name)
		})
	}
}

func TestCommands_BadNumber(t *testing.T) {
	cmds := newCommands(t)

	_, err := cmds.Deposit(context.Background(), []string{"C1", "ten"})
	require.ErrorIs(t, err, ledger.ErrValidation)
	text, unexpected := ReplyFor(err)
	assert.False(t, unexpected)
	assert.Equal(t, `Error: amount must be a number, got "ten"`, text)
}

func TestCommands_SettleAndWithdraw(t *testing.T) {
	ctx := context.Background()
	cmds := newCommands(t)

	_, err := cmds.Deposit(ctx, []string{"A", "10"})
	require.NoError(t, err)

	text, err := cmds.Settle(ctx, []string{"A", "B", "4"})
	require.NoError(t, err)
	assert.Equal(t, `Moved USDT 4.00 from "A" to "B".`, text)

	_, err = cmds.Withdraw(ctx, []string{"B", "5"})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	text, err = cmds.Withdraw(ctx, []string{"B", "4"})
	require.NoError(t, err)
	assert.Contains(t, text, "Balance: USDT 0.00")
}

func TestCommands_UndoConfirmation(t *testing.T) {
	ctx := context.Background()
	cmds := newCommands(t)

	_, _, err := cmds.PrepareUndo(ctx, []string{"missing"})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = cmds.Deposit(ctx, []string{"C1", "5"})
	require.NoError(t, err)
	_, err = cmds.Deposit(ctx, []string{"C1", "7"})
	require.NoError(t, err)

	cycle, question, err := cmds.PrepareUndo(ctx, []string{"C1"})
	require.NoError(t, err)
	assert.Equal(t, "C1", cycle.Name)
	assert.Contains(t, question, "+USDT 12.00")

	_, err = cmds.Undo(ctx, cycle.ID)
	require.NoError(t, err)
	text, err := cmds.Cycles(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "C1: +USDT 5.00 (1 transactions)")
}

func TestCommands_ResetConfirmation(t *testing.T) {
	ctx := context.Background()
	cmds := newCommands(t)

	_, err := cmds.Deposit(ctx, []string{"C1", "5"})
	require.NoError(t, err)

	cycle, question, err := cmds.PrepareReset(ctx, []string{"C1"})
	require.NoError(t, err)
	assert.Contains(t, question, "Delete all 1 transactions")

	text, err := cmds.Reset(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cycle reset, 1 transactions deleted.", text)

	_, _, err = cmds.PrepareUndo(ctx, []string{"C1"})
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestCommands_Simulate(t *testing.T) {
	ctx := context.Background()
	cmds := newCommands(t)

	text, err := cmds.Simulate(ctx, []string{"1000", "40", "1%", "42", "2"})
	require.NoError(t, err)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "1. $1,000.00 -> USDT 990.00 -> "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2. $1,039.50 -> USDT 1,029.10 -> "), lines[1])
	assert.Contains(t, lines[2], "(+$80.56)")
	assert.Equal(t, "Final capital: $1,080.56", lines[3])

	text, err = cmds.Simulate(ctx, []string{"1000", "40", "1", "42", "2", "simple"})
	require.NoError(t, err)
	assert.Contains(t, text, "2. $1,000.00 -> ")

	_, err = cmds.Simulate(ctx, []string{"1000", "40", "1", "42", "two"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = cmds.Simulate(ctx, []string{"1000", "40", "1", "42", "0"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	var usageErr *UsageError
	_, err = cmds.Simulate(ctx, []string{"1000", "40", "1", "42", "2", "twice"})
	assert.ErrorAs(t, err, &usageErr)

	cycles, err := cmds.Cycles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "No cycles yet.", cycles, "simulations record nothing")
}

func TestReplyFor(t *testing.T) {
	text, unexpected := ReplyFor(ledger.ErrCycleNotFound)
	assert.False(t, unexpected)
	assert.Equal(t, "Error: Cycle not found", text)

	text, unexpected = ReplyFor(errors.New("connection refused"))
	assert.True(t, unexpected)
	assert.NotContains(t, text, "connection refused")
}

func TestHelpTextListsCommands(t *testing.T) {
	help := HelpText()
	for _, cmd := range []string{"/cycles", "/summary", "/buy_try", "/buy_usd", "/sell", "/deposit", "/withdraw", "/settle", "/undo", "/reset", "/simulate"} {
		assert.Contains(t, help, cmd)
	}
}
