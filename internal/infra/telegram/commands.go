package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"exchange_profitbook/internal/app"
	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// UsageError is returned when a command is called with the wrong arguments.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return "Usage: " + e.Usage }

func usage(format string) error { return &UsageError{Usage: format} }

const (
	usageSummary  = "/summary <cycle>"
	usageBuyTRY   = "/buy_try <cycle> <tryValue> <usdtReceived> [commission%]"
	usageBuyUSD   = "/buy_usd <cycle> <usdValue> <usdTryRate> <usdtReceived> [commission%]"
	usageSell     = "/sell <cycle> <usdtSold> <pricePerUnit> [commission%]"
	usageDeposit  = "/deposit <cycle> <amount>"
	usageWithdraw = "/withdraw <cycle> <amount>"
	usageSettle   = "/settle <fromCycle> <toCycle> <amount>"
	usageUndo     = "/undo <cycle>"
	usageReset    = "/reset <cycle>"
	usageSimulate = "/simulate <capitalUsd> <usdTryRate> <commission%> <sellRate> <loops> [simple]"
)

// Commands turns chat command arguments into service calls and renders the
// replies. It holds no telebot state so it can be driven directly.
type Commands struct {
	cycles       *app.CycleService
	transactions *app.TransactionService
	ledger       *app.LedgerService
	logger       *logrus.Entry
}

func NewCommands(cycles *app.CycleService, transactions *app.TransactionService, ls *app.LedgerService, logger *logrus.Entry) *Commands {
	return &Commands{
		cycles:       cycles,
		transactions: transactions,
		ledger:       ls,
		logger:       logger.WithField("component", "telegram_commands"),
	}
}

// Cycles lists every cycle with its current balance.
func (c *Commands) Cycles(ctx context.Context) (string, error) {
	summaries, err := c.ledger.Summaries(ctx)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "No cycles yet.", nil
	}
	var b strings.Builder
	b.WriteString("Cycles:\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s: %s (%d transactions)\n", s.Cycle.Name, ledger.FormatSigned(s.Balance, ledger.UnitCode), s.TransactionCount)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (c *Commands) Summary(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage(usageSummary)
	}
	sum, err := c.ledger.CycleSummaryByName(ctx, args[0])
	if err != nil {
		return "", err
	}
	return app.FormatSummary(sum), nil
}

func (c *Commands) BuyTRY(ctx context.Context, args []string) (string, error) {
	if len(args) < 3 || len(args) > 4 {
		return "", usage(usageBuyTRY)
	}
	value, err := parseAmount("tryValue", args[1])
	if err != nil {
		return "", err
	}
	received, err := parseAmount("usdtReceived", args[2])
	if err != nil {
		return "", err
	}
	commission, err := optionalArg("commission%", args, 3)
	if err != nil {
		return "", err
	}
	buy, err := c.transactions.Buy(ctx, app.BuyInput{
		Cycle:               args[0],
		TransactionValue:    value,
		TransactionCurrency: ledger.CurrencyTRY,
		AmountReceived:      received,
		CommissionPercent:   commission,
	})
	if err != nil {
		return "", err
	}
	return c.withBalance(ctx, buy.CycleName, describeBuy(buy)), nil
}

func (c *Commands) BuyUSD(ctx context.Context, args []string) (string, error) {
	if len(args) < 4 || len(args) > 5 {
		return "", usage(usageBuyUSD)
	}
	value, err := parseAmount("usdValue", args[1])
	if err != nil {
		return "", err
	}
	rate, err := parseAmount("usdTryRate", args[2])
	if err != nil {
		return "", err
	}
	received, err := parseAmount("usdtReceived", args[3])
	if err != nil {
		return "", err
	}
	commission, err := optionalArg("commission%", args, 4)
	if err != nil {
		return "", err
	}
	buy, err := c.transactions.Buy(ctx, app.BuyInput{
		Cycle:               args[0],
		TransactionValue:    value,
		TransactionCurrency: ledger.CurrencyUSD,
		USDTRYRateAtBuy:     decimal.NewNullDecimal(rate),
		AmountReceived:      received,
		CommissionPercent:   commission,
	})
	if err != nil {
		return "", err
	}
	return c.withBalance(ctx, buy.CycleName, describeBuy(buy)), nil
}

func (c *Commands) Sell(ctx context.Context, args []string) (string, error) {
	if len(args) < 3 || len(args) > 4 {
		return "", usage(usageSell)
	}
	sold, err := parseAmount("usdtSold", args[1])
	if err != nil {
		return "", err
	}
	price, err := parseAmount("pricePerUnit", args[2])
	if err != nil {
		return "", err
	}
	commission, err := optionalArg("commission%", args, 3)
	if err != nil {
		return "", err
	}
	sell, err := c.transactions.Sell(ctx, app.SellInput{
		Cycle:             args[0],
		AmountSold:        sold,
		PricePerUnit:      decimal.NewNullDecimal(price),
		CommissionPercent: commission,
	})
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("Sold %s in %q for %s.",
		ledger.FormatAmount(sell.AmountSold, ledger.UnitCode), sell.CycleName,
		ledger.FormatAmount(sell.AmountReceived, string(ledger.CurrencyTRY)))
	return c.withBalance(ctx, sell.CycleName, text), nil
}

func (c *Commands) Deposit(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", usage(usageDeposit)
	}
	amount, err := parseAmount("amount", args[1])
	if err != nil {
		return "", err
	}
	dep, err := c.transactions.Deposit(ctx, app.DepositInput{Cycle: args[0], Amount: amount})
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("Deposit correction of %s recorded in %q.", ledger.FormatAmount(dep.Amount, ledger.UnitCode), dep.CycleName)
	return c.withBalance(ctx, dep.CycleName, text), nil
}

func (c *Commands) Withdraw(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", usage(usageWithdraw)
	}
	amount, err := parseAmount("amount", args[1])
	if err != nil {
		return "", err
	}
	w, err := c.transactions.Withdraw(ctx, app.WithdrawInput{Cycle: args[0], Amount: amount})
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("Withdraw correction of %s recorded in %q.", ledger.FormatAmount(w.Amount, ledger.UnitCode), w.CycleName)
	return c.withBalance(ctx, w.CycleName, text), nil
}

func (c *Commands) Settle(ctx context.Context, args []string) (string, error) {
	if len(args) != 3 {
		return "", usage(usageSettle)
	}
	amount, err := parseAmount("amount", args[2])
	if err != nil {
		return "", err
	}
	out, in, err := c.transactions.Settle(ctx, app.SettlementInput{FromCycle: args[0], ToCycle: args[1], Amount: amount})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved %s from %q to %q.", ledger.FormatAmount(out.Amount, ledger.UnitCode), out.CycleName, in.CycleName), nil
}

// PrepareUndo resolves the cycle an /undo targets and renders the confirmation question.
func (c *Commands) PrepareUndo(ctx context.Context, args []string) (*ledger.Cycle, string, error) {
	if len(args) != 1 {
		return nil, "", usage(usageUndo)
	}
	sum, err := c.ledger.CycleSummaryByName(ctx, args[0])
	if err != nil {
		return nil, "", err
	}
	if sum.TransactionCount == 0 {
		return nil, "", ledger.ErrTransactionNotFound
	}
	return sum.Cycle, fmt.Sprintf("Undo the latest transaction in %q? Balance is %s.",
		sum.Cycle.Name, ledger.FormatSigned(sum.Balance, ledger.UnitCode)), nil
}

// Undo removes the latest transaction of cycleID once the admin confirmed it.
func (c *Commands) Undo(ctx context.Context, cycleID uuid.UUID) (string, error) {
	deleted, err := c.cycles.UndoLastTransaction(ctx, cycleID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Transaction %s removed.", deleted), nil
}

// PrepareReset resolves the cycle a /reset targets and renders the confirmation question.
func (c *Commands) PrepareReset(ctx context.Context, args []string) (*ledger.Cycle, string, error) {
	if len(args) != 1 {
		return nil, "", usage(usageReset)
	}
	sum, err := c.ledger.CycleSummaryByName(ctx, args[0])
	if err != nil {
		return nil, "", err
	}
	return sum.Cycle, fmt.Sprintf("Delete all %d transactions of %q? The cycle itself is kept.",
		sum.TransactionCount, sum.Cycle.Name), nil
}

func (c *Commands) Reset(ctx context.Context, cycleID uuid.UUID) (string, error) {
	removed, err := c.cycles.ResetCycle(ctx, cycleID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Cycle reset, %d transactions deleted.", removed), nil
}

// withBalance appends the cycle's balance after a write. A failed read only
// drops the line, the write itself already succeeded.
func (c *Commands) withBalance(ctx context.Context, cycleName, text string) string {
	sum, err := c.ledger.CycleSummaryByName(ctx, cycleName)
	if err != nil {
		c.logger.WithError(err).WithField("cycle", cycleName).Warn("Failed to read balance after write")
		return text
	}
	return text + "\nBalance: " + ledger.FormatSigned(sum.Balance, ledger.UnitCode)
}

func describeBuy(buy *ledger.Buy) string {
	text := fmt.Sprintf("Bought %s in %q for %s.",
		ledger.FormatAmount(buy.AmountReceived, ledger.UnitCode), buy.CycleName,
		ledger.FormatAmount(buy.TransactionValue, string(buy.TransactionCurrency)))
	if buy.EffectiveRateTry.Valid {
		text += " Effective rate: " + ledger.FormatAmount(buy.EffectiveRateTry.Decimal, string(ledger.CurrencyTRY))
	}
	return text
}

// Simulate runs the loop calculator. Profits compound unless the last
// argument is "simple". Nothing is recorded.
func (c *Commands) Simulate(_ context.Context, args []string) (string, error) {
	if len(args) < 5 || len(args) > 6 {
		return "", usage(usageSimulate)
	}
	compound := true
	if len(args) == 6 {
		if !strings.EqualFold(args[5], "simple") {
			return "", usage(usageSimulate)
		}
		compound = false
	}
	var nums [4]decimal.Decimal
	for i, name := range []string{"capitalUsd", "usdTryRate", "commission%", "sellRate"} {
		d, err := parseAmount(name, strings.TrimSuffix(args[i], "%"))
		if err != nil {
			return "", err
		}
		nums[i] = d
	}
	loops, err := strconv.Atoi(args[4])
	if err != nil {
		return "", ledger.Validationf("loops must be a whole number, got %q", args[4])
	}
	sim, err := ledger.SimulateLoops(ledger.LoopParams{
		StartingCapitalUsd: nums[0],
		ExchangeRate:       nums[1],
		BuyCommission:      nums[2],
		SellRate:           nums[3],
		Loops:              loops,
		Compound:           compound,
	})
	if err != nil {
		return "", err
	}

	usd, try := string(ledger.CurrencyUSD), string(ledger.CurrencyTRY)
	var b strings.Builder
	for _, l := range sim.Loops {
		fmt.Fprintf(&b, "%d. %s -> %s -> %s, profit %s\n", l.Loop,
			ledger.FormatAmount(l.BuyUsd, usd),
			ledger.FormatAmount(l.UsdtBought, ledger.UnitCode),
			ledger.FormatAmount(l.SellTry, try),
			ledger.FormatSigned(l.ProfitTry, try))
	}
	fmt.Fprintf(&b, "Total profit: %s (%s)\nFinal capital: %s",
		ledger.FormatSigned(sim.Totals.ProfitTry, try),
		ledger.FormatSigned(sim.Totals.ProfitUsd, usd),
		ledger.FormatAmount(sim.Totals.FinalCapitalUsd, usd))
	return b.String(), nil
}

// parseAmount accepts both '.' and ',' as the decimal separator.
func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return decimal.Zero, ledger.Validationf("%s must be a number, got %q", name, raw)
	}
	return d, nil
}

func optionalArg(name string, args []string, i int) (decimal.NullDecimal, error) {
	if i >= len(args) {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(name, strings.TrimSuffix(args[i], "%"))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// ReplyFor renders err for the chat. Business errors and usage errors are
// shown verbatim; anything else gets a generic message.
func ReplyFor(err error) (text string, unexpected bool) {
	var usageErr *UsageError
	var ledgerErr *ledger.Error
	switch {
	case errors.As(err, &usageErr):
		return usageErr.Error(), false
	case errors.As(err, &ledgerErr):
		return "Error: " + ledgerErr.Msg, false
	}
	return "Something went wrong, please try again later.", true
}
