// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers /start and /help.
func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID != adminTelegramID {
			logCtx.Info("User is unknown")
			return c.Send("This bot is private.")
		}
		return c.Send(fmt.Sprintf("Hi %s! The ledger is ready. Use /help for the list of commands.", c.Sender().FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("No commands are available for you.")
		}
		return c.Send(HelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// HelpText lists the admin commands.
func HelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Available commands:\n\n")
	helpText.WriteString("`/cycles`\n - List cycles with their balances.\n\n")
	for _, line := range [][2]string{
		{usageSummary, "Show the summary of a cycle."},
		{usageBuyTRY, "Record a USDT purchase paid in TRY."},
		{usageBuyUSD, "Record a USDT purchase paid in USD."},
		{usageSell, "Record a USDT sale for TRY."},
		{usageDeposit, "Manually increase a cycle balance."},
		{usageWithdraw, "Manually decrease a cycle balance."},
		{usageSettle, "Move USDT between two cycles."},
		{usageUndo, "Remove the latest transaction of a cycle, after confirmation."},
		{usageReset, "Delete every transaction of a cycle, after confirmation."},
		{usageSimulate, "Project repeated buy and sell loops without recording anything."},
	} {
		fmt.Fprintf(&helpText, "`%s`\n - %s\n\n", line[0], line[1])
	}
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
