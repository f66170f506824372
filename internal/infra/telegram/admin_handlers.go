package telegram

import (
	"context"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// argsCommand is a ledger command driven by the message arguments.
type argsCommand func(ctx context.Context, args []string) (string, error)

// RegisterAdminHandlers registers the ledger commands. Only adminTelegramID may use them.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, cmds *Commands, adminTelegramID int64, baseLogger *logrus.Entry) {
	adminLogger := baseLogger.WithField("handler_group", "admin")

	b.Handle("/cycles", adminOnly(adminTelegramID, adminLogger, "/cycles", func(c telebot.Context, log *logrus.Entry) error {
		text, err := cmds.Cycles(ctx)
		return reply(c, log, text, err)
	}))

	for command, run := range map[string]argsCommand{
		"/summary":  cmds.Summary,
		"/buy_try":  cmds.BuyTRY,
		"/buy_usd":  cmds.BuyUSD,
		"/sell":     cmds.Sell,
		"/deposit":  cmds.Deposit,
		"/withdraw": cmds.Withdraw,
		"/settle":   cmds.Settle,
		"/simulate": cmds.Simulate,
	} {
		run := run
		b.Handle(command, adminOnly(adminTelegramID, adminLogger, command, func(c telebot.Context, log *logrus.Entry) error {
			args := c.Args()
			log = log.WithField("args", args)
			text, err := run(ctx, args)
			return reply(c, log, text, err)
		}))
	}

	b.Handle("/undo", adminOnly(adminTelegramID, adminLogger, "/undo", func(c telebot.Context, log *logrus.Entry) error {
		cycle, question, err := cmds.PrepareUndo(ctx, c.Args())
		if err != nil {
			return reply(c, log, "", err)
		}
		return c.Send(question, confirmMarkup(btnUndoConfirm, cycle.ID.String()))
	}))

	b.Handle("/reset", adminOnly(adminTelegramID, adminLogger, "/reset", func(c telebot.Context, log *logrus.Entry) error {
		cycle, question, err := cmds.PrepareReset(ctx, c.Args())
		if err != nil {
			return reply(c, log, "", err)
		}
		return c.Send(question, confirmMarkup(btnResetConfirm, cycle.ID.String()))
	}))
}

// adminOnly rejects senders other than the admin before running next.
func adminOnly(adminTelegramID int64, baseLogger *logrus.Entry, command string, next func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to use this command.")
		}
		return next(c, handlerLogger)
	}
}

func reply(c telebot.Context, log *logrus.Entry, text string, err error) error {
	if err == nil {
		return c.Send(text)
	}
	msg, unexpected := ReplyFor(err)
	if unexpected {
		log.WithError(err).Error("Command failed")
	} else {
		log.WithError(err).Warn("Command rejected")
	}
	return c.Send(msg)
}
