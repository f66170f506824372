package telegram

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Inline buttons of the destructive commands. The cycle id travels as the callback payload.
var (
	confirmButtons  = &telebot.ReplyMarkup{}
	btnUndoConfirm  = confirmButtons.Data("Yes, undo", "undo_yes")
	btnResetConfirm = confirmButtons.Data("Yes, reset", "reset_yes")
	btnCancel       = confirmButtons.Data("Cancel", "confirm_no")
)

func confirmMarkup(confirm telebot.Btn, payload string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	yes := markup.Data(confirm.Text, confirm.Unique, payload)
	no := markup.Data(btnCancel.Text, btnCancel.Unique)
	markup.Inline(markup.Row(yes, no))
	return markup
}

// RegisterConfirmationHandlers answers the inline buttons sent by /undo and /reset.
func RegisterConfirmationHandlers(ctx context.Context, b *telebot.Bot, cmds *Commands, adminTelegramID int64, baseLogger *logrus.Entry) {
	confirmLogger := baseLogger.WithField("handler_group", "confirmation")

	b.Handle(&btnUndoConfirm, confirmed(ctx, adminTelegramID, confirmLogger, "undo", cmds.Undo))
	b.Handle(&btnResetConfirm, confirmed(ctx, adminTelegramID, confirmLogger, "reset", cmds.Reset))

	b.Handle(&btnCancel, cancelled(adminTelegramID, confirmLogger))
}

// adminCallback answers "Not allowed." to anyone but the admin before running next.
func adminCallback(adminTelegramID int64, baseLogger *logrus.Entry, action string, next func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{
			"action":    action,
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			log.Warn("Unauthorized confirmation attempt")
			return c.Respond(&telebot.CallbackResponse{Text: "Not allowed."})
		}
		return next(c, log)
	}
}

func cancelled(adminTelegramID int64, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return adminCallback(adminTelegramID, baseLogger, "cancel", func(c telebot.Context, log *logrus.Entry) error {
		log.Info("Confirmation cancelled")
		if err := c.Respond(&telebot.CallbackResponse{Text: "Cancelled."}); err != nil {
			return err
		}
		return c.Edit("Cancelled.")
	})
}

func confirmed(ctx context.Context, adminTelegramID int64, baseLogger *logrus.Entry, action string, run func(context.Context, uuid.UUID) (string, error)) telebot.HandlerFunc {
	return adminCallback(adminTelegramID, baseLogger, action, func(c telebot.Context, log *logrus.Entry) error {
		data := c.Callback().Data
		cycleID, err := uuid.Parse(data)
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid cycle id %q in %s callback: %w", data, action, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Invalid request."})
		}
		log = log.WithField("cycle_id", cycleID)

		text, err := run(ctx, cycleID)
		if err != nil {
			msg, unexpected := ReplyFor(err)
			if unexpected {
				log.WithError(err).Error("Confirmed action failed")
			} else {
				log.WithError(err).Warn("Confirmed action rejected")
			}
			if rerr := c.Respond(&telebot.CallbackResponse{Text: "Failed."}); rerr != nil {
				return rerr
			}
			return c.Edit(msg)
		}

		log.Info("Confirmed action done")
		if err := c.Respond(&telebot.CallbackResponse{Text: "Done."}); err != nil {
			return err
		}
		return c.Edit(text)
	})
}
