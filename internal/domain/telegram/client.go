package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending messages via a Telegram bot.
// The ledger services only depend on this, never on the bot library itself.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
