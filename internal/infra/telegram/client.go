// internal/infra/telegram/client.go
package telegram

import (
	"fmt"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to a private chat. Digests are plain text, so link
// previews are off unless options say otherwise.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}

	recipient := &telebot.User{ID: recipientChatID}
	if _, err := tba.bot.Send(recipient, text, options); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", recipientChatID, err)
	}
	return nil
}
