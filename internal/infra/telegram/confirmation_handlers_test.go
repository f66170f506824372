package telegram

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

const adminID int64 = 7

// callbackContext records what a callback handler answers. Methods it does
// not override panic through the nil embedded Context.
type callbackContext struct {
	telebot.Context
	sender    int64
	data      string
	responses []string
	edits     []string
}

func (c *callbackContext) Sender() *telebot.User { return &telebot.User{ID: c.sender} }

func (c *callbackContext) Callback() *telebot.Callback { return &telebot.Callback{Data: c.data} }

func (c *callbackContext) Respond(resp ...*telebot.CallbackResponse) error {
	for _, r := range resp {
		c.responses = append(c.responses, r.Text)
	}
	return nil
}

func (c *callbackContext) Edit(what interface{}, _ ...interface{}) error {
	c.edits = append(c.edits, what.(string))
	return nil
}

func discardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestCancelled_AdminOnly(t *testing.T) {
	handler := cancelled(adminID, discardLogger())

	stranger := &callbackContext{sender: adminID + 1}
	require.NoError(t, handler(stranger))
	assert.Equal(t, []string{"Not allowed."}, stranger.responses)
	assert.Empty(t, stranger.edits, "the prompt stays in place")

	admin := &callbackContext{sender: adminID}
	require.NoError(t, handler(admin))
	assert.Equal(t, []string{"Cancelled."}, admin.responses)
	assert.Equal(t, []string{"Cancelled."}, admin.edits)
}

func TestConfirmed_AdminOnly(t *testing.T) {
	calls := 0
	run := func(context.Context, uuid.UUID) (string, error) {
		calls++
		return "Undone.", nil
	}
	handler := confirmed(context.Background(), adminID, discardLogger(), "undo", run)
	payload := uuid.NewString()

	stranger := &callbackContext{sender: adminID + 1, data: payload}
	require.NoError(t, handler(stranger))
	assert.Equal(t, []string{"Not allowed."}, stranger.responses)
	assert.Zero(t, calls)

	admin := &callbackContext{sender: adminID, data: payload}
	require.NoError(t, handler(admin))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"Done."}, admin.responses)
	assert.Equal(t, []string{"Undone."}, admin.edits)
}
