package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jointvibe/internal/service"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramSender_Send(t *testing.T) {
	bot := &fakeBot{}
	s := &TelegramSender{api: bot, chatID: 42}

	err := s.Send(context.Background(), service.Notification{
		Type:        service.NotificationOrderPlaced,
		RecipientID: "venue-1",
		Title:       "New Order",
		Message:     "Order abc for $13.20",
	})
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "New Order\nOrder abc for $13.20\nto: venue-1", msg.Text)
}

func TestTelegramSender_SendError(t *testing.T) {
	bot := &fakeBot{err: errors.New("blocked")}
	s := &TelegramSender{api: bot, chatID: 42}

	err := s.Send(context.Background(), service.Notification{Type: service.NotificationVenueApproved})
	assert.ErrorContains(t, err, "blocked")
}

func TestTelegramSender_CancelledContext(t *testing.T) {
	bot := &fakeBot{}
	s := &TelegramSender{api: bot, chatID: 42}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, service.Notification{}), context.Canceled)
	assert.Empty(t, bot.sent)
}
