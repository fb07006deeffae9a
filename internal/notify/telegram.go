// Package notify holds notification senders for external channels.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jointvibe/internal/service"
)

// botAPI is the part of tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts notifications to an operations chat.
type TelegramSender struct {
	api    botAPI
	chatID int64
}

var _ service.Sender = (*TelegramSender)(nil)

// NewTelegramSender connects to the Bot API with token.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{api: api, chatID: chatID}, nil
}

// Send posts the notification as a plain text message.
func (s *TelegramSender) Send(ctx context.Context, n service.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, formatMessage(n))
	msg.DisableWebPagePreview = true
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send %s: %w", n.Type, err)
	}
	return nil
}

func formatMessage(n service.Notification) string {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\n")
	b.WriteString(n.Message)
	if n.RecipientID != "" {
		b.WriteString("\nto: ")
		b.WriteString(n.RecipientID)
	}
	return b.String()
}
