package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// TelegramNotifier pushes messages to a staff member's Telegram chat.
type TelegramNotifier struct {
	bot *bot.Bot
}

// NewTelegramNotifier returns nil when no token is configured.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	if token == "" {
		return nil, nil
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b}, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send implements Notifier.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To.TelegramChatID == nil {
		return ErrNoAddress
	}
	text := msg.Text
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Text
	}
	if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *msg.To.TelegramChatID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
