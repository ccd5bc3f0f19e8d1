package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNoAddress signals that a channel has no address for the recipient; it is not a delivery failure.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Recipient identifies a staff member across channels.
type Recipient struct {
	ID             string
	Name           string
	Email          string
	TelegramChatID *int64
}

// Message is a channel-agnostic notification.
type Message struct {
	To      Recipient
	Subject string
	Text    string
}

// Notifier delivers a message over one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Multi fans a message out to every channel. A message counts as delivered when at
// least one channel accepted it; otherwise the joined channel errors are returned.
type Multi struct {
	channels []Notifier
	logger   *zap.Logger
}

// NewMulti builds a fan-out notifier. A log channel is always appended last.
func NewMulti(logger *zap.Logger, channels ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	filtered := make([]Notifier, 0, len(channels)+1)
	for _, ch := range channels {
		if ch != nil {
			filtered = append(filtered, ch)
		}
	}
	filtered = append(filtered, NewLogNotifier(logger))
	return &Multi{channels: filtered, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

// Send implements Notifier.
func (m *Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(ctx, msg); err != nil {
			if errors.Is(err, ErrNoAddress) {
				continue
			}
			m.logger.Warn("notification channel failed",
				zap.String("channel", ch.Name()), zap.String("recipient", msg.To.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ch.Name() != logChannel {
			delivered++
		}
	}
	if delivered == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

const logChannel = "log"

// LogNotifier records notifications in the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-only channel.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return logChannel }

// Send implements Notifier.
func (l *LogNotifier) Send(_ context.Context, msg Message) error {
	l.logger.Info("notification",
		zap.String("recipient", msg.To.ID),
		zap.String("subject", msg.Subject),
	)
	return nil
}
