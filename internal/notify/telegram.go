// Package notify alerts a human operator about authentication states
// the service cannot resolve on its own (challenges, two-factor
// prompts, bad credentials).
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Notifier interface {
	// AuthBlocked reports that an account can no longer authenticate
	// automatically and needs manual attention.
	AuthBlocked(accountID, reason string)
}

type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier bot: %w", err)
	}

	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (n *TelegramNotifier) AuthBlocked(accountID, reason string) {
	text := fmt.Sprintf("⚠️ Account %s needs attention: %s. Resolve it and log in again.", accountID, reason)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send operator alert",
			zap.Error(err),
			zap.String("account", accountID))
	}
}

// NopNotifier is used when no Telegram token is configured.
type NopNotifier struct{}

func (NopNotifier) AuthBlocked(accountID, reason string) {}
