package services

import (
	"context"
	"fmt"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/logger"
)

// Notifier tells bar staff about vouchers and claims.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) {}

// TelegramNotifier posts to a staff chat. The chat can be fixed up front or
// registered by sending /start to the bot.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID atomic.Int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	logger.Infof("Bot authorized on account %s", bot.Self.UserName)

	n := &TelegramNotifier{bot: bot}
	n.chatID.Store(chatID)
	return n, nil
}

// Listen registers the staff chat on /start until ctx is done.
func (n *TelegramNotifier) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := n.bot.GetUpdatesChan(u)
	defer n.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Command() == "start" {
				chatID := update.Message.Chat.ID
				n.chatID.Store(chatID)
				msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Bar chat registered: %d. Vouchers and claims will be posted here.", chatID))
				if _, err := n.bot.Send(msg); err != nil {
					logger.Warningf("Error confirming chat registration: %v", err)
				}
				logger.Infof("Staff chat registered: %d", chatID)
			}
		}
	}
}

func (n *TelegramNotifier) Notify(_ context.Context, text string) {
	chatID := n.chatID.Load()
	if chatID == 0 {
		logger.Warning("Staff chat unknown, notification dropped")
		return
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Errorf("Error sending notification: %v", err)
	}
}
