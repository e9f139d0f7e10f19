package services

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Gift-Price-Telegram-bot/internal/db"
	"Gift-Price-Telegram-bot/internal/logger"
	"Gift-Price-Telegram-bot/internal/ratelimit"
)

// CleanupMessageOwnership — периодическая зачистка записей владения.
// Чистая гигиена хранилища: истёкшая запись и так означает отказ в доступе
// (fail closed), поэтому задача может крутиться полностью отдельно от
// обработки апдейтов.
func CleanupMessageOwnership(limiter *ratelimit.Limiter, retention time.Duration) {
	messages, links, err := limiter.CleanupOldMessageOwnership(retention)
	if err != nil {
		logger.Error("ownership cleanup failed", zap.Error(err))
		logger.NotifyAdmin("Ошибка зачистки записей владения: " + err.Error())
		return
	}
	logger.Info("ownership cleanup done",
		zap.Int64("messages_deleted", messages), zap.Int64("links_deleted", links))
}

// NotifyExpiringPremium отправляет уведомления пользователям о скором
// окончании премиума
func NotifyExpiringPremium(bot *tgbotapi.BotAPI, store *db.Store, daysBefore int) {
	now := time.Now().Unix()
	soon := now + int64(daysBefore*24*60*60)
	users, err := store.FindExpiringPremium(now, soon)
	if err != nil {
		logger.NotifyAdmin("Не удалось получить истекающие подписки: " + err.Error())
		return
	}
	for _, user := range users {
		msg := tgbotapi.NewMessage(user.TelegramID,
			fmt.Sprintf("Premium истекает через %d дн. Продлить: /premium", daysBefore))
		if _, err := bot.Send(msg); err != nil {
			logger.NotifyAdmin(fmt.Sprintf("Ошибка уведомления пользователя %d: %v", user.TelegramID, err))
			continue
		}
		if err := store.MarkNotifiedEnd(user.ID); err != nil {
			logger.Error("mark notified", zap.Error(err))
		}
	}
}
