package admin

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Gift-Price-Telegram-bot/internal/db"
	"Gift-Price-Telegram-bot/internal/logger"
	"Gift-Price-Telegram-bot/internal/ratelimit"
)

// Admin обслуживает сервисные команды. Конструируется в main с тем же
// Store/Limiter, что и бот.
type Admin struct {
	TelegramID int64
	Store      *db.Store
	Limiter    *ratelimit.Limiter
	DSN        string // для pg_dump
}

func (a *Admin) IsAdmin(userID int64) bool {
	return userID == a.TelegramID
}

func (a *Admin) HandleCommand(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID != a.TelegramID {
		return
	}
	cmd := msg.Command()
	switch cmd {
	case "admin_stats":
		a.handleStats(bot, msg)
	case "admin_cleanup":
		a.handleCleanup(bot, msg)
	case "admin_backup":
		a.handleBackup(bot, msg)
	}
	logger.LogAdminAction(a.TelegramID, cmd, msg.Text)
}

func (a *Admin) handleStats(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	users := a.Store.CountUsers()
	premium := a.Store.CountPremiumUsers()
	todayPayments := a.Store.SumPayments(time.Now().Truncate(24*time.Hour), time.Now())
	monthPayments := a.Store.SumPayments(time.Now().AddDate(0, 0, -30), time.Now())
	totalMsgs, totalLinked, err := a.Limiter.OwnershipStats()
	if err != nil {
		logger.NotifyAdmin("Ошибка чтения статистики владения: " + err.Error())
	}

	text := fmt.Sprintf(
		"Пользователей: %d\nПремиум: %d\nПлатежи за сутки: %.0f₽\nПлатежи за месяц: %.0f₽\n"+
			"Отслеживаемых сообщений: %d (привязанных: %d)",
		users, premium, todayPayments, monthPayments, totalMsgs, totalLinked)
	bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text))
}

// handleCleanup — ручной запуск зачистки записей владения
func (a *Admin) handleCleanup(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	messages, links, err := a.Limiter.CleanupOldMessageOwnership(24 * time.Hour)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка зачистки: "+err.Error()))
		return
	}
	bot.Send(tgbotapi.NewMessage(msg.Chat.ID,
		fmt.Sprintf("Удалено записей владения: %d, привязок: %d", messages, links)))
}

func (a *Admin) handleBackup(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	AutoBackupDatabase(bot, a.TelegramID, a.DSN)
}
