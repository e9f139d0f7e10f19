package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// priceCardKeyboard — кнопки под карточкой цены
func priceCardKeyboard(resourceKey string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Обновить", "refresh:"+resourceKey),
			tgbotapi.NewInlineKeyboardButtonData("Удалить", "del"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Premium", "premium"),
		),
	)
}

// premiumKeyboard — выбор срока премиум-подписки
func premiumKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1 мес. — 149₽", "buy:1"),
			tgbotapi.NewInlineKeyboardButtonData("3 мес. — 399₽", "buy:3"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("12 мес. — 1290₽", "buy:12"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Удалить", "del"),
		),
	)
}

func GetReplyKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	if isAdmin {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_stats"),
				tgbotapi.NewKeyboardButton("/admin_cleanup"),
				tgbotapi.NewKeyboardButton("/admin_backup"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/help"),
				tgbotapi.NewKeyboardButton("/premium"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/help"),
			tgbotapi.NewKeyboardButton("/premium"),
		),
	)
}
