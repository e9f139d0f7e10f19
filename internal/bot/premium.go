package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Gift-Price-Telegram-bot/config"
	"Gift-Price-Telegram-bot/internal/logger"
	"Gift-Price-Telegram-bot/internal/services"
)

// Цены премиума в рублях по сроку
var premiumPlans = map[int]int{
	1:  149,
	3:  399,
	12: 1290,
}

const premiumOffer = "Premium: без промо-сообщений и с коротким кулдауном.\nВыберите срок:"

func (b *Bot) handlePremiumCommand(msg *tgbotapi.Message) {
	allowed, wait, err := b.limiter.CanUseCommand(msg.From.ID, msg.Chat.ID, "premium")
	if err != nil {
		logger.Error("premium throttle check", zap.Error(err))
		allowed = true
	}
	if !allowed {
		b.notifyWait(msg.Chat.ID, msg.Chat.IsPrivate(), wait)
		return
	}
	b.sendPremiumOffer(msg.From.ID, msg.Chat.ID)
}

// handlePremiumButton — кнопка «Premium» под карточкой. Кнопку может нажать
// кто угодно (она не управляет карточкой), троттлим per-user.
func (b *Bot) handlePremiumButton(cb *tgbotapi.CallbackQuery, userID, chatID int64, messageID int) {
	allowed, wait, err := b.limiter.CanUseCommand(userID, chatID, "premium")
	if err != nil {
		logger.Error("premium throttle check", zap.Error(err))
		allowed = true
	}
	if !allowed {
		b.api.Request(tgbotapi.NewCallback(cb.ID, waitText(wait)))
		return
	}
	b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	b.sendPremiumOffer(userID, chatID)
}

func (b *Bot) sendPremiumOffer(userID, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, premiumOffer)
	msg.ReplyMarkup = premiumKeyboard()
	sent, err := b.api.Send(msg)
	if err != nil {
		logger.Error("send premium offer", zap.Error(err))
		return
	}
	if err := b.limiter.RegisterMessage(userID, chatID, sent.MessageID); err != nil {
		logger.Error("register premium offer", zap.Error(err))
	}
}

func (b *Bot) handleBuy(cb *tgbotapi.CallbackQuery, userID, chatID int64, arg string) {
	months, ok := parseMonths(arg)
	if !ok {
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Некорректный срок"))
		return
	}
	price, ok := premiumPlans[months]
	if !ok {
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Некорректный срок"))
		return
	}
	if config.AppCfg.YooKassaShopID == "" || config.AppCfg.YooKassaSecret == "" {
		b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, "Оплата временно недоступна"))
		return
	}

	user, err := b.store.GetOrCreateUser(userID, cb.From.UserName)
	if err != nil {
		logger.Error("get user for payment", zap.Error(err))
		b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, "Ошибка, попробуйте позже"))
		return
	}
	paymentID, url, err := services.CreateYooKassaPayment(user.ID, price, months,
		config.AppCfg.YooKassaShopID, config.AppCfg.YooKassaSecret)
	if err != nil {
		logger.Error("create yookassa payment", zap.Error(err))
		logger.NotifyAdmin("Ошибка создания платежа: " + err.Error())
		b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, "Ошибка создания платежа"))
		return
	}
	if err := b.store.CreatePayment(user.ID, paymentID, price, months); err != nil {
		logger.Error("save payment", zap.Error(err))
	}
	b.api.Send(tgbotapi.NewMessage(chatID, "Ссылка на оплату: "+url))
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Платёж создан"))
}

func waitText(wait int) string {
	return "Подождите " + strconv.Itoa(wait) + " сек."
}
