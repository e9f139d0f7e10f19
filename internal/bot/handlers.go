package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Gift-Price-Telegram-bot/internal/logger"
	"Gift-Price-Telegram-bot/internal/pricing"
	"Gift-Price-Telegram-bot/internal/ratelimit"
)

func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	// Регистрируем/обновляем пользователя в БД при любом апдейте
	if update.Message != nil && update.Message.From != nil {
		if _, err := b.store.GetOrCreateUser(update.Message.From.ID, update.Message.From.UserName); err != nil {
			logger.Error("get or create user", zap.Error(err))
		}
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(msg)
		case "help":
			b.handleHelp(msg)
		case "premium":
			b.handlePremiumCommand(msg)
		default:
			b.admin.HandleCommand(b.api, msg)
		}
		return
	}
	if msg.Text == "" {
		return
	}
	// Свободный текст — название подарка или стикера
	b.handlePriceRequest(msg.From.ID, msg.Chat.ID, msg.Text, msg.Chat.IsPrivate())
}

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	// /start троттлится через ресурсное окно с сентинел-ключом
	allowed, _, err := b.limiter.CanRequest(msg.From.ID, msg.Chat.ID, ratelimit.StartCommandKey)
	if err != nil {
		// Троттл косметический: при отказе хранилища пропускаем (fail open)
		logger.Error("start throttle check", zap.Error(err))
		allowed = true
	}
	if !allowed {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID,
		"Привет! Пришли название подарка или стикера — покажу текущий флор с маркетплейсов.\n"+
			"Premium убирает промо и сокращает кулдаун: /premium")
	reply.ReplyMarkup = GetReplyKeyboard(b.admin.IsAdmin(msg.From.ID))
	b.api.Send(reply)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	allowed, wait, err := b.limiter.CanUseCommand(msg.From.ID, msg.Chat.ID, "help")
	if err != nil {
		logger.Error("help throttle check", zap.Error(err))
		allowed = true
	}
	if !allowed {
		b.notifyWait(msg.Chat.ID, msg.Chat.IsPrivate(), wait)
		return
	}
	b.api.Send(tgbotapi.NewMessage(msg.Chat.ID,
		"Пришли название подарка (например, «tama» или «durov's cap») — бот построит карточку с ценой.\n"+
			"Кнопки под карточкой доступны только автору запроса."))
}

// handlePriceRequest — основной сценарий: троттл, цена, карточка, владение
func (b *Bot) handlePriceRequest(userID, chatID int64, text string, private bool) {
	window := b.limiter.ResourceWindow()
	if premium, err := b.store.IsPremium(userID, time.Now().Unix()); err == nil && premium {
		window /= 2
	}
	allowed, wait, err := b.limiter.CanRequestWindow(userID, chatID, text, window)
	if errors.Is(err, ratelimit.ErrInvalidResourceKey) {
		if private {
			b.api.Send(tgbotapi.NewMessage(chatID, "Пришлите название подарка текстом"))
		}
		return
	}
	if err != nil {
		// Отказ хранилища не должен лишать пользователя разового ответа
		logger.Error("resource throttle check", zap.Error(err))
		logger.NotifyAdmin("Rate limiter storage failure: " + err.Error())
		allowed = true
	}
	if !allowed {
		b.notifyWait(chatID, private, wait)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	price, err := b.prices.FetchPrice(ctx, text)
	if errors.Is(err, pricing.ErrNoMatch) {
		b.api.Send(tgbotapi.NewMessage(chatID, "Не нашёл такой подарок или стикер. Проверьте название."))
		return
	}
	if err != nil {
		logger.Error("fetch price", zap.String("resource", text), zap.Error(err))
		b.api.Send(tgbotapi.NewMessage(chatID, "Площадки не отвечают, попробуйте позже."))
		return
	}

	img, err := b.cards.Render(price)
	if err != nil {
		logger.Error("render card", zap.Error(err))
		b.api.Send(tgbotapi.NewMessage(chatID, priceText(price)))
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "price.png", Bytes: img})
	photo.Caption = priceText(price)
	photo.ReplyMarkup = priceCardKeyboard(price.Name)
	sent, err := b.api.Send(photo)
	if err != nil {
		logger.Error("send price card", zap.Error(err))
		return
	}
	// Владелец назначается сразу после подтверждения отправки
	if err := b.limiter.RegisterMessage(userID, chatID, sent.MessageID); err != nil {
		logger.Error("register message", zap.Error(err))
	}

	b.maybeSendPromo(userID, chatID, sent.MessageID)
}

// maybeSendPromo досылает промо не-премиум пользователям и привязывает его
// к карточке: удаление карточки удалит и промо
func (b *Bot) maybeSendPromo(userID, chatID int64, primaryMessageID int) {
	premium, err := b.store.IsPremium(userID, time.Now().Unix())
	if err != nil {
		logger.Error("premium check", zap.Error(err))
		return
	}
	if premium {
		return
	}
	promo := tgbotapi.NewMessage(chatID, "Без кулдауна и промо — Premium: /premium")
	sent, err := b.api.Send(promo)
	if err != nil {
		return
	}
	if err := b.limiter.RegisterLinkedMessage(userID, chatID, primaryMessageID, sent.MessageID); err != nil {
		logger.Error("register linked message", zap.Error(err))
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	action, arg := parseCallback(cb.Data)
	switch action {
	case "del":
		b.handleDelete(cb, userID, chatID, messageID)
	case "refresh":
		b.handleRefresh(cb, userID, chatID, messageID, arg)
	case "premium":
		b.handlePremiumButton(cb, userID, chatID, messageID)
	case "buy":
		b.handleBuy(cb, userID, chatID, arg)
	default:
		b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	}
}

// requireOwner проверяет владение кнопкой. Любая неоднозначность —
// отказ: неизвестное сообщение и ошибка хранилища закрыты наглухо.
func (b *Bot) requireOwner(cb *tgbotapi.CallbackQuery, userID, chatID int64, messageID int) bool {
	ok, err := b.limiter.CanDeleteMessage(userID, chatID, messageID)
	if err != nil {
		logger.Error("ownership check", zap.Error(err))
		b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, "Не удалось проверить доступ, попробуйте позже"))
		return false
	}
	if !ok {
		b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, "Только автор запроса может использовать эту кнопку"))
		return false
	}
	return true
}

func (b *Bot) handleDelete(cb *tgbotapi.CallbackQuery, userID, chatID int64, messageID int) {
	if !b.requireOwner(cb, userID, chatID, messageID) {
		return
	}
	linked, err := b.limiter.GetLinkedMessages(chatID, messageID)
	if err != nil {
		logger.Error("get linked messages", zap.Error(err))
	}
	for _, id := range linked {
		b.api.Request(tgbotapi.NewDeleteMessage(chatID, id))
	}
	b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err := b.limiter.ForgetMessage(chatID, messageID); err != nil {
		logger.Error("forget message", zap.Error(err))
	}
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Удалено"))
}

func (b *Bot) handleRefresh(cb *tgbotapi.CallbackQuery, userID, chatID int64, messageID int, resourceKey string) {
	if !b.requireOwner(cb, userID, chatID, messageID) {
		return
	}
	allowed, wait, err := b.limiter.CanRequest(userID, chatID, resourceKey)
	if err != nil {
		logger.Error("refresh throttle check", zap.Error(err))
		allowed = true
	}
	if !allowed {
		b.api.Request(tgbotapi.NewCallback(cb.ID, fmt.Sprintf("Подождите %d сек.", wait)))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	price, err := b.prices.FetchPrice(ctx, resourceKey)
	if err != nil {
		b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, "Не удалось обновить цену"))
		return
	}
	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, priceText(price))
	kb := priceCardKeyboard(price.Name)
	edit.ReplyMarkup = &kb
	b.api.Send(edit)
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Обновлено"))
}

func (b *Bot) notifyWait(chatID int64, private bool, wait int) {
	// В группах молчим, чтобы не плодить спам
	if !private {
		return
	}
	b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Подождите %d сек. перед следующим запросом", wait)))
}

func priceText(p pricing.Price) string {
	return fmt.Sprintf("%s — флор %.2f TON, средняя %.2f TON", p.Name, p.FloorTON, p.AvgTON)
}

func parseMonths(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
