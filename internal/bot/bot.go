package bot

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Gift-Price-Telegram-bot/internal/admin"
	"Gift-Price-Telegram-bot/internal/db"
	"Gift-Price-Telegram-bot/internal/logger"
	"Gift-Price-Telegram-bot/internal/pricing"
	"Gift-Price-Telegram-bot/internal/ratelimit"
	"Gift-Price-Telegram-bot/internal/render"
)

// Bot держит все зависимости диспетчера явно — без пакетных глобалов
type Bot struct {
	api     *tgbotapi.BotAPI
	store   *db.Store
	limiter *ratelimit.Limiter
	prices  *pricing.Client
	cards   *render.CardRenderer
	admin   *admin.Admin
}

func New(api *tgbotapi.BotAPI, store *db.Store, limiter *ratelimit.Limiter, prices *pricing.Client, cards *render.CardRenderer, adm *admin.Admin) *Bot {
	return &Bot{
		api:     api,
		store:   store,
		limiter: limiter,
		prices:  prices,
		cards:   cards,
		admin:   adm,
	}
}

// Start запускает long polling. Каждый апдейт обрабатывается в своей
// горутине: троттлинг и владение живут в БД, порядок между чатами не важен.
func (b *Bot) Start() {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		go func(update tgbotapi.Update) {
			defer logger.NotifyOnPanic("HandleUpdate")
			b.HandleUpdate(update)
		}(update)
	}
}
