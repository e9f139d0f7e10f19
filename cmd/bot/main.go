package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"Gift-Price-Telegram-bot/config"
	"Gift-Price-Telegram-bot/internal/admin"
	"Gift-Price-Telegram-bot/internal/bot"
	"Gift-Price-Telegram-bot/internal/db"
	"Gift-Price-Telegram-bot/internal/logger"
	"Gift-Price-Telegram-bot/internal/pricing"
	"Gift-Price-Telegram-bot/internal/ratelimit"
	"Gift-Price-Telegram-bot/internal/render"
	"Gift-Price-Telegram-bot/internal/services"
)

func main() {
	config.LoadConfig()

	adminID, err := strconv.ParseInt(config.AppCfg.AdminTelegramID, 10, 64)
	if err != nil {
		log.Fatalf("invalid ADMIN_TELEGRAM_ID: %v", err)
	}

	gormDB := db.InitDB(config.AppCfg.DatabaseURL)
	store := db.NewStore(gormDB)

	limiter := ratelimit.New(store,
		time.Duration(config.AppCfg.ResourceCooldownSeconds)*time.Second,
		time.Duration(config.AppCfg.CommandCooldownSeconds)*time.Second)
	// premium дороже спамить, окно длиннее прочих кнопок
	limiter.SetCommandWindow("premium", 10*time.Second)

	botapi, err := tgbotapi.NewBotAPI(config.AppCfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	logger.InitNotifier(botapi, adminID)

	// --- Логирование в файл и консоль ---
	logFile, err := os.OpenFile("bot.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Не удалось открыть файл логов: %v", err)
	}
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	prices := pricing.NewClient(config.AppCfg.PortalsAPIKey)
	cards, err := render.NewCardRenderer(config.AppCfg.CardFontPath)
	if err != nil {
		log.Fatalf("Card renderer init failed: %v", err)
	}

	adm := &admin.Admin{
		TelegramID: adminID,
		Store:      store,
		Limiter:    limiter,
		DSN:        config.AppCfg.DatabaseURL,
	}

	retention := time.Duration(config.AppCfg.OwnershipRetentionHours) * time.Hour

	c := cron.New()
	// Зачистка записей владения раз в сутки
	c.AddFunc("0 4 * * *", func() {
		services.CleanupMessageOwnership(limiter, retention)
	})
	// Уведомления о скором окончании премиума (раз в сутки в 10:00)
	c.AddFunc("0 10 * * *", func() {
		services.NotifyExpiringPremium(botapi, store, 3)
	})
	// Автобэкап БД раз в сутки
	c.AddFunc("0 3 * * *", func() {
		admin.AutoBackupDatabase(botapi, adminID, config.AppCfg.DatabaseURL)
	})
	c.Start()

	// Webhook-сервер YooKassa + health
	go func() {
		http.HandleFunc("/yookassa/webhook", services.WebhookHandler(botapi, store))
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		log.Printf("Запуск webhook-сервера на %s", config.AppCfg.WebhookAddr)
		if err := http.ListenAndServe(config.AppCfg.WebhookAddr, nil); err != nil {
			log.Fatalf("Webhook server error: %v", err)
		}
	}()

	// Запуск Telegram-бота (polling)
	b := bot.New(botapi, store, limiter, prices, cards, adm)
	b.Start()
}
