package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BotToken        string
	AdminTelegramID string
	DatabaseURL     string
	YooKassaShopID  string
	YooKassaSecret  string
	PortalsAPIKey   string

	// Окна кулдаунов и ретеншн записей владения сообщениями
	ResourceCooldownSeconds int
	CommandCooldownSeconds  int
	OwnershipRetentionHours int

	CardFontPath string
	WebhookAddr  string
}

var AppCfg AppConfig

func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	AppCfg.BotToken = os.Getenv("BOT_TOKEN")
	AppCfg.AdminTelegramID = os.Getenv("ADMIN_TELEGRAM_ID")
	AppCfg.DatabaseURL = os.Getenv("DATABASE_URL")
	AppCfg.YooKassaShopID = os.Getenv("YOOKASSA_SHOP_ID")
	AppCfg.YooKassaSecret = os.Getenv("YOOKASSA_SECRET_KEY")
	AppCfg.PortalsAPIKey = os.Getenv("PORTALS_API_KEY")

	AppCfg.ResourceCooldownSeconds = envInt("RESOURCE_COOLDOWN_SECONDS", 60)
	AppCfg.CommandCooldownSeconds = envInt("COMMAND_COOLDOWN_SECONDS", 3)
	AppCfg.OwnershipRetentionHours = envInt("OWNERSHIP_RETENTION_HOURS", 24)

	AppCfg.CardFontPath = os.Getenv("CARD_FONT_PATH")
	if AppCfg.CardFontPath == "" {
		AppCfg.CardFontPath = "assets/fonts/Roboto-Bold.ttf"
	}
	AppCfg.WebhookAddr = os.Getenv("WEBHOOK_ADDR")
	if AppCfg.WebhookAddr == "" {
		AppCfg.WebhookAddr = ":8080"
	}

	if AppCfg.BotToken == "" || AppCfg.AdminTelegramID == "" || AppCfg.DatabaseURL == "" {
		log.Fatal("Critical environment variables are missing. Bot will exit.")
	}
	if AppCfg.YooKassaShopID == "" || AppCfg.YooKassaSecret == "" {
		log.Println("YooKassa credentials are missing, premium purchases are disabled")
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return n
}
