package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Gift-Price-Telegram-bot/config"
	"Gift-Price-Telegram-bot/internal/db"
	"Gift-Price-Telegram-bot/internal/logger"
)

// Проверка HMAC подписи webhook YooKassa (Authorization или Content-Yoomoney-Signature)
func checkYooKassaSignature(secret string, body []byte, authHeader, yoomoneyHeader string) bool {
	var signatures []string
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "HMAC ") || strings.HasPrefix(authHeader, "HMAC-SHA256 ") {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 {
				signatures = append(signatures, parts[1])
			}
		}
	}
	if yoomoneyHeader != "" {
		signatures = append(signatures, yoomoneyHeader)
	}
	if len(signatures) == 0 {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	calc := hex.EncodeToString(h.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(calc)) {
			return true
		}
	}
	return false
}

// WebhookHandler обрабатывает уведомления от YooKassa: успешный платёж
// включает премиум и уведомляет пользователя
func WebhookHandler(bot *tgbotapi.BotAPI, store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer logger.NotifyOnPanic("WebhookHandler")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.NotifyAdmin("Ошибка чтения тела webhook: " + err.Error())
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.Body.Close()
		authHeader := r.Header.Get("Authorization")
		yoomoneyHeader := r.Header.Get("Content-Yoomoney-Signature")
		if !checkYooKassaSignature(config.AppCfg.YooKassaSecret, body, authHeader, yoomoneyHeader) {
			logger.NotifyAdmin("Недействительная подпись webhook")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid signature"))
			return
		}
		var event struct {
			Event  string `json:"event"`
			Object struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"object"`
		}
		if err := json.Unmarshal(body, &event); err != nil {
			logger.NotifyAdmin("Ошибка парсинга webhook: " + err.Error())
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if event.Object.Status == "succeeded" {
			user, err := store.MarkPaymentSucceeded(event.Object.ID)
			if err != nil {
				logger.NotifyAdmin("Платёж получен, но не применён: " + event.Object.ID + ": " + err.Error())
				// 500, чтобы YooKassa повторила доставку
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			bot.Send(tgbotapi.NewMessage(user.TelegramID, "Premium активирован. Спасибо!"))
		}
		w.WriteHeader(http.StatusOK)
	}
}
