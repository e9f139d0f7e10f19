package ratelimit

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"Gift-Price-Telegram-bot/internal/db"
	"Gift-Price-Telegram-bot/internal/logger"
)

// InlineChatID — сентинел для запросов без чата (inline-режим). Telegram
// никогда не выдаёт чатам id 0, коллизий с реальными чатами нет.
const InlineChatID int64 = 0

// StartCommandKey — сентинел ресурса для /start и прочих действий,
// троттлящихся через ресурсное окно, но не привязанных к подарку/стикеру.
const StartCommandKey = "start_command"

// Limiter — персистентный рейтлимитер и реестр владения сообщениями.
// Решает два вопроса: «можно ли выполнить действие прямо сейчас» и «кому
// разрешено трогать кнопки этого сообщения». Конструируется один раз на
// процесс и передаётся явно, глобального состояния нет.
//
// Последовательность решения — чтение метки, затем апсерт. Две конкурентные
// проверки одного ключа в один и тот же миг могут обе пройти; для троттла
// цен это допустимо (см. тесты), строгой квотой лимитер не является.
type Limiter struct {
	store *db.Store

	resourceWindow time.Duration
	commandWindow  time.Duration            // окно по умолчанию для команд
	commandWindows map[string]time.Duration // окна отдельных команд

	now func() time.Time
}

func New(store *db.Store, resourceWindow, commandWindow time.Duration) *Limiter {
	return &Limiter{
		store:          store,
		resourceWindow: resourceWindow,
		commandWindow:  commandWindow,
		commandWindows: make(map[string]time.Duration),
		now:            time.Now,
	}
}

// SetCommandWindow задаёт отдельное окно для конкретной команды
func (l *Limiter) SetCommandWindow(commandName string, window time.Duration) {
	l.commandWindows[commandName] = window
}

// ResourceWindow возвращает текущее окно ресурсных запросов
func (l *Limiter) ResourceWindow() time.Duration {
	return l.resourceWindow
}

// CanRequest решает, можно ли пользователю запросить цену ресурса.
// Разрешённая попытка перезаписывает метку времени (следующее окно
// отсчитывается от неё). Отклонённая попытка метку НЕ трогает: иначе
// частые ретраи бесконечно отодвигали бы окно и кулдаун не кончался бы
// никогда. seconds остаётся >= 1 на всём интервале запрета — секунды
// целые, округление вверх.
func (l *Limiter) CanRequest(userID, chatID int64, resourceKey string) (allowed bool, seconds int, err error) {
	return l.CanRequestWindow(userID, chatID, resourceKey, l.resourceWindow)
}

// CanRequestWindow — то же с явным окном: премиум-пользователям диспетчер
// передаёт укороченное
func (l *Limiter) CanRequestWindow(userID, chatID int64, resourceKey string, w time.Duration) (allowed bool, seconds int, err error) {
	key := normalizeKey(resourceKey)
	if key == "" {
		return false, 0, ErrInvalidResourceKey
	}
	now := l.now().Unix()
	last, found, err := l.store.GetRequest(userID, chatID, key)
	if err != nil {
		return false, 0, err
	}
	window := int64(w / time.Second)
	if found && now-last < window {
		remaining := int(window - (now - last))
		logger.Debug("resource request throttled",
			zap.Int64("user_id", userID), zap.Int64("chat_id", chatID),
			zap.String("resource", key), zap.Int("seconds_remaining", remaining))
		return false, remaining, nil
	}
	if err := l.store.UpsertRequest(userID, chatID, key, now); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

// CanUseCommand — то же для обычных команд и кнопок, с коротким окном
func (l *Limiter) CanUseCommand(userID, chatID int64, commandName string) (allowed bool, seconds int, err error) {
	name := normalizeKey(commandName)
	if name == "" {
		return false, 0, ErrInvalidCommandName
	}
	now := l.now().Unix()
	last, found, err := l.store.GetCommandCooldown(userID, chatID, name)
	if err != nil {
		return false, 0, err
	}
	w := l.commandWindow
	if cw, ok := l.commandWindows[name]; ok {
		w = cw
	}
	window := int64(w / time.Second)
	if found && now-last < window {
		remaining := int(window - (now - last))
		return false, remaining, nil
	}
	if err := l.store.UpsertCommandCooldown(userID, chatID, name, now); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

// RegisterMessage фиксирует владельца отправленного ботом сообщения.
// Повторная регистрация тем же пользователем — no-op; другим —
// db.ErrDuplicateOwnership (владелец не переназначается никогда).
func (l *Limiter) RegisterMessage(userID, chatID int64, messageID int) error {
	owner, found, err := l.store.GetOwner(chatID, messageID)
	if err != nil {
		return err
	}
	if found {
		if owner == userID {
			return nil
		}
		return db.ErrDuplicateOwnership
	}
	return l.store.CreateOwnership(chatID, messageID, userID, l.now().Unix())
}

// CanDeleteMessage — true только если записанный владелец совпадает с
// userID. Неизвестное сообщение = отказ: запись могла истечь по ретеншну,
// но «не можем проверить» никогда не означает «можно».
func (l *Limiter) CanDeleteMessage(userID, chatID int64, messageID int) (bool, error) {
	owner, found, err := l.store.GetOwner(chatID, messageID)
	if err != nil {
		return false, err
	}
	return found && owner == userID, nil
}

// GetMessageOwner — read-only доступ для логов и диагностики
func (l *Limiter) GetMessageOwner(chatID int64, messageID int) (int64, bool, error) {
	return l.store.GetOwner(chatID, messageID)
}

// RegisterLinkedMessage привязывает вторичное сообщение к основному для
// каскадного удаления. Best-effort: если основное не отслеживается или
// записано на другого пользователя — логируем и выходим без ошибки.
func (l *Limiter) RegisterLinkedMessage(userID, chatID int64, primaryMessageID, secondaryMessageID int) error {
	owner, found, err := l.store.GetOwner(chatID, primaryMessageID)
	if err != nil {
		return err
	}
	if found && owner != userID {
		logger.Warn("linked message owner mismatch, skipping",
			zap.Int64("chat_id", chatID), zap.Int("primary_message_id", primaryMessageID),
			zap.Int64("user_id", userID), zap.Int64("owner_id", owner))
		return nil
	}
	return l.store.LinkMessage(chatID, primaryMessageID, secondaryMessageID)
}

// GetLinkedMessages возвращает вторичные сообщения основного
func (l *Limiter) GetLinkedMessages(chatID int64, primaryMessageID int) ([]int, error) {
	return l.store.GetLinkedMessages(chatID, primaryMessageID)
}

// ForgetMessage убирает запись о владении после удаления сообщения
func (l *Limiter) ForgetMessage(chatID int64, messageID int) error {
	return l.store.DeleteOwnership(chatID, messageID)
}

// CleanupOldMessageOwnership удаляет записи старше maxAge вместе с их
// привязками. Чистая гигиена хранилища: на авторизацию не влияет,
// неизвестное сообщение и так fail-closed.
func (l *Limiter) CleanupOldMessageOwnership(maxAge time.Duration) (messages, links int64, err error) {
	cutoff := l.now().Add(-maxAge).Unix()
	return l.store.DeleteOwnershipOlderThan(cutoff)
}

// OwnershipStats — счётчики для админской статистики
func (l *Limiter) OwnershipStats() (totalMessages, totalLinked int64, err error) {
	return l.store.OwnershipStats()
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
