package db

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Gift-Price-Telegram-bot/internal/logger"
)

// Store — единственная точка доступа к таблицам рейтлимитера и подписок.
// Все мутации идут через его методы, прямых обращений к gorm.DB выше по
// стеку нет.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// --- Запросы цен (request_logs) ---

// UpsertRequest вставляет либо перезаписывает единственную запись по ключу
// (user, chat, resource). Одиночный атомарный апсерт, без read-modify-write.
func (s *Store) UpsertRequest(userID, chatID int64, resourceKey string, ts int64) error {
	rec := RequestLog{UserID: userID, ChatID: chatID, ResourceKey: resourceKey, Timestamp: ts}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "chat_id"}, {Name: "resource_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&rec).Error
	return wrapStorage(err)
}

func (s *Store) GetRequest(userID, chatID int64, resourceKey string) (int64, bool, error) {
	var rec RequestLog
	err := s.db.Where("user_id = ? AND chat_id = ? AND resource_key = ?", userID, chatID, resourceKey).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStorage(err)
	}
	return rec.Timestamp, true, nil
}

// --- Кулдауны команд (command_cooldowns) ---

func (s *Store) UpsertCommandCooldown(userID, chatID int64, commandName string, ts int64) error {
	rec := CommandCooldown{UserID: userID, ChatID: chatID, CommandName: commandName, Timestamp: ts}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "chat_id"}, {Name: "command_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&rec).Error
	return wrapStorage(err)
}

func (s *Store) GetCommandCooldown(userID, chatID int64, commandName string) (int64, bool, error) {
	var rec CommandCooldown
	err := s.db.Where("user_id = ? AND chat_id = ? AND command_name = ?", userID, chatID, commandName).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStorage(err)
	}
	return rec.Timestamp, true, nil
}

// --- Владение сообщениями (message_ownerships, linked_messages) ---

// CreateOwnership назначает владельца сообщению. Возвращает
// ErrDuplicateOwnership, если запись уже есть — владелец назначается
// ровно один раз, молчаливая перезапись запрещена.
func (s *Store) CreateOwnership(chatID int64, messageID int, ownerUserID int64, ts int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing MessageOwnership
		err := tx.Where("chat_id = ? AND message_id = ?", chatID, messageID).First(&existing).Error
		if err == nil {
			return ErrDuplicateOwnership
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&MessageOwnership{
			ChatID:      chatID,
			MessageID:   messageID,
			OwnerUserID: ownerUserID,
			CreatedAt:   ts,
		}).Error
	})
	if errors.Is(err, ErrDuplicateOwnership) {
		return err
	}
	return wrapStorage(err)
}

func (s *Store) GetOwner(chatID int64, messageID int) (int64, bool, error) {
	var rec MessageOwnership
	err := s.db.Where("chat_id = ? AND message_id = ?", chatID, messageID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStorage(err)
	}
	return rec.OwnerUserID, true, nil
}

// LinkMessage привязывает вторичное сообщение к основному. Если основного
// нет — логируем и выходим: привязка best-effort, на корректность не влияет.
func (s *Store) LinkMessage(chatID int64, primaryMessageID, secondaryMessageID int) error {
	_, found, err := s.GetOwner(chatID, primaryMessageID)
	if err != nil {
		return err
	}
	if !found {
		logger.Warn("link_message: primary not tracked, skipping",
			zap.Int64("chat_id", chatID), zap.Int("primary_message_id", primaryMessageID))
		return nil
	}
	err = s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&LinkedMessage{
		ChatID:             chatID,
		PrimaryMessageID:   primaryMessageID,
		SecondaryMessageID: secondaryMessageID,
	}).Error
	return wrapStorage(err)
}

func (s *Store) GetLinkedMessages(chatID int64, primaryMessageID int) ([]int, error) {
	var recs []LinkedMessage
	err := s.db.Where("chat_id = ? AND primary_message_id = ?", chatID, primaryMessageID).
		Order("secondary_message_id").Find(&recs).Error
	if err != nil {
		return nil, wrapStorage(err)
	}
	ids := make([]int, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.SecondaryMessageID)
	}
	return ids, nil
}

// DeleteOwnership удаляет запись о владении вместе с привязками —
// вызывается, когда владелец удалил сообщение.
func (s *Store) DeleteOwnership(chatID int64, messageID int) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND primary_message_id = ?", chatID, messageID).
			Delete(&LinkedMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ? AND message_id = ?", chatID, messageID).
			Delete(&MessageOwnership{}).Error
	})
	return wrapStorage(err)
}

// DeleteOwnershipOlderThan — массовая зачистка по возрасту. Удаления
// построчные (DELETE ... WHERE), конкурентные чтения по другим ключам не
// блокируются.
func (s *Store) DeleteOwnershipOlderThan(cutoff int64) (messages, links int64, err error) {
	var old []MessageOwnership
	if err := s.db.Where("created_at < ?", cutoff).Find(&old).Error; err != nil {
		return 0, 0, wrapStorage(err)
	}
	for _, rec := range old {
		res := s.db.Where("chat_id = ? AND primary_message_id = ?", rec.ChatID, rec.MessageID).
			Delete(&LinkedMessage{})
		if res.Error != nil {
			return messages, links, wrapStorage(res.Error)
		}
		links += res.RowsAffected

		res = s.db.Where("chat_id = ? AND message_id = ?", rec.ChatID, rec.MessageID).
			Delete(&MessageOwnership{})
		if res.Error != nil {
			return messages, links, wrapStorage(res.Error)
		}
		messages += res.RowsAffected
	}
	return messages, links, nil
}

// OwnershipStats возвращает счётчики для админской статистики
func (s *Store) OwnershipStats() (totalMessages, totalLinked int64, err error) {
	if err = s.db.Model(&MessageOwnership{}).Count(&totalMessages).Error; err != nil {
		return 0, 0, wrapStorage(err)
	}
	if err = s.db.Model(&LinkedMessage{}).Count(&totalLinked).Error; err != nil {
		return totalMessages, 0, wrapStorage(err)
	}
	return totalMessages, totalLinked, nil
}

// --- Пользователи и платежи ---

func (s *Store) GetOrCreateUser(telegramID int64, username string) (User, error) {
	var user User
	err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{TelegramID: telegramID, Username: username, CreatedAt: time.Now().Unix()}
		if err := s.db.Create(&user).Error; err != nil {
			return user, wrapStorage(err)
		}
		return user, nil
	}
	if err != nil {
		return user, wrapStorage(err)
	}
	if username != "" && user.Username != username {
		s.db.Model(&user).Update("username", username)
	}
	return user, nil
}

// IsPremium — активна ли премиум-подписка на данный момент
func (s *Store) IsPremium(telegramID int64, now int64) (bool, error) {
	var user User
	err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStorage(err)
	}
	return user.PremiumUntil != nil && *user.PremiumUntil > now, nil
}

func (s *Store) CreatePayment(userID uint, yooKassaID string, amount, months int) error {
	pay := Payment{
		UserID:     userID,
		YooKassaID: yooKassaID,
		Amount:     amount,
		Status:     "pending",
		Months:     &months,
		CreatedAt:  time.Now().Unix(),
	}
	return wrapStorage(s.db.Create(&pay).Error)
}

// MarkPaymentSucceeded меняет статус платежа и продлевает премиум
// пользователю. Возвращает обновлённого пользователя для уведомления.
func (s *Store) MarkPaymentSucceeded(yooKassaID string) (User, error) {
	var user User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var pay Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("yoo_kassa_id = ? AND status = ?", yooKassaID, "pending").First(&pay).Error; err != nil {
			return err
		}
		if err := tx.Model(&pay).Update("status", "succeeded").Error; err != nil {
			return err
		}
		if err := tx.First(&user, pay.UserID).Error; err != nil {
			return err
		}
		months := 1
		if pay.Months != nil {
			months = *pay.Months
		}
		now := time.Now().Unix()
		base := now
		if user.PremiumUntil != nil && *user.PremiumUntil > now {
			base = *user.PremiumUntil
		}
		until := base + int64(months)*30*24*60*60
		return tx.Model(&user).Updates(map[string]interface{}{
			"premium_until": until,
			"notified_end":  false,
		}).Error
	})
	if err != nil {
		return user, wrapStorage(err)
	}
	return user, nil
}

// FindExpiringPremium возвращает пользователей, у которых премиум кончается
// в интервале (now, soon] и которые ещё не были уведомлены
func (s *Store) FindExpiringPremium(now, soon int64) ([]User, error) {
	var users []User
	err := s.db.Where("premium_until IS NOT NULL AND premium_until > ? AND premium_until <= ? AND notified_end = false", now, soon).
		Find(&users).Error
	if err != nil {
		return nil, wrapStorage(err)
	}
	return users, nil
}

func (s *Store) MarkNotifiedEnd(userID uint) error {
	return wrapStorage(s.db.Model(&User{}).Where("id = ?", userID).Update("notified_end", true).Error)
}

// --- Админские методы для статистики ---

func (s *Store) CountUsers() int {
	var count int64
	s.db.Model(&User{}).Count(&count)
	return int(count)
}

func (s *Store) CountPremiumUsers() int {
	var count int64
	s.db.Model(&User{}).Where("premium_until IS NOT NULL AND premium_until > ?", time.Now().Unix()).Count(&count)
	return int(count)
}

func (s *Store) SumPayments(from, to time.Time) float64 {
	var sum int64
	s.db.Model(&Payment{}).Where("status = ? AND created_at >= ? AND created_at <= ?", "succeeded", from.Unix(), to.Unix()).
		Select("COALESCE(sum(amount), 0)").Scan(&sum)
	return float64(sum)
}

func (s *Store) FindUser(telegramID int64) (User, error) {
	var user User
	if err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}
