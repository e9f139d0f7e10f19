package db

// RequestLog хранит время последнего запроса цены: (user, chat, resource) -> timestamp.
// chat_id = 0 зарезервирован для inline-режима (запрос вне чата).
type RequestLog struct {
	UserID      int64  `gorm:"primaryKey;autoIncrement:false"`
	ChatID      int64  `gorm:"primaryKey;autoIncrement:false"`
	ResourceKey string `gorm:"primaryKey;size:128"`
	Timestamp   int64
}

// CommandCooldown — то же самое для обычных команд и кнопок (premium, help и т.д.)
type CommandCooldown struct {
	UserID      int64  `gorm:"primaryKey;autoIncrement:false"`
	ChatID      int64  `gorm:"primaryKey;autoIncrement:false"`
	CommandName string `gorm:"primaryKey;size:64"`
	Timestamp   int64
}

// MessageOwnership фиксирует, для какого пользователя бот отправил сообщение.
// Владелец назначается один раз при отправке и не переназначается.
type MessageOwnership struct {
	ChatID      int64 `gorm:"primaryKey;autoIncrement:false"`
	MessageID   int   `gorm:"primaryKey;autoIncrement:false"`
	OwnerUserID int64
	CreatedAt   int64
}

// LinkedMessage привязывает вторичное сообщение (например, промо) к основному:
// при удалении основного удаляется и вторичное. Своего владельца у него нет.
type LinkedMessage struct {
	ChatID             int64 `gorm:"primaryKey;autoIncrement:false"`
	PrimaryMessageID   int   `gorm:"primaryKey;autoIncrement:false"`
	SecondaryMessageID int   `gorm:"primaryKey;autoIncrement:false"`
}

type User struct {
	ID           uint  `gorm:"primaryKey"`
	TelegramID   int64 `gorm:"uniqueIndex"`
	Username     string
	PremiumUntil *int64
	NotifiedEnd  bool `gorm:"default:false"` // уведомление о скором окончании премиума
	CreatedAt    int64
}

// Payment представляет платёж за премиум-подписку
type Payment struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint
	YooKassaID string `gorm:"index"`
	Amount     int
	Status     string
	Months     *int
	CreatedAt  int64
}
