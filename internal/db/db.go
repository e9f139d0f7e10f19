package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open открывает соединение и мигрирует схему. Диалектор передаётся снаружи,
// чтобы тесты могли подставить sqlite вместо Postgres.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.AutoMigrate(
		&RequestLog{},
		&CommandCooldown{},
		&MessageOwnership{},
		&LinkedMessage{},
		&User{},
		&Payment{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// InitDB подключается к Postgres по DSN и завершает процесс при ошибке
func InitDB(dsn string) *gorm.DB {
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := Open(postgres.Open(dsn))
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return db
}
