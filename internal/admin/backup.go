package admin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Gift-Price-Telegram-bot/internal/logger"
)

const backupDir = "backups"

// BackupDatabase создает дамп БД Postgres в указанный файл
func BackupDatabase(filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_dump", dsn, "-Fc", "-f", filename)
	return cmd.Run()
}

// RestoreDatabase восстанавливает БД из дампа
func RestoreDatabase(filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_restore", "-d", dsn, filename)
	return cmd.Run()
}

// CleanOldBackups удаляет дампы старше maxAge
func CleanOldBackups(dir string, maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(dir, "autobackup_*.dump"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(f)
		}
	}
	return nil
}

// AutoBackupDatabase делает дамп, отправляет его админу в Telegram и
// подчищает старые файлы. Запускается кроном и командой /admin_backup.
func AutoBackupDatabase(bot *tgbotapi.BotAPI, adminID int64, dsn string) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		logger.NotifyAdmin("Не удалось создать директорию бэкапов: " + err.Error())
		return
	}
	filename := filepath.Join(backupDir, fmt.Sprintf("autobackup_%s.dump", time.Now().Format("20060102_150405")))
	if err := BackupDatabase(filename, dsn); err != nil {
		logger.NotifyAdmin("Ошибка автобэкапа БД: " + err.Error())
		return
	}
	doc := tgbotapi.NewDocument(adminID, tgbotapi.FilePath(filename))
	doc.Caption = "Автобэкап БД"
	if _, err := bot.Send(doc); err != nil {
		logger.NotifyAdmin("Не удалось отправить бэкап: " + err.Error())
	}
	if err := CleanOldBackups(backupDir, 30*24*time.Hour); err != nil {
		logger.NotifyAdmin("Ошибка очистки старых бэкапов: " + err.Error())
	}
}
