package db

import "errors"

var (
	// ErrStorage оборачивает любые ошибки ввода-вывода хранилища.
	// Проверяется вызывающими через errors.Is.
	ErrStorage = errors.New("storage failure")

	// ErrDuplicateOwnership — попытка назначить другого владельца уже
	// отслеживаемому сообщению. Это баг вызывающего кода, не гасить.
	ErrDuplicateOwnership = errors.New("message already has an owner")
)
