package ratelimit

import "errors"

var (
	// ErrInvalidResourceKey — пустой или пробельный ключ ресурса
	ErrInvalidResourceKey = errors.New("invalid resource key")

	// ErrInvalidCommandName — пустое имя команды
	ErrInvalidCommandName = errors.New("invalid command name")
)
