package scanner

import (
	"errors"
	"fmt"

	"asset-scan/internal/domain/entity"
)

var (
	// ErrPermissionDenied доступ к камере запрещён; повтор только по действию пользователя
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrNoBackend нет ни одного доступного бэкенда захвата
	ErrNoBackend = errors.New("no capture backend available")
)

// FatalError неустранимый сбой сканера: фоллбэк тоже не справился
type FatalError struct {
	Backend entity.BackendKind
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("scanner: %s backend failed: %v", e.Backend, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
