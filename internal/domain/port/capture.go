package port

import (
	"context"

	"asset-scan/internal/domain/entity"
)

// CaptureBackend источник кадров (камера, лента изображений)
type CaptureBackend interface {
	// Kind возвращает тип бэкенда
	Kind() entity.BackendKind

	// Probe проверяет доступность без паники и без ошибок: отсутствие даёт Unavailable
	Probe() entity.Capability

	// Open запускает захват. Ошибка трактуется как сбой инициализации бэкенда.
	Open(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle активная сессия захвата
type CaptureHandle interface {
	// Frames канал кадров. Бэкенд не блокируется на отправке: при занятом получателе кадр теряется.
	Frames() <-chan entity.Frame

	// Faults сбои времени выполнения (рендер, устройство)
	Faults() <-chan error

	// Capabilities флаги возможностей бэкенда
	Capabilities() entity.Capabilities

	// Decoder декодер символов, парный этому бэкенду
	Decoder() SymbolDecoder

	// Close освобождает устройство
	Close() error
}

// PermissionRequester запрашивает доступ к камере (может ждать ответа пользователя)
type PermissionRequester interface {
	RequestCamera(ctx context.Context) (bool, error)
}

// FrameSink принимает закодированные изображения как кадры (совместимый режим)
type FrameSink interface {
	Push(ctx context.Context, data []byte) error
}

// FeedBackend бэкенд, кадры которого присылаются извне
type FeedBackend interface {
	CaptureBackend
	FrameSink
}
