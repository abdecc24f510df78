package port

import (
	"context"

	"asset-scan/internal/domain/entity"
)

// SessionRepository интерфейс хранилища сессий сканирования
type SessionRepository interface {
	// Get возвращает сессию владельца, создаёт новую если не найдена
	Get(ctx context.Context, ownerID int64) (*entity.ScanSession, error)

	// Save сохраняет сессию
	Save(ctx context.Context, session *entity.ScanSession) error

	// Delete удаляет сессию владельца
	Delete(ctx context.Context, ownerID int64) error
}
