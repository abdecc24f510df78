package storage

import (
	"context"
	"sync"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// MemorySessionRepository in-memory хранилище сессий сканирования
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[int64]*entity.ScanSession
}

// NewMemorySessionRepository создаёт новое in-memory хранилище
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[int64]*entity.ScanSession),
	}
}

// Get возвращает сессию владельца, создаёт новую если не найдена
func (r *MemorySessionRepository) Get(ctx context.Context, ownerID int64) (*entity.ScanSession, error) {
	r.mu.RLock()
	session, exists := r.sessions[ownerID]
	r.mu.RUnlock()

	if exists {
		return session, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// сессию мог создать параллельный вызов
	if session, exists := r.sessions[ownerID]; exists {
		return session, nil
	}
	session = entity.NewScanSession(ownerID)
	r.sessions[ownerID] = session

	return session, nil
}

// Save сохраняет сессию
func (r *MemorySessionRepository) Save(ctx context.Context, session *entity.ScanSession) error {
	r.mu.Lock()
	r.sessions[session.OwnerID] = session
	r.mu.Unlock()

	return nil
}

// Delete удаляет сессию владельца
func (r *MemorySessionRepository) Delete(ctx context.Context, ownerID int64) error {
	r.mu.Lock()
	delete(r.sessions, ownerID)
	r.mu.Unlock()

	return nil
}

// Проверка реализации интерфейса
var _ port.SessionRepository = (*MemorySessionRepository)(nil)
