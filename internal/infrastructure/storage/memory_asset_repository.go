package storage

import (
	"context"
	"sync"
	"time"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// StatusChange запись журнала смены статуса
type StatusChange struct {
	Code       string
	Status     entity.StatusTarget
	LocationID string
	ChangedAt  time.Time
}

// MemoryAssetRepository in-memory справочник активов (для режима без БД и тестов)
type MemoryAssetRepository struct {
	mu      sync.RWMutex
	assets  map[string]entity.Asset
	history []StatusChange

	// FailCodes коды, обновление которых завершается ошибкой
	FailCodes map[string]error
}

// NewMemoryAssetRepository создаёт справочник с начальным набором активов
func NewMemoryAssetRepository(assets ...entity.Asset) *MemoryAssetRepository {
	r := &MemoryAssetRepository{
		assets:    make(map[string]entity.Asset, len(assets)),
		FailCodes: make(map[string]error),
	}
	for _, a := range assets {
		r.assets[a.Code] = a
	}
	return r
}

// Put добавляет или заменяет актив
func (r *MemoryAssetRepository) Put(a entity.Asset) {
	r.mu.Lock()
	r.assets[a.Code] = a
	r.mu.Unlock()
}

// Lookup возвращает актив по коду
func (r *MemoryAssetRepository) Lookup(ctx context.Context, code string) (*entity.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[code]
	if !ok {
		return nil, port.ErrAssetNotFound
	}
	return &a, nil
}

// UpdateStatus меняет статус и локацию актива и пишет журнал
func (r *MemoryAssetRepository) UpdateStatus(ctx context.Context, code string, status entity.StatusTarget, locationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailCodes[code]; err != nil {
		return err
	}
	a, ok := r.assets[code]
	if !ok {
		return port.ErrAssetNotFound
	}

	now := time.Now()
	a.Status = string(status)
	a.LocationID = locationID
	a.UpdatedAt = now
	r.assets[code] = a
	r.history = append(r.history, StatusChange{Code: code, Status: status, LocationID: locationID, ChangedAt: now})
	return nil
}

// History возвращает копию журнала
func (r *MemoryAssetRepository) History() []StatusChange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StatusChange, len(r.history))
	copy(out, r.history)
	return out
}

var _ port.AssetRepository = (*MemoryAssetRepository)(nil)
