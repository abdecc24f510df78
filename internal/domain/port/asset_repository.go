package port

import (
	"context"
	"errors"

	"asset-scan/internal/domain/entity"
)

// ErrAssetNotFound актив с таким кодом не найден
var ErrAssetNotFound = errors.New("asset not found")

// AssetRepository внешний сервис поиска и обновления активов
type AssetRepository interface {
	// Lookup возвращает актив по коду
	Lookup(ctx context.Context, code string) (*entity.Asset, error)

	// UpdateStatus сохраняет новый статус и локацию актива
	UpdateStatus(ctx context.Context, code string, status entity.StatusTarget, locationID string) error
}
