package port

import (
	"context"

	"asset-scan/internal/domain/entity"
)

// SymbolDecoder интерфейс декодера штрихкодов
type SymbolDecoder interface {
	// Decode возвращает все символы, найденные на кадре (возможны повторы)
	Decode(ctx context.Context, frame entity.Frame) ([]entity.Detection, error)
}

// TextBlock распознанный текст кадра
type TextBlock struct {
	Text   string
	Bounds *entity.Rect
}

// TextRecognizer интерфейс OCR
type TextRecognizer interface {
	// Probe проверяет, подключён ли OCR. Вызывается один раз при старте.
	Probe() entity.Capability

	// Recognize возвращает сырой текст кадра
	Recognize(ctx context.Context, frame entity.Frame) (TextBlock, error)
}
