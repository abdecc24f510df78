package port

import (
	"context"

	"asset-scan/internal/domain/entity"
)

// Feedback получатель звуковых/тактильных/текстовых сигналов. Fire-and-forget.
type Feedback interface {
	Notify(ctx context.Context, fb entity.Feedback)
}

// ScanActivator включает и выключает конвейер распознавания для владельца
type ScanActivator interface {
	Activate(ctx context.Context, ownerID int64, onRecognized func(entity.ScanEvent)) error
	Deactivate(ownerID int64)
	Active(ownerID int64) bool
}
