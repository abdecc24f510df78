//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

const reasonNoGoCV = "gocv build tag is not enabled"

// CameraBackend заглушка камеры (без OpenCV). Probe сообщает о недоступности,
// и селектор сразу переходит на совместимый бэкенд.
type CameraBackend struct {
	Device   string
	Fallback port.SymbolDecoder
}

// NewCameraBackend создаёт бэкенд-заглушку
func NewCameraBackend(device string, fallback port.SymbolDecoder) *CameraBackend {
	return &CameraBackend{Device: device, Fallback: fallback}
}

func (c *CameraBackend) Kind() entity.BackendKind { return entity.BackendCamera }

// Probe без тега gocv камеры нет
func (c *CameraBackend) Probe() entity.Capability { return entity.Unavailable(reasonNoGoCV) }

// Open возвращает ошибку, если сборка без тега gocv.
func (c *CameraBackend) Open(ctx context.Context) (port.CaptureHandle, error) {
	_ = ctx
	return nil, errors.New(reasonNoGoCV)
}

var _ port.CaptureBackend = (*CameraBackend)(nil)
