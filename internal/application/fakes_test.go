package app

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"asset-scan/internal/domain/entity"
)

type fakeActivator struct {
	mu          sync.Mutex
	callbacks   map[int64]func(entity.ScanEvent)
	deactivated []int64
	err         error
}

func newFakeActivator() *fakeActivator {
	return &fakeActivator{callbacks: make(map[int64]func(entity.ScanEvent))}
}

func (a *fakeActivator) Activate(ctx context.Context, ownerID int64, onRecognized func(entity.ScanEvent)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.callbacks[ownerID] = onRecognized
	return nil
}

func (a *fakeActivator) Deactivate(ownerID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.callbacks, ownerID)
	a.deactivated = append(a.deactivated, ownerID)
}

func (a *fakeActivator) Active(ownerID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.callbacks[ownerID]
	return ok
}

// stop имитирует остановку конвейера без участия сессии
func (a *fakeActivator) stop(ownerID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.callbacks, ownerID)
}

func (a *fakeActivator) callback(ownerID int64) func(entity.ScanEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.callbacks[ownerID]
}

type recordedFeedback struct {
	mu    sync.Mutex
	items []entity.Feedback
}

func (f *recordedFeedback) Notify(ctx context.Context, fb entity.Feedback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, fb)
}

func (f *recordedFeedback) kinds() []entity.FeedbackKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.FeedbackKind, 0, len(f.items))
	for _, fb := range f.items {
		out = append(out, fb.Kind)
	}
	return out
}

// staticDecoder находит один и тот же символ на любом кадре
type staticDecoder struct {
	value string
}

func (d staticDecoder) Decode(ctx context.Context, f entity.Frame) ([]entity.Detection, error) {
	return []entity.Detection{{Value: d.value, Symbology: entity.SymbologyQR}}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

func event(code string) entity.ScanEvent {
	return entity.ScanEvent{Code: code, Source: entity.SourceSymbol}
}
