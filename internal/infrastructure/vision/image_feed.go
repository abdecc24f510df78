package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"
	"time"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// ErrFeedClosed лента уже закрыта
var ErrFeedClosed = errors.New("image feed is closed")

// DefaultFeedBuffer сколько изображений может ждать обработки
const DefaultFeedBuffer = 4

// ImageFeed совместимый бэкенд: кадрами служат присланные изображения
// (фото из чата, файлы из каталога). Доступен всегда.
type ImageFeed struct {
	decoder port.SymbolDecoder
	frames  chan entity.Frame
	faults  chan error
	seq     atomic.Uint64
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewImageFeed создаёт ленту. buffer <= 0 означает DefaultFeedBuffer.
func NewImageFeed(decoder port.SymbolDecoder, buffer int) *ImageFeed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	if decoder == nil {
		decoder = NewZXingDecoder()
	}
	return &ImageFeed{
		decoder: decoder,
		frames:  make(chan entity.Frame, buffer),
		faults:  make(chan error),
	}
}

func (f *ImageFeed) Kind() entity.BackendKind { return entity.BackendImageFeed }

// Probe лента не зависит от нативных модулей
func (f *ImageFeed) Probe() entity.Capability { return entity.Available() }

// Open возвращает саму ленту как активный захват
func (f *ImageFeed) Open(ctx context.Context) (port.CaptureHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	return f, nil
}

// Push декодирует изображение и ставит его в очередь кадров. Переполненная очередь теряет кадр.
func (f *ImageFeed) Push(ctx context.Context, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return f.PushImage(ctx, img)
}

// PushImage ставит в очередь уже декодированное изображение
func (f *ImageFeed) PushImage(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFeedClosed
	}

	frame := entity.Frame{Seq: f.seq.Add(1), Image: img, CapturedAt: time.Now()}
	select {
	case f.frames <- frame:
	default:
		f.dropped.Add(1)
	}
	return nil
}

// Dropped сколько изображений потеряно из-за переполнения
func (f *ImageFeed) Dropped() uint64 { return f.dropped.Load() }

func (f *ImageFeed) Frames() <-chan entity.Frame { return f.frames }
func (f *ImageFeed) Faults() <-chan error        { return f.faults }
func (f *ImageFeed) Decoder() port.SymbolDecoder { return f.decoder }

// Capabilities у фото из чата есть текст накладных, поэтому OCR поддерживается
func (f *ImageFeed) Capabilities() entity.Capabilities {
	return entity.Capabilities{SupportsOCR: true}
}

// Close закрывает очередь кадров. Повторный вызов безопасен.
func (f *ImageFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
	return nil
}

var (
	_ port.CaptureBackend = (*ImageFeed)(nil)
	_ port.CaptureHandle  = (*ImageFeed)(nil)
	_ port.FrameSink      = (*ImageFeed)(nil)
)
