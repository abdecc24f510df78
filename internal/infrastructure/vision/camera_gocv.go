//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// CameraBackend основной бэкенд: захват с устройства через OpenCV
type CameraBackend struct {
	Device   string
	Fallback port.SymbolDecoder // декодер форматов, которых нет в OpenCV
}

// NewCameraBackend создаёт бэкенд камеры. device: индекс ("0") или путь/URL потока.
func NewCameraBackend(device string, fallback port.SymbolDecoder) *CameraBackend {
	if device == "" {
		device = "0"
	}
	return &CameraBackend{Device: device, Fallback: fallback}
}

func (c *CameraBackend) Kind() entity.BackendKind { return entity.BackendCamera }

// Probe сборка с тегом gocv означает, что OpenCV слинкован
func (c *CameraBackend) Probe() entity.Capability { return entity.Available() }

// Open открывает устройство и запускает цикл чтения кадров
func (c *CameraBackend) Open(ctx context.Context) (port.CaptureHandle, error) {
	vc, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %q: %w", c.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture %q is not opened", c.Device)
	}

	qr := NewQRDetector()
	decoder := port.SymbolDecoder(qr)
	if c.Fallback != nil {
		decoder = ChainDecoder{qr, c.Fallback}
	}

	h := &cameraHandle{
		vc:      vc,
		qr:      qr,
		decoder: decoder,
		frames:  make(chan entity.Frame, 1),
		faults:  make(chan error, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go h.loop()
	return h, nil
}

type cameraHandle struct {
	vc      *gocv.VideoCapture
	qr      *QRDetector
	decoder port.SymbolDecoder
	frames  chan entity.Frame
	faults  chan error
	stop    chan struct{}
	done    chan struct{}
	seq     atomic.Uint64
	once    sync.Once
}

// loop читает кадры, пока не остановлен. Получатель не блокирует камеру: кадр теряется.
func (h *cameraHandle) loop() {
	defer close(h.done)

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		if ok := h.vc.Read(&mat); !ok || mat.Empty() {
			h.fault(errors.New("camera read failed"))
			return
		}
		img, err := mat.ToImage()
		if err != nil {
			h.fault(fmt.Errorf("convert frame: %w", err))
			return
		}

		frame := entity.Frame{Seq: h.seq.Add(1), Image: img, CapturedAt: time.Now()}
		select {
		case h.frames <- frame:
		default:
		}
	}
}

func (h *cameraHandle) fault(err error) {
	select {
	case h.faults <- err:
	default:
	}
}

func (h *cameraHandle) Frames() <-chan entity.Frame { return h.frames }
func (h *cameraHandle) Faults() <-chan error        { return h.faults }
func (h *cameraHandle) Decoder() port.SymbolDecoder { return h.decoder }

func (h *cameraHandle) Capabilities() entity.Capabilities {
	return entity.Capabilities{SupportsOCR: true}
}

// Close останавливает цикл и освобождает устройство и детектор
func (h *cameraHandle) Close() error {
	var err error
	h.once.Do(func() {
		close(h.stop)
		<-h.done
		err = errors.Join(h.vc.Close(), h.qr.Close())
	})
	return err
}

var errDetectorClosed = errors.New("qr detector is closed")

// QRDetector декодер QR-кодов на OpenCV
type QRDetector struct {
	mu       sync.Mutex
	detector gocv.QRCodeDetector
	closed   bool
}

// NewQRDetector создаёт детектор
func NewQRDetector() *QRDetector {
	return &QRDetector{detector: gocv.NewQRCodeDetector()}
}

// Decode ищет один QR-код на кадре
func (q *QRDetector) Decode(ctx context.Context, frame entity.Frame) ([]entity.Detection, error) {
	_ = ctx
	if frame.Image == nil {
		return nil, errors.New("empty frame")
	}
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	// QRCodeDetector не потокобезопасен
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, errDetectorClosed
	}
	value := q.detector.DetectAndDecode(mat, &points, &straight)
	q.mu.Unlock()

	if value == "" {
		return nil, nil
	}
	return []entity.Detection{{
		Value:        value,
		Symbology:    entity.SymbologyQR,
		Bounds:       boundsOfMat(points),
		Source:       entity.SourceSymbol,
		RecognizedAt: frame.CapturedAt,
	}}, nil
}

// Close освобождает детектор OpenCV. Адаптер может ещё держать декодер, поэтому
// после Close вызовы Decode возвращают ошибку.
func (q *QRDetector) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.detector.Close()
}

// boundsOfMat углы QR-кода приходят как пары float32 (x, y)
func boundsOfMat(points gocv.Mat) *entity.Rect {
	if points.Empty() {
		return nil
	}
	data, err := points.DataPtrFloat32()
	if err != nil || len(data) < 2 {
		return nil
	}
	r := &entity.Rect{X: float64(data[0]), Y: float64(data[1])}
	right, bottom := r.X, r.Y
	for i := 0; i+1 < len(data); i += 2 {
		x, y := float64(data[i]), float64(data[i+1])
		if x < r.X {
			r.X = x
		}
		if y < r.Y {
			r.Y = y
		}
		if x > right {
			right = x
		}
		if y > bottom {
			bottom = y
		}
	}
	r.Width, r.Height = right-r.X, bottom-r.Y
	return r
}

var (
	_ port.CaptureBackend = (*CameraBackend)(nil)
	_ port.SymbolDecoder  = (*QRDetector)(nil)
)
