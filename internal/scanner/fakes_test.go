package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// fakeDecoder отдаёт детекции по номеру кадра
type fakeDecoder struct {
	mu      sync.Mutex
	byFrame map[uint64][]entity.Detection
	err     error
	panics  bool
	calls   atomic.Int32
}

func (d *fakeDecoder) Decode(ctx context.Context, f entity.Frame) ([]entity.Detection, error) {
	d.calls.Add(1)
	if d.panics {
		panic("native decoder crashed")
	}
	if d.err != nil {
		return nil, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byFrame[f.Seq], nil
}

// fakeRecognizer возвращает заранее заданный текст
type fakeRecognizer struct {
	probe entity.Capability
	text  map[uint64]string
	err   error
}

func (r *fakeRecognizer) Probe() entity.Capability { return r.probe }

func (r *fakeRecognizer) Recognize(ctx context.Context, f entity.Frame) (port.TextBlock, error) {
	if r.err != nil {
		return port.TextBlock{}, r.err
	}
	return port.TextBlock{Text: r.text[f.Seq]}, nil
}

type fakeHandle struct {
	frames  chan entity.Frame
	faults  chan error
	caps    entity.Capabilities
	decoder port.SymbolDecoder
	closed  atomic.Bool
}

func newFakeHandle(decoder port.SymbolDecoder, caps entity.Capabilities) *fakeHandle {
	return &fakeHandle{
		frames:  make(chan entity.Frame, 16),
		faults:  make(chan error, 1),
		caps:    caps,
		decoder: decoder,
	}
}

func (h *fakeHandle) Frames() <-chan entity.Frame       { return h.frames }
func (h *fakeHandle) Faults() <-chan error              { return h.faults }
func (h *fakeHandle) Capabilities() entity.Capabilities { return h.caps }
func (h *fakeHandle) Decoder() port.SymbolDecoder       { return h.decoder }
func (h *fakeHandle) Close() error                      { h.closed.Store(true); return nil }

type fakeBackend struct {
	kind    entity.BackendKind
	probe   entity.Capability
	openErr error
	handle  *fakeHandle

	mu       sync.Mutex
	opens    int
	openedAt time.Time
}

func (b *fakeBackend) Kind() entity.BackendKind { return b.kind }
func (b *fakeBackend) Probe() entity.Capability { return b.probe }

func (b *fakeBackend) Open(ctx context.Context) (port.CaptureHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	b.openedAt = time.Now()
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.handle, nil
}

func (b *fakeBackend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

type fakePermissions struct {
	granted bool
	err     error
}

func (p fakePermissions) RequestCamera(ctx context.Context) (bool, error) {
	return p.granted, p.err
}

// stateRecorder собирает переходы состояния селектора
type stateRecorder struct {
	mu     sync.Mutex
	states []entity.BackendState
	at     []time.Time
}

func (r *stateRecorder) record(st entity.BackendState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
	r.at = append(r.at, time.Now())
}

func (r *stateRecorder) statuses() []entity.BackendStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.BackendStatus, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.Status)
	}
	return out
}

var errInitFault = errors.New("render fault")

func available() entity.Capability { return entity.Available() }
