package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// DefaultSettleDelay пауза перед переключением на фоллбэк
const DefaultSettleDelay = 100 * time.Millisecond

// Selector выбирает бэкенд захвата и переключается на фоллбэк при сбое основного.
// Допускается не больше одного переключения.
type Selector struct {
	Permissions   port.PermissionRequester   // nil: разрешение не требуется
	OnStateChange func(entity.BackendState) // вызывается синхронно при каждом переходе

	primary     port.CaptureBackend
	fallback    port.CaptureBackend
	settleDelay time.Duration
	log         logrus.FieldLogger

	mu         sync.Mutex
	state      entity.BackendState
	current    entity.BackendKind
	onFallback bool
	caps       entity.Capabilities
}

// NewSelector создаёт селектор. primary или fallback могут быть nil.
func NewSelector(primary, fallback port.CaptureBackend, settleDelay time.Duration, log logrus.FieldLogger) *Selector {
	if settleDelay < 0 {
		settleDelay = 0
	}
	return &Selector{
		primary:     primary,
		fallback:    fallback,
		settleDelay: settleDelay,
		log:         log,
		state:       entity.BackendState{Status: entity.BackendUnknown},
	}
}

// Select запрашивает разрешение, проверяет основной бэкенд и открывает захват.
func (s *Selector) Select(ctx context.Context) (port.CaptureHandle, error) {
	if s.Permissions != nil {
		granted, err := s.Permissions.RequestCamera(ctx)
		if err != nil {
			s.setState(entity.BackendUnavailable, s.kindOf(s.primary), err.Error())
			return nil, fmt.Errorf("request camera permission: %w", err)
		}
		if !granted {
			s.setState(entity.BackendPermissionDenied, s.kindOf(s.primary), ErrPermissionDenied.Error())
			return nil, ErrPermissionDenied
		}
	}

	if s.primary == nil {
		return s.activateFallback(ctx)
	}

	kind := s.primary.Kind()
	c := s.primary.Probe()
	if !c.Available {
		s.log.WithField("backend", kind).Infof("primary backend unavailable: %s", c.Reason)
		s.setState(entity.BackendUnavailable, kind, c.Reason)
		return s.activateFallback(ctx)
	}

	s.setState(entity.BackendAvailable, kind, "")
	h, err := s.primary.Open(ctx)
	if err != nil {
		return s.Recover(ctx, fmt.Errorf("open %s: %w", kind, err))
	}
	s.activate(kind, h)
	return h, nil
}

// Recover обрабатывает сбой активного бэкенда: после паузы открывает фоллбэк.
// Сбой самого фоллбэка возвращается как *FatalError.
func (s *Selector) Recover(ctx context.Context, fault error) (port.CaptureHandle, error) {
	s.mu.Lock()
	kind, onFallback := s.current, s.onFallback
	s.mu.Unlock()

	s.log.WithField("backend", kind).WithError(fault).Warn("capture backend fault")
	s.setState(entity.BackendUnavailable, kind, fault.Error())

	if onFallback || s.fallback == nil {
		s.setState(entity.BackendFailed, kind, fault.Error())
		return nil, &FatalError{Backend: kind, Err: fault}
	}

	// пауза, чтобы не перезапускать бэкенд в цикле
	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return s.activateFallback(ctx)
}

func (s *Selector) activateFallback(ctx context.Context) (port.CaptureHandle, error) {
	s.mu.Lock()
	s.onFallback = true
	s.mu.Unlock()

	if s.fallback == nil {
		s.setState(entity.BackendFailed, s.kindOf(s.primary), ErrNoBackend.Error())
		return nil, ErrNoBackend
	}

	kind := s.fallback.Kind()
	s.mu.Lock()
	s.current = kind
	s.mu.Unlock()

	c := s.fallback.Probe()
	if !c.Available {
		s.setState(entity.BackendFailed, kind, c.Reason)
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, c.Reason)
	}

	h, err := s.fallback.Open(ctx)
	if err != nil {
		s.setState(entity.BackendFailed, kind, err.Error())
		return nil, &FatalError{Backend: kind, Err: err}
	}

	s.log.WithField("backend", kind).Info("fallback backend activated")
	s.setState(entity.BackendAvailable, kind, "")
	s.activate(kind, h)
	return h, nil
}

func (s *Selector) activate(kind entity.BackendKind, h port.CaptureHandle) {
	s.mu.Lock()
	s.current = kind
	s.caps = h.Capabilities()
	s.mu.Unlock()
}

func (s *Selector) setState(status entity.BackendStatus, kind entity.BackendKind, reason string) {
	st := entity.BackendState{Status: status, Kind: kind, Reason: reason}
	s.mu.Lock()
	s.state = st
	if kind != "" {
		s.current = kind
	}
	s.mu.Unlock()

	if s.OnStateChange != nil {
		s.OnStateChange(st)
	}
}

func (s *Selector) kindOf(b port.CaptureBackend) entity.BackendKind {
	if b == nil {
		return ""
	}
	return b.Kind()
}

// State текущее состояние выбора
func (s *Selector) State() entity.BackendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capabilities флаги активного бэкенда
func (s *Selector) Capabilities() entity.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}
