package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
	"asset-scan/internal/scanner"
)

type activeScan struct {
	scanner *scanner.Scanner
	feed    port.FeedBackend
	cancel  context.CancelFunc
	done    chan struct{}
}

// ScanningService держит по одному конвейеру распознавания на владельца.
type ScanningService struct {
	// OnStateChange вызывается при каждом переходе состояния бэкенда
	OnStateChange func(ownerID int64, st entity.BackendState)
	// OnFailure вызывается, если конвейер остановился с ошибкой
	OnFailure func(ownerID int64, err error)

	camera      func() port.CaptureBackend
	newFeed     func() port.FeedBackend
	recognizer  port.TextRecognizer
	cfg         scanner.Config
	settleDelay time.Duration
	log         logrus.FieldLogger

	mu     sync.Mutex
	active map[int64]*activeScan
}

// NewScanningService создаёт сервис. camera может быть nil: тогда кадры идут только из ленты изображений.
func NewScanningService(camera func() port.CaptureBackend, newFeed func() port.FeedBackend, recognizer port.TextRecognizer, cfg scanner.Config, settleDelay time.Duration, log logrus.FieldLogger) *ScanningService {
	return &ScanningService{
		camera:      camera,
		newFeed:     newFeed,
		recognizer:  recognizer,
		cfg:         cfg,
		settleDelay: settleDelay,
		log:         log,
		active:      make(map[int64]*activeScan),
	}
}

// Activate запускает конвейер владельца. Повторный вызов для активного владельца ничего не делает.
func (s *ScanningService) Activate(ctx context.Context, ownerID int64, onRecognized func(entity.ScanEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[ownerID]; ok {
		return nil
	}

	log := s.log.WithField("owner", ownerID)

	var primary port.CaptureBackend
	if s.camera != nil {
		primary = s.camera()
	}
	var feed port.FeedBackend
	var fallback port.CaptureBackend
	if s.newFeed != nil {
		feed = s.newFeed()
		fallback = feed
	}

	sel := scanner.NewSelector(primary, fallback, s.settleDelay, log)
	sel.OnStateChange = func(st entity.BackendState) {
		log.WithField("state", st.String()).Debug("capture backend state")
		if s.OnStateChange != nil {
			s.OnStateChange(ownerID, st)
		}
	}

	// конвейер живёт дольше запроса, который его включил
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	as := &activeScan{
		scanner: scanner.New(sel, s.recognizer, s.cfg, log),
		feed:    feed,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.active[ownerID] = as

	go s.run(runCtx, ownerID, as, onRecognized)
	return nil
}

func (s *ScanningService) run(ctx context.Context, ownerID int64, as *activeScan, onRecognized func(entity.ScanEvent)) {
	defer close(as.done)

	err := as.scanner.Run(ctx, onRecognized)

	s.mu.Lock()
	if s.active[ownerID] == as {
		delete(s.active, ownerID)
	}
	s.mu.Unlock()
	as.cancel()

	if err != nil {
		s.log.WithError(err).WithField("owner", ownerID).Error("scanning stopped")
		if s.OnFailure != nil {
			s.OnFailure(ownerID, err)
		}
	}
}

// Deactivate останавливает конвейер владельца. Не ждёт завершения обработки кадров.
func (s *ScanningService) Deactivate(ownerID int64) {
	s.mu.Lock()
	as, ok := s.active[ownerID]
	delete(s.active, ownerID)
	s.mu.Unlock()

	if ok {
		as.cancel()
	}
}

// PushFrame передаёт изображение в ленту активного конвейера владельца
func (s *ScanningService) PushFrame(ctx context.Context, ownerID int64, data []byte) error {
	s.mu.Lock()
	as, ok := s.active[ownerID]
	s.mu.Unlock()

	if !ok {
		return ErrNotScanning
	}
	if as.feed == nil || cameraActive(as.scanner.State()) {
		return ErrFeedInactive
	}
	return as.feed.Push(ctx, data)
}

// cameraActive до выбора бэкенда лента уже принимает кадры в буфер
func cameraActive(st entity.BackendState) bool {
	if st.Kind != entity.BackendCamera {
		return false
	}
	return st.Status == entity.BackendAvailable || st.Status == entity.BackendDegraded
}

// Active сообщает, запущен ли конвейер владельца
func (s *ScanningService) Active(ownerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[ownerID]
	return ok
}

// State состояние бэкенда захвата владельца
func (s *ScanningService) State(ownerID int64) (entity.BackendState, bool) {
	s.mu.Lock()
	as, ok := s.active[ownerID]
	s.mu.Unlock()
	if !ok {
		return entity.BackendState{}, false
	}
	return as.scanner.State(), true
}

// Stats счётчики адаптеров владельца
func (s *ScanningService) Stats(ownerID int64) (scanner.Stats, bool) {
	s.mu.Lock()
	as, ok := s.active[ownerID]
	s.mu.Unlock()
	if !ok {
		return scanner.Stats{}, false
	}
	return as.scanner.Stats(), true
}

// Capabilities флаги активного бэкенда владельца с учётом наличия OCR
func (s *ScanningService) Capabilities(ownerID int64) (entity.Capabilities, bool) {
	s.mu.Lock()
	as, ok := s.active[ownerID]
	s.mu.Unlock()
	if !ok {
		return entity.Capabilities{}, false
	}
	return as.scanner.Capabilities(), true
}

// Shutdown останавливает все конвейеры и ждёт их завершения
func (s *ScanningService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*activeScan, 0, len(s.active))
	for id, as := range s.active {
		all = append(all, as)
		delete(s.active, id)
	}
	s.mu.Unlock()

	for _, as := range all {
		as.cancel()
	}
	for _, as := range all {
		select {
		case <-as.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

var _ port.ScanActivator = (*ScanningService)(nil)
