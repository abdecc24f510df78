package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// Config параметры конвейера распознавания
type Config struct {
	ROI             entity.RegionOfInterest
	Cooldown        time.Duration
	OCRFrameRate    float64
	Symbologies     []entity.Symbology
	DedupEntries    int
	DetectionBuffer int
}

// DefaultConfig параметры по умолчанию (ROI не задана, проверка области выключена)
func DefaultConfig() Config {
	return Config{
		Cooldown:        DefaultCooldown,
		OCRFrameRate:    DefaultOCRFrameRate,
		Symbologies:     entity.DefaultSymbologies(),
		DedupEntries:    DefaultDedupEntries,
		DetectionBuffer: 64,
	}
}

// Scanner превращает поток кадров в поток проверенных событий сканирования.
type Scanner struct {
	selector   *Selector
	recognizer port.TextRecognizer
	ocr        entity.Capability
	cfg        Config
	log        logrus.FieldLogger

	mu     sync.Mutex
	symbol *SymbolAdapter
	text   *TextAdapter
}

// New создаёт сканер. Наличие OCR проверяется один раз здесь; recognizer может быть nil.
func New(selector *Selector, recognizer port.TextRecognizer, cfg Config, log logrus.FieldLogger) *Scanner {
	if cfg.DetectionBuffer <= 0 {
		cfg.DetectionBuffer = 64
	}

	ocr := entity.Unavailable("no text recognizer configured")
	if recognizer != nil {
		ocr = recognizer.Probe()
	}
	if !ocr.Available {
		log.Infof("text recognition disabled: %s", ocr.Reason)
	}

	return &Scanner{
		selector:   selector,
		recognizer: recognizer,
		ocr:        ocr,
		cfg:        cfg,
		log:        log,
	}
}

// Run выбирает бэкенд и обрабатывает кадры, пока не отменён ctx или не случился
// неустранимый сбой. onRecognized вызывается из управляющего цикла по одному
// разу на каждое допущенное событие.
func (s *Scanner) Run(ctx context.Context, onRecognized func(entity.ScanEvent)) error {
	emitter := NewEmitter(s.cfg.ROI, s.cfg.Cooldown, NewMatcher(), NewDeduplicator(s.cfg.DedupEntries), s.log)

	handle, err := s.selector.Select(ctx)
	if err != nil {
		return err
	}

	for {
		fault := s.runHandle(ctx, handle, emitter, onRecognized)
		if cerr := handle.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("close capture handle")
		}
		if fault == nil || ctx.Err() != nil {
			return nil
		}

		handle, err = s.selector.Recover(ctx, fault)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// runHandle крутит управляющий цикл для одного бэкенда. Возвращает сбой бэкенда
// или nil, если захват закончился либо отменён.
func (s *Scanner) runHandle(ctx context.Context, h port.CaptureHandle, emitter *Emitter, onRecognized func(entity.ScanEvent)) error {
	// отмена бросает незавершённую обработку кадров, её не ждём
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	detections := make(chan entity.Detection, s.cfg.DetectionBuffer)

	symbol := NewSymbolAdapter(h.Decoder(), s.cfg.Symbologies, s.log)
	go symbol.Run(actx, detections)

	var text *TextAdapter
	if s.ocrEnabled(h.Capabilities()) {
		text = NewTextAdapter(s.recognizer, s.cfg.OCRFrameRate, s.log)
		go text.Run(actx, detections)
	}
	s.setAdapters(symbol, text)

	frames, faults := h.Frames(), h.Faults()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-faults:
			if !ok {
				faults = nil
				continue
			}
			return err

		case f, ok := <-frames:
			if !ok {
				return nil
			}
			symbol.Offer(f)
			if text != nil {
				text.Offer(f)
			}

		case d := <-detections:
			// забираем всё, что пришло одновременно, чтобы упорядочить по времени
			batch := []entity.Detection{d}
		drain:
			for {
				select {
				case d := <-detections:
					batch = append(batch, d)
				default:
					break drain
				}
			}
			for _, ev := range emitter.Process(batch) {
				if onRecognized != nil {
					onRecognized(ev)
				}
			}
		}
	}
}

func (s *Scanner) ocrEnabled(caps entity.Capabilities) bool {
	return s.ocr.Available && caps.SupportsOCR
}

func (s *Scanner) setAdapters(symbol *SymbolAdapter, text *TextAdapter) {
	s.mu.Lock()
	s.symbol, s.text = symbol, text
	s.mu.Unlock()
}

// State состояние захвата. Бэкенд с поддержкой OCR без подключённого OCR считается деградировавшим.
func (s *Scanner) State() entity.BackendState {
	st := s.selector.State()
	if st.Status == entity.BackendAvailable && s.selector.Capabilities().SupportsOCR && !s.ocr.Available {
		st.Status = entity.BackendDegraded
		st.Reason = s.ocr.Reason
	}
	return st
}

// Capabilities флаги активного бэкенда с учётом наличия OCR
func (s *Scanner) Capabilities() entity.Capabilities {
	caps := s.selector.Capabilities()
	caps.SupportsOCR = s.ocrEnabled(caps)
	return caps
}

// Stats счётчики текущих адаптеров
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	if s.symbol != nil {
		st.Symbol = s.symbol.Stats()
	}
	if s.text != nil {
		st.Text = s.text.Stats()
	}
	return st
}
