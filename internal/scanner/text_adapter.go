package scanner

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// DefaultOCRFrameRate частота кадров для OCR
const DefaultOCRFrameRate = 5

// TextAdapter распознаёт текст независимо от SymbolAdapter и на пониженной частоте.
// Ошибки отдельного кадра проглатываются.
type TextAdapter struct {
	recognizer port.TextRecognizer
	limiter    *rate.Limiter
	box        *mailbox
	log        logrus.FieldLogger

	processed atomic.Uint64
	throttled atomic.Uint64
	failed    atomic.Uint64
}

// NewTextAdapter создаёт адаптер. fps <= 0 снимает ограничение частоты.
func NewTextAdapter(recognizer port.TextRecognizer, fps float64, log logrus.FieldLogger) *TextAdapter {
	limit := rate.Inf
	if fps > 0 {
		limit = rate.Limit(fps)
	}
	return &TextAdapter{
		recognizer: recognizer,
		limiter:    rate.NewLimiter(limit, 1),
		box:        newMailbox(),
		log:        log.WithField("adapter", "text"),
	}
}

// Offer передаёт кадр адаптеру без блокировки. Частота считается по времени захвата кадра.
func (a *TextAdapter) Offer(f entity.Frame) {
	if !a.limiter.AllowN(f.CapturedAt, 1) {
		a.throttled.Add(1)
		return
	}
	a.box.offer(f)
}

// Run обрабатывает кадры до отмены контекста
func (a *TextAdapter) Run(ctx context.Context, out chan<- entity.Detection) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-a.box.ch:
			d, ok := a.recognize(ctx, f)
			if !ok {
				continue
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *TextAdapter) recognize(ctx context.Context, f entity.Frame) (entity.Detection, bool) {
	var block port.TextBlock
	err := guard(func() error {
		var err error
		block, err = a.recognizer.Recognize(ctx, f)
		return err
	})
	if err != nil {
		a.failed.Add(1)
		a.log.WithError(err).WithField("frame", f.Seq).Debug("ocr failed")
		return entity.Detection{}, false
	}
	a.processed.Add(1)

	if strings.TrimSpace(block.Text) == "" {
		return entity.Detection{}, false
	}
	return entity.Detection{
		Value:        block.Text,
		Symbology:    entity.SymbologyText,
		Bounds:       block.Bounds,
		Source:       entity.SourceTextRegion,
		RecognizedAt: f.CapturedAt,
	}, true
}

// Stats возвращает счётчики адаптера
func (a *TextAdapter) Stats() AdapterStats {
	return AdapterStats{
		Processed: a.processed.Load(),
		Dropped:   a.box.dropped.Load(),
		Throttled: a.throttled.Load(),
		Failed:    a.failed.Load(),
	}
}
