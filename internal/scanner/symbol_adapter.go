package scanner

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// SymbolAdapter декодирует штрихкоды в собственной горутине.
// Если декодирование медленнее потока кадров, лишние кадры отбрасываются.
type SymbolAdapter struct {
	decoder port.SymbolDecoder
	enabled map[entity.Symbology]struct{}
	box     *mailbox
	log     logrus.FieldLogger

	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewSymbolAdapter создаёт адаптер. Пустой список форматов разрешает все.
func NewSymbolAdapter(decoder port.SymbolDecoder, symbologies []entity.Symbology, log logrus.FieldLogger) *SymbolAdapter {
	enabled := make(map[entity.Symbology]struct{}, len(symbologies))
	for _, s := range symbologies {
		enabled[s] = struct{}{}
	}
	return &SymbolAdapter{
		decoder: decoder,
		enabled: enabled,
		box:     newMailbox(),
		log:     log.WithField("adapter", "symbol"),
	}
}

// Offer передаёт кадр адаптеру без блокировки
func (a *SymbolAdapter) Offer(f entity.Frame) {
	a.box.offer(f)
}

// Run обрабатывает кадры до отмены контекста
func (a *SymbolAdapter) Run(ctx context.Context, out chan<- entity.Detection) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-a.box.ch:
			if !a.process(ctx, f, out) {
				return
			}
		}
	}
}

// process возвращает false, если контекст отменён во время отправки
func (a *SymbolAdapter) process(ctx context.Context, f entity.Frame, out chan<- entity.Detection) bool {
	var detections []entity.Detection
	err := guard(func() error {
		var err error
		detections, err = a.decoder.Decode(ctx, f)
		return err
	})
	if err != nil {
		// сбой одного кадра: считаем, что на кадре ничего нет
		a.failed.Add(1)
		a.log.WithError(err).WithField("frame", f.Seq).Debug("decode failed")
		return ctx.Err() == nil
	}
	a.processed.Add(1)

	for _, d := range detections {
		if !a.allowed(d.Symbology) {
			continue
		}
		d.Source = entity.SourceSymbol
		if d.RecognizedAt.IsZero() {
			d.RecognizedAt = f.CapturedAt
		}
		select {
		case out <- d:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (a *SymbolAdapter) allowed(s entity.Symbology) bool {
	if len(a.enabled) == 0 {
		return true
	}
	_, ok := a.enabled[s]
	return ok
}

// Stats возвращает счётчики адаптера
func (a *SymbolAdapter) Stats() AdapterStats {
	return AdapterStats{
		Processed: a.processed.Load(),
		Dropped:   a.box.dropped.Load(),
		Failed:    a.failed.Load(),
	}
}

// guard превращает панику бэкенда в ошибку кадра
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return fn()
}
