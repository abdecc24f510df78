package scanner

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"asset-scan/internal/domain/entity"
)

// DefaultCooldown окно подавления повторов для экранных сценариев
const DefaultCooldown = 2000 * time.Millisecond

// Emitter сводит детекции обоих адаптеров в один поток событий.
// Вызывается только из управляющего цикла сканера.
type Emitter struct {
	roi        entity.RegionOfInterest
	cooldownMs int64
	matcher    *Matcher
	dedup      *Deduplicator
	log        logrus.FieldLogger
}

// NewEmitter создаёт эмиттер. Нулевая ROI отключает проверку области.
func NewEmitter(roi entity.RegionOfInterest, cooldown time.Duration, matcher *Matcher, dedup *Deduplicator, log logrus.FieldLogger) *Emitter {
	if matcher == nil {
		matcher = NewMatcher()
	}
	if dedup == nil {
		dedup = NewDeduplicator(0)
	}
	return &Emitter{
		roi:        roi,
		cooldownMs: cooldown.Milliseconds(),
		matcher:    matcher,
		dedup:      dedup,
		log:        log,
	}
}

// Process упорядочивает пачку по времени распознавания и пропускает её через
// ROI, сопоставление шаблонов (для OCR) и дедупликацию.
func (e *Emitter) Process(batch []entity.Detection) []entity.ScanEvent {
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].RecognizedAt.Before(batch[j].RecognizedAt)
	})

	events := make([]entity.ScanEvent, 0, len(batch))
	for _, d := range batch {
		if ev, ok := e.admit(d); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (e *Emitter) admit(d entity.Detection) (entity.ScanEvent, bool) {
	if !e.roiDisabled() && !e.roi.Accept(d.Bounds) {
		e.log.WithField("source", d.Source).Debug("detection outside scan area")
		return entity.ScanEvent{}, false
	}

	var code string
	switch d.Source {
	case entity.SourceTextRegion:
		matched, ok := e.matcher.Match(d.Value)
		if !ok {
			return entity.ScanEvent{}, false
		}
		code = matched
	default:
		code = NormalizeCode(d.Value)
	}
	if code == "" {
		return entity.ScanEvent{}, false
	}

	if !e.dedup.Admit(code, d.RecognizedAt.UnixMilli(), e.cooldownMs) {
		e.log.WithField("code", code).Debug("duplicate within cooldown")
		return entity.ScanEvent{}, false
	}

	return entity.ScanEvent{
		Code:         code,
		RecognizedAt: d.RecognizedAt,
		Source:       d.Source,
	}, true
}

func (e *Emitter) roiDisabled() bool {
	return e.roi.Area.Width <= 0 || e.roi.Area.Height <= 0
}
