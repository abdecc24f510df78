package scanner

import (
	"sync/atomic"

	"asset-scan/internal/domain/entity"
)

// mailbox слот на один кадр: новый кадр вытесняет необработанный старый.
// Рассчитан на одного отправителя (управляющий цикл).
type mailbox struct {
	ch      chan entity.Frame
	dropped atomic.Uint64
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan entity.Frame, 1)}
}

// offer кладёт кадр без блокировки
func (m *mailbox) offer(f entity.Frame) {
	for {
		select {
		case m.ch <- f:
			return
		default:
		}
		select {
		case <-m.ch:
			m.dropped.Add(1)
		default:
		}
	}
}

// AdapterStats счётчики адаптера
type AdapterStats struct {
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`   // вытеснены более свежим кадром
	Throttled uint64 `json:"throttled"` // пропущены ограничителем частоты
	Failed    uint64 `json:"failed"`    // ошибка обработки кадра
}

// Stats статистика обоих адаптеров
type Stats struct {
	Symbol AdapterStats `json:"symbol"`
	Text   AdapterStats `json:"text"`
}
