package entity

import (
	"time"

	"github.com/google/uuid"
)

// Step шаг сценария сканирования
type Step string

const (
	StepSelectLocation Step = "select_location" // Выбор локации
	StepSelectStatus   Step = "select_status"   // Выбор целевого статуса
	StepScan           Step = "scan"            // Сканирование
)

// StatusTarget статус, который получат все активы партии
type StatusTarget string

const (
	StatusNone  StatusTarget = ""
	StatusEmpty StatusTarget = "empty"
	StatusFull  StatusTarget = "full"
)

// ParseStatusTarget разбирает статус из пользовательского ввода.
func ParseStatusTarget(s string) (StatusTarget, bool) {
	switch StatusTarget(s) {
	case StatusEmpty, StatusFull:
		return StatusTarget(s), true
	default:
		return StatusNone, false
	}
}

// AddOutcome результат добавления кода в сессию
type AddOutcome string

const (
	Added                AddOutcome = "added"
	AlreadyPresent       AddOutcome = "already_present"
	RequiresConfirmation AddOutcome = "requires_confirmation"
)

// ScanSession одна партия уникальных распознанных кодов.
// Инвариант: в items нет двух событий с одинаковым кодом.
type ScanSession struct {
	ID           uuid.UUID
	OwnerID      int64
	LocationID   string
	StatusTarget StatusTarget
	Step         Step
	StartedAt    time.Time // момент входа в шаг сканирования
	Duplicates   int       // сколько повторов отклонено за сессию

	items   []ScanEvent
	index   map[string]struct{}
	pending map[string]ScanEvent
}

// NewScanSession создаёт пустую сессию на шаге выбора локации
func NewScanSession(ownerID int64) *ScanSession {
	s := &ScanSession{OwnerID: ownerID}
	s.Reset()
	return s
}

// Reset возвращает сессию в начальное состояние с новым идентификатором
func (s *ScanSession) Reset() {
	s.ID = uuid.New()
	s.LocationID = ""
	s.StatusTarget = StatusNone
	s.Step = StepSelectLocation
	s.StartedAt = time.Time{}
	s.Duplicates = 0
	s.items = nil
	s.index = make(map[string]struct{})
	s.pending = make(map[string]ScanEvent)
}

// Contains проверяет, есть ли код среди принятых или ожидающих подтверждения
func (s *ScanSession) Contains(code string) bool {
	if _, ok := s.index[code]; ok {
		return true
	}
	_, ok := s.pending[code]
	return ok
}

// Add добавляет событие, если кода ещё нет в сессии.
func (s *ScanSession) Add(ev ScanEvent) AddOutcome {
	if s.Contains(ev.Code) {
		s.Duplicates++
		return AlreadyPresent
	}
	s.index[ev.Code] = struct{}{}
	s.items = append(s.items, ev)
	return Added
}

// Hold откладывает событие до подтверждения пользователем.
func (s *ScanSession) Hold(ev ScanEvent) {
	s.pending[ev.Code] = ev
}

// TakePending извлекает отложенное событие
func (s *ScanSession) TakePending(code string) (ScanEvent, bool) {
	ev, ok := s.pending[code]
	if ok {
		delete(s.pending, code)
	}
	return ev, ok
}

// Pending возвращает коды, ожидающие подтверждения
func (s *ScanSession) Pending() []string {
	codes := make([]string, 0, len(s.pending))
	for code := range s.pending {
		codes = append(codes, code)
	}
	return codes
}

// Remove удаляет код из партии
func (s *ScanSession) Remove(code string) bool {
	if _, ok := s.index[code]; !ok {
		return false
	}
	delete(s.index, code)
	for i, ev := range s.items {
		if ev.Code == code {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

// Clear очищает партию, не меняя шаг сценария
func (s *ScanSession) Clear() {
	s.items = nil
	s.index = make(map[string]struct{})
	s.pending = make(map[string]ScanEvent)
}

// Items возвращает копию партии в порядке добавления
func (s *ScanSession) Items() []ScanEvent {
	out := make([]ScanEvent, len(s.items))
	copy(out, s.items)
	return out
}

// Len количество принятых кодов
func (s *ScanSession) Len() int { return len(s.items) }

// ItemFailure ошибка сохранения одного актива
type ItemFailure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// SubmitSummary итог отправки партии
type SubmitSummary struct {
	Added      int           `json:"added"`
	Duplicates int           `json:"duplicates"`
	Failed     []ItemFailure `json:"failed"`
}
