package scanner

// DefaultDedupEntries предел записей в карте дедупликации
const DefaultDedupEntries = 256

// Deduplicator подавляет повторные распознавания одного кода в пределах окна.
// Не потокобезопасен: принадлежит управляющему циклу сканера.
type Deduplicator struct {
	entries    map[string]int64 // код -> время последнего допуска, мс
	maxEntries int
}

// NewDeduplicator создаёт дедупликатор с ограничением на число записей
func NewDeduplicator(maxEntries int) *Deduplicator {
	if maxEntries <= 0 {
		maxEntries = DefaultDedupEntries
	}
	return &Deduplicator{
		entries:    make(map[string]int64),
		maxEntries: maxEntries,
	}
}

// Admit пропускает код, если он не допускался последние cooldownMs.
// Подавленный повтор не сдвигает время отсчёта.
func (d *Deduplicator) Admit(code string, nowMs, cooldownMs int64) bool {
	last, seen := d.entries[code]
	if seen && nowMs-last < cooldownMs {
		return false
	}
	if !seen && len(d.entries) >= d.maxEntries {
		d.evict(nowMs, cooldownMs)
	}
	d.entries[code] = nowMs
	return true
}

// evict удаляет устаревшие записи, а если их нет, самую старую
func (d *Deduplicator) evict(nowMs, cooldownMs int64) {
	var (
		oldestCode string
		oldestMs   int64
		found      bool
	)
	for code, ts := range d.entries {
		if nowMs-ts >= cooldownMs {
			delete(d.entries, code)
			continue
		}
		if !found || ts < oldestMs {
			oldestCode, oldestMs, found = code, ts, true
		}
	}
	if len(d.entries) >= d.maxEntries && found {
		delete(d.entries, oldestCode)
	}
}

// Len количество хранимых записей
func (d *Deduplicator) Len() int { return len(d.entries) }

// Reset забывает все коды
func (d *Deduplicator) Reset() {
	d.entries = make(map[string]int64)
}
