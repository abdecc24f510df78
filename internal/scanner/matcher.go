package scanner

import (
	"regexp"
	"strings"
)

// Правила извлечения идентификатора из текста OCR. Порядок важен: побеждает первое совпадение.
var defaultRules = []*regexp.Regexp{
	// 8 hex, дефис, 10 цифр, необязательная буква
	regexp.MustCompile(`([0-9A-Fa-f]{8}-[0-9]{10}[A-Za-z]?)`),
	// то же с маркером % перед идентификатором
	regexp.MustCompile(`%([0-9A-Fa-f]{8}-[0-9]{10}[A-Za-z]?)`),
}

// Matcher извлекает структурированный идентификатор из свободного текста
type Matcher struct {
	rules []*regexp.Regexp
}

// NewMatcher создаёт матчер. Без аргументов используется стандартный набор правил.
func NewMatcher(rules ...*regexp.Regexp) *Matcher {
	if len(rules) == 0 {
		rules = defaultRules
	}
	return &Matcher{rules: rules}
}

// Match возвращает первую группу первого сработавшего правила в верхнем регистре.
func (m *Matcher) Match(raw string) (string, bool) {
	for _, re := range m.rules {
		sub := re.FindStringSubmatch(raw)
		if len(sub) < 2 || sub[1] == "" {
			continue
		}
		return strings.ToUpper(sub[1]), true
	}
	return "", false
}

// NormalizeCode чистит значение штрихкода: пробелы и стоп-символы Code39 по краям.
func NormalizeCode(value string) string {
	v := strings.TrimSpace(value)
	v = strings.Trim(v, "*")
	return strings.TrimSpace(v)
}
