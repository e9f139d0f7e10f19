package pricing

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName приводит название подарка/стикера к каноническому ключу:
// NFKC (пользователи вставляют названия со «красивыми» юникод-вариантами
// символов), нижний регистр, схлопнутые пробелы.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// MatchName ищет название в каталоге: сначала точное совпадение, потом
// по префиксу, потом по вхождению. Возвращает каноническое имя из каталога.
func MatchName(query string, catalog []string) (string, bool) {
	q := NormalizeName(query)
	if q == "" {
		return "", false
	}
	for _, c := range catalog {
		if NormalizeName(c) == q {
			return c, true
		}
	}
	for _, c := range catalog {
		if strings.HasPrefix(NormalizeName(c), q) {
			return c, true
		}
	}
	for _, c := range catalog {
		if strings.Contains(NormalizeName(c), q) {
			return c, true
		}
	}
	return "", false
}
