package scanner

import (
	"net/url"
	"path"
	"strings"

	"recivo/internal/payload"
)

const (
	// MinInlineLength строки base64 длиной не больше этого значения не считаются аудио
	MinInlineLength = 1000

	// InlinePrefix префикс data URI для встроенного аудио без явного типа
	InlinePrefix = "data:audio/mpeg;base64,"
)

// audioExtensions известные расширения аудио файлов
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".mpeg": {},
	".mpga": {},
	".wav":  {},
	".wave": {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".m4a":  {},
	".aac":  {},
	".flac": {},
	".webm": {},
	".pcm":  {},
}

// Scanner ищет ссылку на аудио в произвольном ответе провайдера.
//
// Обход в глубину, первое найденное значение побеждает. Поля объекта
// обходятся так: сначала ключи из priority в указанном порядке, затем
// остальные в порядке документа.
type Scanner struct {
	priority []string
}

// New создает сканер с приоритетом ключей
func New(priority ...string) *Scanner {
	return &Scanner{priority: priority}
}

// Scan возвращает первую найденную ссылку на аудио
func (s *Scanner) Scan(v payload.Value) (string, bool) {
	switch v.Kind() {
	case payload.KindString:
		str, _ := v.Str()
		return Classify(str)
	case payload.KindList:
		for _, item := range v.Items() {
			if ref, ok := s.Scan(item); ok {
				return ref, true
			}
		}
	case payload.KindObject:
		for _, f := range s.ordered(v.Fields()) {
			if ref, ok := s.Scan(f.Value); ok {
				return ref, true
			}
		}
	}
	// null, числа, bool и бинарные данные пропускаем
	return "", false
}

// ordered раскладывает поля объекта в порядке обхода
func (s *Scanner) ordered(fields []payload.Field) []payload.Field {
	if len(s.priority) == 0 {
		return fields
	}

	out := make([]payload.Field, 0, len(fields))
	used := make([]bool, len(fields))
	for _, key := range s.priority {
		for i, f := range fields {
			if !used[i] && f.Key == key {
				out = append(out, f)
				used[i] = true
			}
		}
	}
	for i, f := range fields {
		if !used[i] {
			out = append(out, f)
		}
	}
	return out
}

// Scan ищет ссылку сканером без приоритета ключей
func Scan(v payload.Value) (string, bool) {
	return New().Scan(v)
}

// Classify проверяет одну строку и нормализует ее в ссылку на аудио
func Classify(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", false
	}

	if IsAudioURL(trimmed) {
		return trimmed, true
	}

	if IsDataURI(trimmed) {
		return trimmed, true
	}

	if isURLLike(trimmed) {
		return "", false
	}

	if len(s) > MinInlineLength && isBase64(s) {
		return InlinePrefix + stripSpace(s), true
	}

	return "", false
}

// IsAudioURL проверяет, что строка - http(s) ссылка на файл с аудио расширением
func IsAudioURL(s string) bool {
	if !IsHTTPURL(s) {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	_, ok := audioExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// IsHTTPURL проверяет, что строка - абсолютная http(s) ссылка
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// IsDataURI проверяет, что строка уже является data URI с аудио
func IsDataURI(s string) bool {
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "data:audio/") {
		return false
	}
	return strings.Contains(lower, ";base64,")
}

func isURLLike(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isBase64(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=':
		case r == ' ', r == '\n', r == '\r', r == '\t':
		default:
			return false
		}
	}
	return true
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}
