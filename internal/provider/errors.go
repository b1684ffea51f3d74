package provider

import (
	"fmt"
	"strings"

	"recivo/internal/payload"
)

// Операции клиента, используются в ошибках и метриках
const (
	OpSynthesize = "synthesize"
	OpStatus     = "status"
	OpVoices     = "voices"
)

// Error ошибка обращения к провайдеру: сетевая или неуспешный HTTP статус
type Error struct {
	Operation  string
	StatusCode int
	Body       []byte
	Err        error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("провайдер (%s): %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("провайдер (%s) вернул статус %d: %s", e.Operation, e.StatusCode, e.Detail())
}

// Unwrap возвращает исходную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// Detail извлекает из тела ошибки читаемое сообщение провайдера
func (e *Error) Detail() string {
	if len(e.Body) == 0 {
		if e.Err != nil {
			return e.Err.Error()
		}
		return ""
	}

	v := payload.FromBody(e.Body)
	for _, key := range []string{"errorMessage", "message", "error", "detail"} {
		field, ok := v.Get(key)
		if !ok {
			continue
		}
		if s, ok := field.Str(); ok && s != "" {
			return s
		}
		// {"error":{"message":"..."}}
		if nested, ok := field.Get("message"); ok {
			if s, ok := nested.Str(); ok && s != "" {
				return s
			}
		}
	}

	text := strings.TrimSpace(string(e.Body))
	if len(text) > 512 {
		text = text[:512] + "..."
	}
	return text
}

// Raw возвращает тело ошибки как значение для диагностики
func (e *Error) Raw() payload.Value {
	return payload.FromBody(e.Body)
}
