package speech

import "recivo/internal/payload"

// Request входящий запрос на синтез
type Request struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Format  string `json:"format,omitempty"`
}

// Status исход обработки запроса
type Status string

const (
	StatusReady   Status = "ready"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// FailureKind причина неудачи
type FailureKind string

const (
	// FailureTransport сетевая ошибка или неуспешный статус провайдера
	FailureTransport FailureKind = "provider_transport"
	// FailureUnresolved провайдер ответил, но без ссылки и без задачи
	FailureUnresolved FailureKind = "unresolved_response"
)

// Outcome результат обработки: Ready, Pending или Failed
type Outcome struct {
	Status Status

	// Ready
	AudioURL string
	ProxyURL string

	// Pending
	JobID string

	// Failed
	Failure FailureKind
	Detail  string

	// Raw сырой ответ провайдера для диагностики
	Raw payload.Value
}
