package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики сервиса
type Metrics struct {
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	// Счетчики
	ttsRequests      *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	relayBytes       prometheus.Counter

	// Гистограммы
	speechDuration   prometheus.Histogram
	providerDuration *prometheus.HistogramVec
	pollAttempts     *prometheus.HistogramVec

	// Gauge метрики
	historyEntries prometheus.Gauge
}

// New создает метрики и регистрирует их в reg.
// Если reg не задан, используется глобальный реестр prometheus.
func New(logger *zap.Logger, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		logger: logger,

		ttsRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tts_requests_total",
				Help: "Общее количество запросов на синтез",
			},
			[]string{"outcome"}, // ready, pending, failed
		),

		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Общее количество запросов к провайдеру",
			},
			[]string{"operation", "status"}, // status: success, failed
		),

		relayBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_bytes_total",
				Help: "Количество байт аудио, переданных через ретранслятор",
			},
		),

		speechDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tts_request_duration_seconds",
				Help:    "Полное время обработки запроса на синтез",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),

		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_request_duration_seconds",
				Help:    "Время ответа провайдера в секундах",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"}, // synthesize, status, voices
		),

		pollAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poll_attempts",
				Help:    "Количество попыток опроса задачи",
				Buckets: []float64{1, 2, 3, 5, 10, 15, 20},
			},
			[]string{"found"},
		),

		historyEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "history_entries",
				Help: "Количество записей в истории",
			},
		),
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	m.gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		m.gatherer = reg
	}

	// Регистрируем все метрики
	registerer.MustRegister(
		m.ttsRequests,
		m.providerRequests,
		m.relayBytes,
		m.speechDuration,
		m.providerDuration,
		m.pollAttempts,
		m.historyEntries,
	)

	return m
}

// RecordSpeech записывает исход запроса на синтез
func (m *Metrics) RecordSpeech(outcome string, seconds float64) {
	m.ttsRequests.WithLabelValues(outcome).Inc()
	m.speechDuration.Observe(seconds)
	m.logger.Debug("метрика запроса на синтез", zap.String("outcome", outcome), zap.Float64("seconds", seconds))
}

// RecordProviderRequest записывает обращение к провайдеру
func (m *Metrics) RecordProviderRequest(operation string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failed"
	}

	m.providerRequests.WithLabelValues(operation, status).Inc()
	m.providerDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordPoll записывает результат опроса задачи
func (m *Metrics) RecordPoll(found bool, attempts int) {
	label := "false"
	if found {
		label = "true"
	}
	m.pollAttempts.WithLabelValues(label).Observe(float64(attempts))
}

// AddRelayBytes учитывает переданные ретранслятором байты
func (m *Metrics) AddRelayBytes(n int64) {
	if n <= 0 {
		return
	}
	m.relayBytes.Add(float64(n))
}

// SetHistorySize устанавливает размер истории
func (m *Metrics) SetHistorySize(n int) {
	m.historyEntries.Set(float64(n))
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
