package metrics

import (
	"net/http"

	"go.uber.org/zap"
)

// Handler обрабатывает служебные HTTP запросы
type Handler struct {
	metrics *Metrics
	logger  *zap.Logger
	service string
}

// NewHandler создает новый обработчик метрик
func NewHandler(metrics *Metrics, service string, logger *zap.Logger) *Handler {
	return &Handler{
		metrics: metrics,
		logger:  logger,
		service: service,
	}
}

// MetricsHandler возвращает HTTP handler для Prometheus метрик
func (h *Handler) MetricsHandler() http.Handler {
	return h.metrics.Handler()
}

// HealthHandler возвращает статус здоровья сервиса
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok","service":"` + h.service + `"}`)); err != nil {
		h.logger.Debug("ошибка записи ответа health", zap.Error(err))
	}
}
