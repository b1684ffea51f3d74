package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"recivo/internal/metrics"
	"recivo/internal/relay"
	"recivo/internal/speech"
	"recivo/internal/voices"
)

// ServiceName имя сервиса в health ответе и трассировке
const ServiceName = "recivo"

// Config настройки HTTP сервера
type Config struct {
	Addr string
	// WriteTimeout должен покрывать полный цикл опроса задачи
	WriteTimeout time.Duration
}

// Server HTTP API сервиса синтеза речи
type Server struct {
	logger  *zap.Logger
	server  *http.Server
	speech  *speech.Service
	relay   *relay.Relay
	voices  *voices.Catalog
	metrics *metrics.Metrics
	handler http.Handler
}

// New создает HTTP сервер
func New(
	cfg Config,
	svc *speech.Service,
	rl *relay.Relay,
	catalog *voices.Catalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	s := &Server{
		logger:  logger,
		speech:  svc,
		relay:   rl,
		voices:  catalog,
		metrics: m,
	}

	system := metrics.NewHandler(m, ServiceName, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tts", s.handleSpeak)
	mux.HandleFunc("GET /api/tts/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/tts/last", s.handleLast)
	mux.HandleFunc("GET /api/tts/history", s.handleHistory)
	mux.HandleFunc("GET /api/tts/proxy", s.handleProxy)
	mux.HandleFunc("GET /api/tts/voices", s.handleVoices)
	mux.HandleFunc("GET /health", system.HealthHandler)
	mux.Handle("GET /metrics", system.MetricsHandler())

	s.handler = otelhttp.NewHandler(s.withRequestID(s.withCORS(s.withLogging(mux))), ServiceName)

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler возвращает корневой обработчик со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start начинает прием HTTP запросов и блокируется до остановки сервера
func (s *Server) Start() error {
	s.logger.Info("HTTP сервер запущен", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("остановка HTTP сервера")
	return s.server.Shutdown(ctx)
}
