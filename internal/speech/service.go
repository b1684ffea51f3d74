package speech

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"recivo/internal/history"
	"recivo/internal/payload"
	"recivo/internal/poller"
	"recivo/internal/provider"
	"recivo/internal/rules"
	"recivo/internal/scanner"
)

const (
	// DefaultProxyPath путь ретранслятора аудио
	DefaultProxyPath = "/api/tts/proxy"

	// длина превью текста в логах
	logPreviewLength = 40
)

var (
	// ErrInvalidRequest не заданы обязательные поля запроса
	ErrInvalidRequest = errors.New("text и voiceId обязательны")

	// ErrJobNotFound ни один адрес статуса не ответил по задаче
	ErrJobNotFound = errors.New("задача не найдена")
)

// Synthesizer отправляет запрос на синтез провайдеру
type Synthesizer interface {
	Synthesize(ctx context.Context, req provider.SynthesisRequest) (*provider.Response, error)
}

// JobPoller разрешает асинхронные задачи провайдера
type JobPoller interface {
	Poll(ctx context.Context, job poller.Job) poller.Result
	Check(ctx context.Context, jobID string) poller.Result
}

// Recorder принимает метрики обработки запросов
type Recorder interface {
	RecordSpeech(status string, seconds float64)
	SetHistorySize(n int)
}

// Config настройки оркестратора
type Config struct {
	// PublicBaseURL внешний адрес сервиса для proxyUrl, пустой - относительные ссылки
	PublicBaseURL string
	DefaultFormat string
}

// Service проводит запрос на синтез от начала до одного из трех исходов
type Service struct {
	synth    Synthesizer
	poller   JobPoller
	scanner  *scanner.Scanner
	rules    *rules.Table
	history  *history.Ledger
	logger   *zap.Logger
	recorder Recorder

	proxyBase     string
	defaultFormat string

	mu      sync.RWMutex
	lastRaw *payload.Value
}

// NewService создает оркестратор запросов на синтез
func NewService(
	cfg Config,
	synth Synthesizer,
	jobs JobPoller,
	sc *scanner.Scanner,
	table *rules.Table,
	ledger *history.Ledger,
	logger *zap.Logger,
) *Service {
	return &Service{
		synth:         synth,
		poller:        jobs,
		scanner:       sc,
		rules:         table,
		history:       ledger,
		logger:        logger,
		proxyBase:     strings.TrimSuffix(cfg.PublicBaseURL, "/") + DefaultProxyPath + "?url=",
		defaultFormat: cfg.DefaultFormat,
	}
}

// SetRecorder подключает запись метрик
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Speak выполняет запрос на синтез. Ошибка возвращается только для
// некорректного запроса, остальные исходы описываются Outcome.
func (s *Service) Speak(ctx context.Context, req Request) (Outcome, error) {
	req.Text = strings.TrimSpace(req.Text)
	req.VoiceID = strings.TrimSpace(req.VoiceID)
	if req.Text == "" || req.VoiceID == "" {
		return Outcome{}, ErrInvalidRequest
	}
	if req.Format == "" {
		req.Format = s.defaultFormat
	}

	start := time.Now()
	log := s.logger.With(
		zap.String("voice_id", req.VoiceID),
		zap.Int("text_length", len(req.Text)),
		zap.String("text_preview", history.Preview(req.Text, logPreviewLength)))

	outcome := s.speak(ctx, req, log)
	s.record(outcome, start)

	return outcome, nil
}

func (s *Service) speak(ctx context.Context, req Request, log *zap.Logger) Outcome {
	resp, err := s.synth.Synthesize(ctx, provider.SynthesisRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
		Format:  req.Format,
	})
	if err != nil {
		return s.transportFailure(err, log)
	}

	s.setLastRaw(resp.Value)

	if ref, ok := s.directReference(resp.Value, log); ok {
		return s.ready(req, ref, log)
	}

	jobID, ok := s.rules.JobIdentifier(resp.Value)
	if !ok {
		log.Error("ответ провайдера не содержит ни аудио, ни идентификатора задачи",
			zap.Int("body_size", len(resp.Body)))
		return Outcome{
			Status:  StatusFailed,
			Failure: FailureUnresolved,
			Detail:  "ответ провайдера не содержит ссылку на аудио или идентификатор задачи",
			Raw:     resp.Value,
		}
	}

	log.Info("провайдер вернул асинхронную задачу, начинаем опрос", zap.String("job_id", jobID))

	result := s.poller.Poll(ctx, poller.Job{
		ID:          jobID,
		VoiceID:     req.VoiceID,
		TextPreview: history.Preview(req.Text, logPreviewLength),
	})
	if result.Found {
		return s.ready(req, result.AudioRef, log)
	}

	raw := resp.Value
	if result.Reachable {
		raw = result.Raw
	}

	return Outcome{
		Status: StatusPending,
		JobID:  jobID,
		Raw:    raw,
	}
}

// directReference ищет ссылку сначала по таблице полей, затем сканером
func (s *Service) directReference(v payload.Value, log *zap.Logger) (string, bool) {
	if ref, rule, ok := s.rules.AudioReference(v); ok {
		log.Debug("ссылка найдена по известному полю", zap.String("field", rule.Path))
		return ref, true
	}
	if ref, ok := s.scanner.Scan(v); ok {
		log.Debug("ссылка найдена сканером ответа")
		return ref, true
	}
	return "", false
}

func (s *Service) ready(req Request, ref string, log *zap.Logger) Outcome {
	s.history.Add(req.Text, req.VoiceID, ref)
	if s.recorder != nil {
		s.recorder.SetHistorySize(s.history.Len())
	}

	log.Info("аудио готово", zap.Bool("inline", scanner.IsDataURI(ref)))

	return Outcome{
		Status:   StatusReady,
		AudioURL: ref,
		ProxyURL: s.ProxyURL(ref),
	}
}

func (s *Service) transportFailure(err error, log *zap.Logger) Outcome {
	outcome := Outcome{
		Status:  StatusFailed,
		Failure: FailureTransport,
		Detail:  err.Error(),
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		outcome.Detail = perr.Detail()
		if len(perr.Body) > 0 {
			outcome.Raw = perr.Raw()
			s.setLastRaw(outcome.Raw)
		}
	}

	log.Error("ошибка обращения к провайдеру", zap.Error(err))
	return outcome
}

// Status выполняет одну проверку задачи по идентификатору
func (s *Service) Status(ctx context.Context, jobID string) (Outcome, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Outcome{}, ErrJobNotFound
	}

	result := s.poller.Check(ctx, jobID)
	if result.Found {
		return Outcome{
			Status:   StatusReady,
			JobID:    jobID,
			AudioURL: result.AudioRef,
			ProxyURL: s.ProxyURL(result.AudioRef),
		}, nil
	}

	if !result.Reachable {
		s.logger.Warn("статус задачи недоступен", zap.String("job_id", jobID))
		return Outcome{}, ErrJobNotFound
	}

	return Outcome{
		Status: StatusPending,
		JobID:  jobID,
		Raw:    result.Raw,
	}, nil
}

// ProxyURL строит адрес ретранслятора для ссылки на аудио
func (s *Service) ProxyURL(ref string) string {
	return s.proxyBase + url.QueryEscape(ref)
}

// LastRaw возвращает последний ответ провайдера на запрос синтеза
func (s *Service) LastRaw() (payload.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastRaw == nil {
		return payload.Value{}, false
	}
	return *s.lastRaw, true
}

// History возвращает историю успешных запросов, новые первыми
func (s *Service) History() []history.Entry {
	return s.history.List()
}

func (s *Service) setLastRaw(v payload.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRaw = &v
}

func (s *Service) record(outcome Outcome, start time.Time) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordSpeech(string(outcome.Status), time.Since(start).Seconds())
}
