package poller

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"recivo/internal/payload"
	"recivo/internal/provider"
	"recivo/internal/rules"
	"recivo/internal/scanner"
)

const (
	// DefaultMaxAttempts максимальное число попыток опроса
	DefaultMaxAttempts = 20

	// DefaultInterval пауза между попытками
	DefaultInterval = 1000 * time.Millisecond
)

// DefaultTemplates шаблоны адресов статуса задачи, проверяются по порядку
var DefaultTemplates = []string{
	"{base}/speech/jobs/{id}",
	"{base}/speech/{id}",
}

// StatusFetcher запрашивает статус задачи у провайдера
type StatusFetcher interface {
	FetchStatus(ctx context.Context, statusURL string) (*provider.Response, error)
}

// Recorder принимает метрики опроса
type Recorder interface {
	RecordPoll(found bool, attempts int)
}

// Config настройки опроса
type Config struct {
	BaseURL     string
	MaxAttempts int
	Interval    time.Duration
	Templates   []string
}

// Job контекст задачи для логов
type Job struct {
	ID          string
	VoiceID     string
	TextPreview string
}

// Result итог опроса
type Result struct {
	JobID    string
	AudioRef string
	Found    bool
	Attempts int

	// Reachable хотя бы один адрес статуса ответил успешно
	Reachable bool
	// Raw последний успешно полученный ответ
	Raw payload.Value
}

// Poller опрашивает провайдера, пока не появится ссылка на аудио
type Poller struct {
	fetcher  StatusFetcher
	scanner  *scanner.Scanner
	rules    *rules.Table
	logger   *zap.Logger
	cfg      Config
	recorder Recorder
}

// New создает новый Poller
func New(fetcher StatusFetcher, sc *scanner.Scanner, table *rules.Table, cfg Config, logger *zap.Logger) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.Templates) == 0 {
		cfg.Templates = DefaultTemplates
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Poller{
		fetcher: fetcher,
		scanner: sc,
		rules:   table,
		logger:  logger,
		cfg:     cfg,
	}
}

// SetRecorder подключает запись метрик
func (p *Poller) SetRecorder(r Recorder) {
	p.recorder = r
}

// Poll опрашивает адреса статуса до успеха, исчерпания попыток или отмены ctx.
// Исчерпание попыток не является ошибкой: возвращается Result с Found=false.
func (p *Poller) Poll(ctx context.Context, job Job) Result {
	log := p.logger.With(
		zap.String("job_id", job.ID),
		zap.String("voice_id", job.VoiceID),
		zap.String("text_preview", job.TextPreview))

	result := Result{JobID: job.ID}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		p.attempt(ctx, job.ID, &result, log)
		if result.Found {
			log.Info("задача синтеза завершена",
				zap.Int("attempt", attempt),
				zap.Bool("inline", scanner.IsDataURI(result.AudioRef)))
			p.record(result)
			return result
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn("опрос задачи прерван", zap.Int("attempt", attempt), zap.Error(ctx.Err()))
			p.record(result)
			return result
		case <-timer.C:
		}
	}

	log.Warn("попытки опроса исчерпаны, задача остается в ожидании",
		zap.Int("attempts", result.Attempts))
	p.record(result)
	return result
}

// Check выполняет одну попытку опроса для внешнего запроса статуса
func (p *Poller) Check(ctx context.Context, jobID string) Result {
	result := Result{JobID: jobID, Attempts: 1}
	p.attempt(ctx, jobID, &result, p.logger.With(zap.String("job_id", jobID)))
	return result
}

// attempt проходит по всем адресам статуса один раз
func (p *Poller) attempt(ctx context.Context, jobID string, result *Result, log *zap.Logger) {
	for _, tpl := range p.cfg.Templates {
		if ctx.Err() != nil {
			return
		}

		statusURL := p.StatusURL(tpl, jobID)
		resp, err := p.fetcher.FetchStatus(ctx, statusURL)
		if err != nil {
			log.Debug("адрес статуса недоступен",
				zap.String("url", statusURL),
				zap.Int("attempt", result.Attempts),
				zap.Error(err))
			continue
		}

		result.Reachable = true
		result.Raw = resp.Value

		if ref, ok := p.scanner.Scan(resp.Value); ok {
			result.AudioRef = ref
			result.Found = true
			return
		}

		if p.rules.Completed(resp.Value) {
			if ref, ok := p.rules.OutputReference(resp.Value); ok {
				result.AudioRef = ref
				result.Found = true
				return
			}
		}
	}
}

// StatusURL подставляет базовый адрес и идентификатор в шаблон
func (p *Poller) StatusURL(tpl, jobID string) string {
	r := strings.NewReplacer(
		"{base}", p.cfg.BaseURL,
		"{id}", url.PathEscape(jobID),
	)
	return r.Replace(tpl)
}

func (p *Poller) record(result Result) {
	if p.recorder == nil {
		return
	}
	p.recorder.RecordPoll(result.Found, result.Attempts)
}
