package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"recivo/internal/payload"
)

const (
	// DefaultBaseURL базовый адрес Murf API
	DefaultBaseURL = "https://api.murf.ai/v1"

	// DefaultAuthHeader заголовок с ключом API по умолчанию
	DefaultAuthHeader = "api-key"

	// максимальный размер тела ответа провайдера
	maxBodySize = 32 << 20
)

// Recorder принимает метрики запросов к провайдеру
type Recorder interface {
	RecordProviderRequest(operation string, success bool, seconds float64)
}

// Config настройки клиента провайдера
type Config struct {
	BaseURL    string
	APIKey     string
	AuthHeader string
	Timeout    time.Duration
	// RateLimit запросов в секунду, 0 - без ограничения
	RateLimit float64
}

// SynthesisRequest запрос на синтез речи
type SynthesisRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Format  string `json:"format,omitempty"`
}

// Response ответ провайдера
type Response struct {
	StatusCode int
	Body       []byte
	Value      payload.Value
}

// Client HTTP клиент к API синтеза речи
type Client struct {
	logger     *zap.Logger
	baseURL    string
	apiKey     string
	authHeader string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   Recorder
}

// NewClient создает новый клиент провайдера
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	authHeader := cfg.AuthHeader
	if authHeader == "" {
		authHeader = DefaultAuthHeader
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		authHeader: authHeader,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return c
}

// SetRecorder подключает запись метрик
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// SetHTTPClient заменяет HTTP клиент (используется в тестах)
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL возвращает базовый адрес API
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Synthesize отправляет текст на синтез и возвращает сырой ответ провайдера
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	c.logger.Debug("отправляем запрос на синтез",
		zap.String("voice_id", req.VoiceID),
		zap.Int("text_length", len(req.Text)),
		zap.String("format", req.Format))

	return c.do(ctx, OpSynthesize, http.MethodPost, c.baseURL+"/speech/generate", body)
}

// FetchStatus запрашивает статус задачи по полному адресу
func (c *Client) FetchStatus(ctx context.Context, statusURL string) (*Response, error) {
	return c.do(ctx, OpStatus, http.MethodGet, statusURL, nil)
}

// ListVoices запрашивает каталог голосов провайдера
func (c *Client) ListVoices(ctx context.Context) (*Response, error) {
	return c.do(ctx, OpVoices, http.MethodGet, c.baseURL+"/speech/voices", nil)
}

func (c *Client) do(ctx context.Context, op, method, url string, body []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Operation: op, Err: fmt.Errorf("ожидание лимита запросов: %w", err)}
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Operation: op, Err: fmt.Errorf("ошибка создания запроса: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, false, start)
		return nil, &Error{Operation: op, Err: fmt.Errorf("ошибка выполнения запроса: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.record(op, false, start)
		return nil, &Error{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("ошибка чтения ответа: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.record(op, false, start)
		c.logger.Warn("провайдер вернул ошибку",
			zap.String("operation", op),
			zap.Int("status_code", resp.StatusCode),
			zap.Int("body_size", len(respBody)))
		return nil, &Error{Operation: op, StatusCode: resp.StatusCode, Body: respBody}
	}

	c.record(op, true, start)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Value:      payload.FromBody(respBody),
	}, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	if strings.EqualFold(c.authHeader, "Authorization") {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return
	}
	req.Header.Set(c.authHeader, c.apiKey)
}

func (c *Client) record(op string, success bool, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordProviderRequest(op, success, time.Since(start).Seconds())
}
