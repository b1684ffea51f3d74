package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"recivo/internal/scanner"
)

var (
	// ErrInvalidURL адрес не является http(s) ссылкой или data URI
	ErrInvalidURL = errors.New("некорректный адрес аудио")

	// ErrUpstream не удалось получить аудио с удаленного сервера
	ErrUpstream = errors.New("ошибка загрузки аудио с удаленного сервера")
)

// Stream открытый поток аудио
type Stream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 если неизвестна
}

// Relay получает удаленное аудио для потоковой передачи клиенту
type Relay struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// New создает ретранслятор аудио
func New(logger *zap.Logger) *Relay {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Relay{
		logger: logger,
		// без общего таймаута: тело читается потоком
		httpClient: &http.Client{Transport: otelhttp.NewTransport(transport)},
	}
}

// SetHTTPClient заменяет HTTP клиент (используется в тестах)
func (r *Relay) SetHTTPClient(c *http.Client) {
	r.httpClient = c
}

// Open открывает поток аудио по ссылке. Вызывающий закрывает Body.
func (r *Relay) Open(ctx context.Context, ref string) (*Stream, error) {
	ref = strings.TrimSpace(ref)

	if scanner.IsDataURI(ref) {
		return openDataURI(ref)
	}

	if !scanner.IsHTTPURL(ref) {
		return nil, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: статус %d", ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Stream{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
	}, nil
}

// openDataURI декодирует встроенное аудио целиком до отправки ответа
func openDataURI(ref string) (*Stream, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, ErrInvalidURL
	}

	meta := ref[len("data:"):comma]
	mediaType, _, _ := strings.Cut(meta, ";")
	if mediaType == "" {
		mediaType = "audio/mpeg"
	}

	// переносы строк допустимы, дополнение "=" необязательно
	data := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, ref[comma+1:])
	data = strings.TrimRight(data, "=")

	raw, err := base64.RawStdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	return &Stream{
		Body:          io.NopCloser(bytes.NewReader(raw)),
		ContentType:   mediaType,
		ContentLength: int64(len(raw)),
	}, nil
}
