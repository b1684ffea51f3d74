package voices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"recivo/internal/payload"
	"recivo/internal/provider"
)

// ErrNotLoaded каталог голосов еще не загружен
var ErrNotLoaded = errors.New("каталог голосов еще не загружен")

// Fetcher запрашивает список голосов у провайдера
type Fetcher interface {
	ListVoices(ctx context.Context) (*provider.Response, error)
}

// Voice голос провайдера
type Voice struct {
	ID          string   `json:"voiceId"`
	DisplayName string   `json:"displayName,omitempty"`
	Locale      string   `json:"locale,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Styles      []string `json:"styles,omitempty"`
}

// Catalog кэш каталога голосов
type Catalog struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu        sync.RWMutex
	voices    []Voice
	updatedAt time.Time
}

// NewCatalog создает каталог голосов
func NewCatalog(fetcher Fetcher, logger *zap.Logger) *Catalog {
	return &Catalog{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Run обновляет каталог, используется планировщиком
func (c *Catalog) Run(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh загружает каталог у провайдера. При ошибке старый каталог сохраняется.
func (c *Catalog) Refresh(ctx context.Context) error {
	resp, err := c.fetcher.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки каталога голосов: %w", err)
	}

	list := Parse(resp.Value)

	c.mu.Lock()
	c.voices = list
	c.updatedAt = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Info("каталог голосов обновлен", zap.Int("voices_count", len(list)))
	return nil
}

// List возвращает копию каталога и время последнего обновления
func (c *Catalog) List() ([]Voice, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.updatedAt.IsZero() {
		return nil, time.Time{}, ErrNotLoaded
	}

	out := make([]Voice, len(c.voices))
	copy(out, c.voices)
	return out, c.updatedAt, nil
}

// Parse извлекает голоса из ответа: список или объект с полем voices
func Parse(v payload.Value) []Voice {
	items := v.Items()
	if v.Kind() == payload.KindObject {
		if inner, ok := v.Get("voices"); ok {
			items = inner.Items()
		}
	}

	out := make([]Voice, 0, len(items))
	for _, item := range items {
		voice := Voice{
			ID:          firstString(item, "voiceId", "voice_id", "id"),
			DisplayName: firstString(item, "displayName", "name"),
			Locale:      firstString(item, "locale", "language"),
			Gender:      firstString(item, "gender"),
		}
		if voice.ID == "" {
			continue
		}

		styles, _ := item.Get("availableStyles")
		for _, s := range styles.Items() {
			if str, ok := s.Str(); ok {
				voice.Styles = append(voice.Styles, str)
			}
		}

		out = append(out, voice)
	}
	return out
}

func firstString(v payload.Value, keys ...string) string {
	for _, key := range keys {
		field, ok := v.Get(key)
		if !ok {
			continue
		}
		if s, ok := field.Str(); ok && s != "" {
			return s
		}
	}
	return ""
}
