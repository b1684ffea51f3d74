package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	App     AppConfig
	Murf    MurfConfig
	Poll    PollConfig
	Scanner ScannerConfig
	History HistoryConfig
	Voices  VoicesConfig
}

// AppConfig настройки HTTP сервиса
type AppConfig struct {
	Env           string        `env:"APP_ENV" envDefault:"development"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string        `env:"LOG_FILE"`
	Port          int           `env:"APP_PORT" envDefault:"8080"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL"`
	WriteTimeout  time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
}

// MurfConfig настройки провайдера синтеза речи
type MurfConfig struct {
	APIKey        string        `env:"MURF_API_KEY"`
	BaseURL       string        `env:"MURF_BASE_URL" envDefault:"https://api.murf.ai/v1"`
	AuthHeader    string        `env:"MURF_AUTH_HEADER" envDefault:"api-key"`
	DefaultFormat string        `env:"MURF_DEFAULT_FORMAT" envDefault:"mp3"`
	Timeout       time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
	RateLimit     float64       `env:"PROVIDER_RATE_LIMIT" envDefault:"0"`
}

// PollConfig настройки опроса асинхронных задач
type PollConfig struct {
	MaxAttempts int           `env:"POLL_MAX_ATTEMPTS" envDefault:"20"`
	Interval    time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	Templates   []string      `env:"POLL_STATUS_TEMPLATES" envDefault:"{base}/speech/jobs/{id},{base}/speech/{id}"`
}

// ScannerConfig настройки поиска аудио в ответе
type ScannerConfig struct {
	// KeyPriority ключи объекта, проверяемые раньше остальных
	KeyPriority []string `env:"SCANNER_KEY_PRIORITY"`
}

// HistoryConfig настройки истории запросов
type HistoryConfig struct {
	Capacity int `env:"HISTORY_CAPACITY" envDefault:"50"`
}

// VoicesConfig настройки каталога голосов
type VoicesConfig struct {
	// RefreshInterval 0 отключает фоновое обновление
	RefreshInterval time.Duration `env:"VOICES_REFRESH_INTERVAL" envDefault:"6h"`
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	cfg.Murf.BaseURL = strings.TrimSuffix(cfg.Murf.BaseURL, "/")
	cfg.App.PublicBaseURL = strings.TrimSuffix(cfg.App.PublicBaseURL, "/")

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Murf.APIKey == "" {
		return fmt.Errorf("MURF_API_KEY не установлен")
	}
	if _, err := url.ParseRequestURI(config.Murf.BaseURL); err != nil {
		return fmt.Errorf("некорректный MURF_BASE_URL: %w", err)
	}
	if config.App.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(config.App.PublicBaseURL); err != nil {
			return fmt.Errorf("некорректный PUBLIC_BASE_URL: %w", err)
		}
	}
	if config.App.Port <= 0 || config.App.Port > 65535 {
		return fmt.Errorf("некорректный APP_PORT: %d", config.App.Port)
	}
	if config.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS должен быть больше нуля")
	}
	if config.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL должен быть больше нуля")
	}
	for _, tpl := range config.Poll.Templates {
		if !strings.Contains(tpl, "{id}") {
			return fmt.Errorf("шаблон статуса %q не содержит {id}", tpl)
		}
	}
	if config.Murf.RateLimit < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT не может быть отрицательным")
	}
	if config.History.Capacity <= 0 {
		return fmt.Errorf("HISTORY_CAPACITY должен быть больше нуля")
	}
	if config.Voices.RefreshInterval < 0 {
		return fmt.Errorf("VOICES_REFRESH_INTERVAL не может быть отрицательным")
	}

	return nil
}

// Addr возвращает адрес для HTTP сервера
func (c *AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
