package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"recivo/internal/config"
	"recivo/internal/history"
	"recivo/internal/metrics"
	"recivo/internal/poller"
	"recivo/internal/provider"
	"recivo/internal/relay"
	"recivo/internal/rules"
	"recivo/internal/scanner"
	"recivo/internal/speech"
	"recivo/internal/voices"
)

// App набор связанных компонентов сервиса
type App struct {
	Metrics  *metrics.Metrics
	Provider *provider.Client
	Poller   *poller.Poller
	History  *history.Ledger
	Speech   *speech.Service
	Relay    *relay.Relay
	Voices   *voices.Catalog
}

// New собирает компоненты по конфигурации. reg может быть nil,
// тогда метрики регистрируются в глобальном реестре.
func New(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) *App {
	m := metrics.New(logger, reg)

	client := provider.NewClient(provider.Config{
		BaseURL:    cfg.Murf.BaseURL,
		APIKey:     cfg.Murf.APIKey,
		AuthHeader: cfg.Murf.AuthHeader,
		Timeout:    cfg.Murf.Timeout,
		RateLimit:  cfg.Murf.RateLimit,
	}, logger.Named("provider"))
	client.SetRecorder(m)

	table := rules.DefaultTable()
	sc := scanner.New(cfg.Scanner.KeyPriority...)

	jobs := poller.New(client, sc, table, poller.Config{
		BaseURL:     client.BaseURL(),
		MaxAttempts: cfg.Poll.MaxAttempts,
		Interval:    cfg.Poll.Interval,
		Templates:   cfg.Poll.Templates,
	}, logger.Named("poller"))
	jobs.SetRecorder(m)

	ledger := history.NewLedger(cfg.History.Capacity)

	svc := speech.NewService(speech.Config{
		PublicBaseURL: cfg.App.PublicBaseURL,
		DefaultFormat: cfg.Murf.DefaultFormat,
	}, client, jobs, sc, table, ledger, logger.Named("speech"))
	svc.SetRecorder(m)

	return &App{
		Metrics:  m,
		Provider: client,
		Poller:   jobs,
		History:  ledger,
		Speech:   svc,
		Relay:    relay.New(logger.Named("relay")),
		Voices:   voices.NewCatalog(client, logger.Named("voices")),
	}
}
