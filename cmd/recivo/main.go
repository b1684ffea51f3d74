package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recivo/internal/api"
	"recivo/internal/app"
	"recivo/internal/config"
	"recivo/internal/logging"
	"recivo/internal/scheduler"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger, err := logging.New(cfg.App.Env, cfg.App.GetLogLevel(), cfg.App.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск сервиса ReciVo",
		zap.String("env", cfg.App.Env),
		zap.String("provider_url", cfg.Murf.BaseURL),
		zap.Int("poll_max_attempts", cfg.Poll.MaxAttempts),
		zap.Duration("poll_interval", cfg.Poll.Interval),
		zap.Int("history_capacity", cfg.History.Capacity))

	components := app.New(cfg, logger, nil)

	server := api.New(api.Config{
		Addr:         cfg.App.Addr(),
		WriteTimeout: cfg.App.WriteTimeout,
	}, components.Speech, components.Relay, components.Voices, components.Metrics, logger.Named("api"))

	// Обработка сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал завершения, начинаем graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ошибка при остановке HTTP сервера: %w", err)
		}
		return nil
	})

	// Каталог голосов обновляется в фоне
	if cfg.Voices.RefreshInterval > 0 {
		taskScheduler := scheduler.NewScheduler(logger.Named("scheduler"), time.Minute)
		taskScheduler.AddJob("voices_refresh", components.Voices)

		g.Go(func() error {
			taskScheduler.Start(gctx, cfg.Voices.RefreshInterval)
			return nil
		})
	} else {
		logger.Info("фоновое обновление каталога голосов отключено")
	}

	logger.Info("сервис запущен и готов к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("сервис завершился с ошибкой", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("сервис остановлен")
}
