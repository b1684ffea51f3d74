package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recivo/internal/app"
	"recivo/internal/config"
	"recivo/internal/logging"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:           "recivoctl",
		Short:         "Командная строка для синтеза речи через провайдера",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробные логи")
	rootCmd.AddCommand(voicesCmd, speakCmd, statusCmd)
}

// setup загружает конфигурацию и собирает компоненты для команды
func setup() (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := logging.New("development", level, "")
	if err != nil {
		return nil, nil, err
	}

	return app.New(cfg, logger, prometheus.NewRegistry()), logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
