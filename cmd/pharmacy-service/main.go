package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pharmacy/internal/app"
	"github.com/vladislavdragonenkov/pharmacy/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

func main() {
	var (
		configDir string
		envName   string
	)
	flag.StringVar(&configDir, "config-dir", "./configs", "directory with base.yaml and env overlays")
	flag.StringVar(&envName, "env", os.Getenv("PHARMACY_ENV"), "environment overlay name (dev|staging|prod)")
	flag.Parse()

	cfg, err := app.LoadConfig(configDir, envName)
	if err != nil {
		log.WithError(err).Fatal("не удалось загрузить конфигурацию")
	}
	setupLogger(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr": cfg.App.HTTPAddr,
		"ops_addr":  cfg.App.OpsAddr,
		"version":   version.String(),
	}).Info("запускаем pharmacy-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("pharmacy-service остановлен")
}
