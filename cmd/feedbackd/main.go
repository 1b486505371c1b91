package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"FeedbackAnalyzer/internal/app"
	"FeedbackAnalyzer/internal/config"
	"FeedbackAnalyzer/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application := app.New(cfg, logger)

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		stop()
		os.Exit(1)
	}
}
