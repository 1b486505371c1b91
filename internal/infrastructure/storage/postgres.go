package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go"

	"FeedbackAnalyzer/internal/config"
)

// Open creates the connection pool and waits until Postgres answers a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	err = retry.Do(
		func() error {
			return db.PingContext(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Warn("postgres not ready", "attempt", n+1, "error", err)
			}
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}
