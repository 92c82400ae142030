package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/scanbot/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	waitStepMax    = 5 * time.Second
)

func (c Config) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("driver", driverName),
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// Connect opens the pool, sizes it and verifies the server answers.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(cfg.attrs(),
				slog.String("status", "fail"),
				slog.Duration("duration", logger.Took(start)),
				slog.String("err", err.Error()),
			)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	// idle connections are capped at half the pool; the bot is bursty
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(max(1, cfg.MaxConnections/2))
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(cfg.attrs(),
			slog.String("status", "ok"),
			slog.Int("pool_open", cfg.MaxConnections),
			slog.Duration("duration", logger.Took(start)),
		)...)
	return db, nil
}

// WaitForPostgres pings dsn until it answers or timeout elapses. The pause
// between attempts doubles up to waitStepMax.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	step := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := pingOnce(ctx, dsn)
		if err == nil {
			logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.wait",
				slog.String("status", "ok"),
				slog.Int("attempts", attempt),
				slog.Duration("duration", logger.Took(start)),
			)
			return nil
		}
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.wait",
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", step),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s (%d attempts): %w", timeout, attempt, err)
		case <-time.After(step):
		}
		step = min(step*2, waitStepMax)
	}
}

func pingOnce(ctx context.Context, dsn string) error {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return db.PingContext(pctx)
}
