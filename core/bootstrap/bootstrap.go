// Package bootstrap brings up shared infrastructure in order: logger,
// database (optionally waiting for it), schema migrations.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/scanbot/core/config"
	coredatabase "github.com/m3rciful/scanbot/core/database"
	"github.com/m3rciful/scanbot/core/logger"
)

// Options overrides individual steps; nil steps use the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Wait       func(dsn string, timeout time.Duration) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result is the infrastructure handed to the application.
type Result struct {
	DB *sqlx.DB
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Wait == nil {
		o.Wait = coredatabase.WaitForPostgres
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Run executes the pipeline. On failure after connecting, the pool is closed.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	opts.defaults()
	start := time.Now()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.Database.WaitTimeout > 0 {
		if err := opts.Wait(opts.Database.DSN(), opts.Database.WaitTimeout); err != nil {
			return nil, fmt.Errorf("bootstrap: database not ready: %w", err)
		}
	}

	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if err := opts.Migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	logger.Info(logger.Background(), "app", "bootstrap.done",
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}
