// Package bootstrap brings up process infrastructure before the bot runs:
// logging first, then the optional Postgres pool and its migrations.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/finbot/core/config"
	coredatabase "github.com/m3rciful/finbot/core/database"
	"github.com/m3rciful/finbot/core/logger"
)

// Options select the infrastructure to start. Nil funcs use the core
// implementations; tests replace them.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot runs without Postgres.
	Database *coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result is what Run started. DB is nil without a database.
type Result struct {
	DB *sqlx.DB
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Run starts the logger and, when configured, connects and migrates the
// database. A failed migration closes the pool it opened.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	opts.defaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	ctx := context.Background()

	if opts.Database == nil {
		logger.Warn(ctx, "db", "db.disabled",
			slog.String("reason", "no database.host"),
			slog.String("store", "memory"),
		)
		return &Result{}, nil
	}

	start := time.Now()
	db, err := opts.Connect(*opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := opts.Migrate(*opts.Database); err != nil {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}
	logger.Info(ctx, "db", "db.ready",
		slog.Duration("duration", time.Since(start)),
	)
	return &Result{DB: db}, nil
}
