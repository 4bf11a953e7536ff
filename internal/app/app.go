// Package app wires configuration, storage and the Telegram runtime into
// a running bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/finbot/core/bootstrap"
	"github.com/m3rciful/finbot/core/logger"
	tg "github.com/m3rciful/finbot/core/telegram"
	"github.com/m3rciful/finbot/core/telegram/router"
	tgsender "github.com/m3rciful/finbot/core/telegram/sender"
	"github.com/m3rciful/finbot/core/telegram/state"
	"github.com/m3rciful/finbot/internal/adminhttp"
	"github.com/m3rciful/finbot/internal/bot"
	"github.com/m3rciful/finbot/internal/chats"
	"github.com/m3rciful/finbot/internal/command"
	"github.com/m3rciful/finbot/internal/finance"
	"github.com/m3rciful/finbot/internal/rates"
)

var commandDescriptions = map[string]string{
	command.CurrentRates: "Current CBR currency rates",
	command.AddIncome:    "Record an income",
	command.AddSpend:     "Record a spending",
}

// App holds the assembled bot.
type App struct {
	cfg *Config
	db  *sqlx.DB

	registry    *tg.Registry
	transport   *bot.TelebotTransport
	dispatcher  *bot.Dispatcher
	queue       *tgsender.Dispatcher
	broadcaster *bot.Broadcaster
	schedule    *bot.RatesBroadcaster
	admin       *adminhttp.Server
}

// Bootstrap starts logging and, when configured, the database with its
// migrations, then assembles the App.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	opts := bootstrap.Options{Config: &cfg.Config}
	if cfg.DatabaseEnabled() {
		opts.Database = &cfg.Database
	}
	res, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB)
}

// New assembles the App. A nil db selects in-memory stores.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	var (
		chatStore    chats.Store
		financeStore finance.Store
	)
	if db != nil {
		chatStore = chats.NewPostgresStore(db)
		financeStore = finance.NewPostgresStore(db)
	} else {
		chatStore = chats.NewMemoryStore()
		financeStore = finance.NewMemoryStore()
	}

	source := rates.NewCBRClient(rates.CBROptions{
		URL:     cfg.Rates.URL,
		Timeout: cfg.Rates.Timeout,
	})
	transport := bot.NewTelebotTransport()

	dispatcher, err := bot.NewDispatcher(bot.Options{
		Rates:     source,
		Finance:   finance.NewService(financeStore),
		History:   state.NewMemoryTracker(),
		Transport: transport,
		Chats:     chatStore,
	})
	if err != nil {
		return nil, err
	}

	queue := tgsender.NewDispatcher(tgsender.Options{
		QueueSize: cfg.Broadcast.QueueSize,
		Workers:   cfg.Broadcast.Workers,
		Timeout:   cfg.Broadcast.SendTimeout,
	})
	broadcaster := bot.NewBroadcaster(chatStore, bot.NewNotifier(transport, queue))

	a := &App{
		cfg:         cfg,
		db:          db,
		registry:    tg.NewRegistry(),
		transport:   transport,
		dispatcher:  dispatcher,
		queue:       queue,
		broadcaster: broadcaster,
		schedule:    bot.NewRatesBroadcaster(source, broadcaster, cfg.Broadcast.RatesInterval),
	}
	if err := a.registerCommands(); err != nil {
		return nil, err
	}

	if cfg.Admin.Listen != "" {
		a.admin = adminhttp.NewServer(cfg.Admin.Listen, adminhttp.NewRouter(adminhttp.Options{
			Token:             cfg.Admin.Token,
			Broadcaster:       broadcaster,
			RequestsPerMinute: cfg.Admin.RequestsPerMinute,
			AllowedOrigins:    cfg.Admin.AllowedOrigins,
			TrustProxy:        cfg.Admin.TrustProxy,
		}))
	}
	return a, nil
}

// Every command and every other text goes through the same dispatch cycle.
func (a *App) registerCommands() error {
	h := a.dispatcher.Handler()
	for _, token := range command.All {
		err := a.registry.Register(token, tg.Command{
			Handler:     h,
			Description: commandDescriptions[token],
		})
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	a.registry.SetFallback(h)
	return nil
}

// Registry exposes the command registry.
func (a *App) Registry() *tg.Registry { return a.registry }

// Broadcaster exposes the active-chat broadcaster.
func (a *App) Broadcaster() *bot.Broadcaster { return a.broadcaster }

// TelegramRunOptions builds the runtime configuration for core/telegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a == nil || a.cfg == nil {
		return tg.RunOptions{}, fmt.Errorf("app: not initialized")
	}

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Dispatcher:  a.queue,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      router.Routes(a.registry, nil),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.transport.Bind(rt.Bot)
	if a.cfg.Broadcast.RatesInterval > 0 {
		go a.schedule.Run(ctx)
	}
	if a.admin != nil {
		a.admin.Start()
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	var firstErr error
	if a.admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "http.admin", "shutdown",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("db close: %w", err)
		}
	}
	return firstErr
}
