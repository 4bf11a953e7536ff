// Package telegram runs a telebot bot: poller and HTTP client setup,
// middleware and route wiring, the command menu, and lifecycle hooks.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/finbot/core/config"
	"github.com/m3rciful/finbot/core/logger"
	tgsender "github.com/m3rciful/finbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const apiURL = "https://api.telegram.org"

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint such as "/start" or tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions configure RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher is the outbound send queue. When nil one is built from
	// DispatcherOptions and closed on exit.
	Dispatcher        *tgsender.Dispatcher
	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	// DisableWebhookCleanup keeps a registered webhook in long-poll mode.
	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks receive.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot and serves updates until ctx is cancelled.
// Handlers run concurrently, so per-chat state must tolerate that.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	cfg := opts.Config
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	client := newHTTPClient()
	poller := newPoller(cfg)
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  client,
		OnError: onError,
	})
	if err != nil {
		return fmt.Errorf("telegram: new bot: %w", err)
	}
	logMode(ctx, cfg, poller, time.Since(start))

	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll && !opts.DisableWebhookCleanup {
		cleanupWebhook(ctx, client, cfg.Telegram.Token)
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	publishMenu(ctx, bot, opts.Registry)

	queue := opts.Dispatcher
	if queue == nil {
		queue = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	rt := Runtime{Bot: bot, Dispatcher: queue, Registry: opts.Registry}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			queue.Close()
			return err
		}
	}

	runErr := serve(ctx, bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	queue.Close()

	if stopErr != nil {
		return stopErr
	}
	return runErr
}

// serve blocks in bot.Start until ctx ends or the poller quits.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
	}
	if err := ctx.Err(); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   cfg.Webhook.Addr(),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: cfg.Telegram.LongPollTimeout()}
}

func onError(err error, c tele.Context) {
	ctx := logger.Background()
	attrs := []slog.Attr{
		slog.String("err", tgsender.SanitizeError(err)),
		slog.String("err_code", tgsender.ClassifyError(err)),
	}
	if c != nil {
		attrs = append(attrs, slog.Int("update_id", c.Update().ID))
	}
	logger.Error(ctx, "tg", "update.error", attrs...)
}

func logMode(ctx context.Context, cfg *coreconfig.Config, p tele.Poller, took time.Duration) {
	attrs := []slog.Attr{slog.Duration("duration", took)}
	if w, ok := p.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", w.Listen),
			slog.String("public_url", w.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", "polling"),
			slog.Duration("timeout", cfg.Telegram.LongPollTimeout()),
		)
	}
	logger.Info(ctx, "tg", "mode", attrs...)
}

// cleanupWebhook removes a webhook left from an earlier deployment; Telegram
// refuses getUpdates while one is set. Pending updates are kept.
func cleanupWebhook(ctx context.Context, client *http.Client, token string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := deleteWebhook(ctx, client, apiURL, token)
	if err != nil {
		logger.Warn(ctx, "tg", "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", tgsender.SanitizeError(err)),
		)
		return
	}
	logger.Info(ctx, "tg", "delete_webhook", slog.String("status", "ok"))
}

func deleteWebhook(ctx context.Context, client *http.Client, base, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	form := url.Values{"drop_pending_updates": {"false"}}
	endpoint := base + "/bot" + token + "/deleteWebhook"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook: %s", resp.Status)
	}
	return nil
}

// publishMenu sends the visible commands to setMyCommands.
func publishMenu(ctx context.Context, bot *tele.Bot, reg *Registry) {
	menu := reg.Menu()
	if len(menu) == 0 {
		return
	}
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(ctx, "tg.wire", "register.commands.set_failed",
			slog.String("err", tgsender.SanitizeError(err)),
		)
		return
	}
	logger.Info(ctx, "tg.wire", "register.commands.set", slog.Int("count", len(menu)))
}
