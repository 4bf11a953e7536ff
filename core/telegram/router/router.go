// Package router turns a command registry into telebot routes and logs one
// handler.handled summary per update.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/finbot/core/logger"
	tg "github.com/m3rciful/finbot/core/telegram"
	tghelpers "github.com/m3rciful/finbot/core/telegram/helpers"
	"github.com/m3rciful/finbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/finbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Routes returns an exact route per registered command plus an OnText
// route. Telebot matches commands by exact text, so OnText resolves other
// spellings through the registry before trying the fallback, then unknown.
func Routes(reg *tg.Registry, unknown tele.HandlerFunc) []tg.Route {
	names := reg.Names()
	routes := make([]tg.Route, 0, len(names)+1)
	for _, key := range names {
		cmd, _ := reg.Get(key)
		routes = append(routes, tg.Route{
			Endpoint: key,
			Handler:  named(handlerName(key), cmd.Handler),
		})
	}
	routes = append(routes, tg.Route{
		Endpoint: tele.OnText,
		Handler:  textHandler(reg, unknown),
	})

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(names)),
		slog.Bool("text_fallback", reg.Fallback() != nil),
	)
	return routes
}

func textHandler(reg *tg.Registry, unknown tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if key, cmd, ok := reg.Lookup(c.Text()); ok {
			return run(c, handlerName(key), cmd.Handler)
		}
		if fb := reg.Fallback(); fb != nil {
			return run(c, "fallback", fb)
		}
		if unknown != nil {
			return run(c, "unknown_text", unknown)
		}
		summarize(c, "unknown_text", "skip", nil)
		return nil
	}
}

func named(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error { return run(c, name, h) }
}

func run(c tele.Context, name string, h tele.HandlerFunc) error {
	tghelpers.WithHandler(c, name)
	err := h(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	summarize(c, name, status, err)
	return err
}

func summarize(c tele.Context, name, status string, err error) {
	ctx := tghelpers.BuildContext(c)
	msgs, kb := middleware.Counts(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
	}
	if start := middleware.Started(c); !start.IsZero() {
		attrs = append(attrs, slog.Duration("duration", time.Since(start)))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(tgsender.SanitizeError(err), 256)),
			slog.String("err_code", errCode(err)),
		)
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

// handlerName turns a command key into a log-friendly name.
func handlerName(key string) string {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errCode prefers an error's own Code() and otherwise classifies transport
// failures.
func errCode(err error) string {
	if c, ok := err.(interface{ Code() string }); ok {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return tgsender.ClassifyError(err)
}
