package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/finbot/core/logger"
	"github.com/m3rciful/finbot/internal/rates"
)

// RatesBroadcaster periodically sends the current listing to every active chat.
type RatesBroadcaster struct {
	source      rates.Source
	broadcaster *Broadcaster
	interval    time.Duration
}

func NewRatesBroadcaster(source rates.Source, b *Broadcaster, interval time.Duration) *RatesBroadcaster {
	return &RatesBroadcaster{source: source, broadcaster: b, interval: interval}
}

// Run ticks until ctx is done. A non-positive interval returns at once.
func (r *RatesBroadcaster) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	logger.Info(ctx, "service.broadcast", "schedule.start",
		slog.Duration("interval", r.interval),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "service.broadcast", "schedule.stop")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one scheduled broadcast.
func (r *RatesBroadcaster) Tick(ctx context.Context) {
	quotes, err := r.source.Fetch(ctx)
	if err != nil {
		logger.Warn(ctx, "service.rates", "rates.fetch",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	body := rates.Render(quotes)
	if body == "" {
		logger.Debug(ctx, "service.broadcast", "schedule.skip",
			slog.String("reason", "no_quotes"),
		)
		return
	}
	n, err := r.broadcaster.Broadcast(ctx, body)
	if err != nil {
		logger.Error(ctx, "service.broadcast", "schedule.broadcast",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "service.broadcast", "schedule.broadcast",
		slog.String("status", "ok"),
		slog.Int("recipients", n),
		slog.Int("quotes", len(quotes)),
	)
}
