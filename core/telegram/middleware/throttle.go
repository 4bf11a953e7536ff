package middleware

import (
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/finbot/core/config"
	"github.com/m3rciful/finbot/core/logger"
	tghelpers "github.com/m3rciful/finbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ThrottleOptions configure Throttle.
type ThrottleOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds that are never throttled.
	Exclude map[string]struct{}
	// OnLimited runs instead of the handler for a dropped update.
	OnLimited tele.HandlerFunc
}

type throttle struct {
	opts ThrottleOptions
	mu   sync.Mutex
	last map[int64]time.Time
}

// Throttle drops updates that arrive from the same user within Interval of
// the previous accepted one. A zero Interval disables it.
func Throttle(opts ThrottleOptions) tele.MiddlewareFunc {
	t := &throttle{opts: opts, last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if t.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func (t *throttle) allow(userID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.last[userID]; ok && now.Sub(last) < t.opts.Interval {
		return false
	}
	t.last[userID] = now
	if len(t.last) > 4096 {
		for id, at := range t.last {
			if now.Sub(at) >= t.opts.Interval {
				delete(t.last, id)
			}
		}
	}
	return true
}

// UpdateKind classifies an update with the rate_limit.exclude_updates names.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return coreconfig.UpdateCallback
	case u.Message != nil:
		return coreconfig.UpdateMessage
	case u.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}
