package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/finbot/core/logger"
	tghelpers "github.com/m3rciful/finbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const startKey = "update_start"

var received = newRecentSet(10 * time.Second)

// recentSet remembers update ids for ttl.
type recentSet struct {
	mu    sync.Mutex
	ttl   time.Duration
	at    map[int]time.Time
	swept time.Time
}

func newRecentSet(ttl time.Duration) *recentSet {
	return &recentSet{ttl: ttl, at: make(map[int]time.Time)}
}

// firstSeen reports whether id was not seen within ttl and marks it.
func (s *recentSet) firstSeen(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.swept) >= s.ttl {
		for k, t := range s.at {
			if now.Sub(t) > s.ttl {
				delete(s.at, k)
			}
		}
		s.swept = now
	}
	if t, ok := s.at[id]; ok && now.Sub(t) <= s.ttl {
		return false
	}
	s.at[id] = now
	return true
}

// Trace assigns the update rid, caches the logging context and writes one
// sampled update.received debug line per update id.
func Trace(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(startKey, time.Now())
		ctx := tghelpers.BuildContext(c)

		upd := c.Update()
		if logger.ShouldSampleDebug() && received.firstSeen(upd.ID, time.Now()) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil {
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}
			if upd.Message != nil && c.Text() != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
			}
			logger.Debug(ctx, "tg", "update.received", attrs...)
		}
		return next(c)
	}
}

// Started returns when Trace first saw the update, or the zero time.
func Started(c tele.Context) time.Time {
	t, _ := c.Get(startKey).(time.Time)
	return t
}
