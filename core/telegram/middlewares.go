package telegram

import (
	coreconfig "github.com/m3rciful/finbot/core/config"
	"github.com/m3rciful/finbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares is the shared chain, outermost first: panic recovery,
// the optional per-user throttle, update tracing and reply counters.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.Recover}}
	if cfg != nil && cfg.RateLimit.Interval() > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.Throttle(middleware.ThrottleOptions{
				Interval:  cfg.RateLimit.Interval(),
				Exclude:   cfg.RateLimit.Excluded(),
				OnLimited: onLimited,
			}),
		})
	}
	return append(chain,
		Middleware{Name: "trace", Use: middleware.Trace},
		Middleware{Name: "counters", Use: middleware.Counters},
	)
}
