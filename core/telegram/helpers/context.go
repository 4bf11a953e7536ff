// Package helpers connects a telebot update to the request-scoped logging
// context used by services.
package helpers

import (
	"context"

	"github.com/m3rciful/finbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey = "finbot.log_ctx"
	ridKey = "rid"
)

// UpdateIDs correlate the log lines of one update.
type UpdateIDs struct {
	Update int
	Chat   int64
	User   int64
}

// IDs reads the update, chat and sender ids; absent parts stay zero.
func IDs(c tele.Context) UpdateIDs {
	ids := UpdateIDs{Update: c.Update().ID}
	if chat := c.Chat(); chat != nil {
		ids.Chat = chat.ID
	}
	if user := c.Sender(); user != nil {
		ids.User = user.ID
	}
	return ids
}

// RID returns the request id of the update, assigning one on first use.
func RID(c tele.Context) string {
	if rid, _ := c.Get(ridKey).(string); rid != "" {
		return rid
	}
	ids := IDs(c)
	rid := logger.BuildRID(ids.Update, ids.Chat, ids.User)
	c.Set(ridKey, rid)
	return rid
}

// BuildContext returns the logging context of the update. It is built once
// and cached on c, so middleware and handlers share the same rid.
func BuildContext(c tele.Context) context.Context {
	if c == nil {
		return logger.Background()
	}
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	ids := IDs(c)
	ctx := logger.WithRID(context.Background(), RID(c))
	ctx = logger.WithUpdateMeta(ctx, ids.Update, ids.User, ids.Chat)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(ctxKey, ctx)
	return ctx
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || c == nil {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxKey, ctx)
	return ctx
}
