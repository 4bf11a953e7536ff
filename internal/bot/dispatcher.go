// Package bot holds the per-message dispatch cycle and the broadcast paths.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/finbot/core/logger"
	tghelpers "github.com/m3rciful/finbot/core/telegram/helpers"
	"github.com/m3rciful/finbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/finbot/core/telegram/sender"
	"github.com/m3rciful/finbot/core/telegram/state"
	"github.com/m3rciful/finbot/internal/chats"
	"github.com/m3rciful/finbot/internal/command"
	"github.com/m3rciful/finbot/internal/finance"
	"github.com/m3rciful/finbot/internal/rates"

	tele "gopkg.in/telebot.v4"
)

// RatesUnavailable replaces the listing when the rate source fails.
const RatesUnavailable = "Currency rates are unavailable right now, please try again later"

// FinanceInterpreter answers a free-text message given the previous command.
type FinanceInterpreter interface {
	AddFinanceOperation(ctx context.Context, previous, text string, chatID int64) string
}

// InboundMessage is the part of an update the dispatcher needs.
type InboundMessage struct {
	ChatID int64
	Text   string
}

// Outcome reports what a dispatch cycle did.
type Outcome struct {
	Reply     string
	Delivered bool
	Recovered bool
}

// Options wires the dispatcher collaborators. All fields are required.
type Options struct {
	Rates     rates.Source
	Finance   FinanceInterpreter
	History   state.Tracker
	Transport Transport
	Chats     chats.Store
}

// Dispatcher runs one cycle per inbound message: build the reply, record the
// text, send, then remember the chat.
type Dispatcher struct {
	rates     rates.Source
	finance   FinanceInterpreter
	history   state.Tracker
	transport Transport
	chats     chats.Store
}

func NewDispatcher(opts Options) (*Dispatcher, error) {
	var missing []string
	if opts.Rates == nil {
		missing = append(missing, "rates")
	}
	if opts.Finance == nil {
		missing = append(missing, "finance")
	}
	if opts.History == nil {
		missing = append(missing, "history")
	}
	if opts.Transport == nil {
		missing = append(missing, "transport")
	}
	if opts.Chats == nil {
		missing = append(missing, "chats")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("bot: dispatcher missing %s", strings.Join(missing, ", "))
	}
	return &Dispatcher{
		rates:     opts.Rates,
		finance:   opts.Finance,
		history:   opts.History,
		transport: opts.Transport,
		chats:     opts.Chats,
	}, nil
}

// Reply classifies text and builds the answer. It reads history but never
// writes it.
func (d *Dispatcher) Reply(ctx context.Context, msg InboundMessage) string {
	token, ok := command.Match(msg.Text)
	if ok {
		switch token {
		case command.CurrentRates:
			return d.currentRates(ctx)
		case command.AddIncome:
			return finance.IncomePrompt
		case command.AddSpend:
			return finance.SpendPrompt
		}
	}
	prev, ok := d.history.LastCommand(msg.ChatID)
	if !ok {
		return finance.NotUnderstood
	}
	return d.finance.AddFinanceOperation(ctx, prev, msg.Text, msg.ChatID)
}

func (d *Dispatcher) currentRates(ctx context.Context) string {
	quotes, err := d.rates.Fetch(ctx)
	if err != nil {
		logger.Warn(ctx, "service.rates", "rates.fetch",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return RatesUnavailable
	}
	return rates.Render(quotes)
}

// Dispatch runs a full cycle. A panic anywhere in the cycle is logged and
// ends it.
func (d *Dispatcher) Dispatch(ctx context.Context, msg InboundMessage) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Recovered = true
			logger.Error(ctx, "bot.dispatch", "dispatch.panic",
				slog.Int64("chat_id", msg.ChatID),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", logger.Stack()),
			)
		}
	}()

	out.Reply = d.Reply(ctx, msg)
	d.history.Record(msg.ChatID, msg.Text)

	if out.Reply == "" {
		logger.Debug(ctx, "bot.dispatch", "dispatch.reply",
			slog.String("status", "skip"),
			slog.String("reason", "empty"),
		)
		return out
	}
	if err := d.transport.Send(ctx, strconv.FormatInt(msg.ChatID, 10), out.Reply); err != nil {
		logger.Warn(ctx, "bot.dispatch", "dispatch.reply",
			slog.String("status", "fail"),
			slog.Int64("chat_id", msg.ChatID),
			slog.String("err", tgsender.SanitizeError(err)),
			slog.String("err_code", tgsender.ClassifyError(err)),
		)
		return out
	}
	out.Delivered = true

	d.rememberChat(ctx, msg.ChatID)

	logger.Debug(ctx, "bot.dispatch", "dispatch.done",
		slog.Int64("chat_id", msg.ChatID),
		slog.Bool("delivered", out.Delivered),
		slog.Duration("duration", time.Since(start)),
	)
	return out
}

func (d *Dispatcher) rememberChat(ctx context.Context, chatID int64) {
	exists, err := d.chats.Exists(ctx, chatID)
	if err != nil {
		logger.Error(ctx, "service.chats", "chat.exists",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	if exists {
		return
	}
	if err := d.chats.Insert(ctx, chatID); err != nil {
		logger.Error(ctx, "service.chats", "chat.insert",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "service.chats", "chat.insert",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
	)
}

// Handler adapts the dispatcher to telebot. Updates without a message or
// chat are ignored.
func (d *Dispatcher) Handler() tele.HandlerFunc {
	return func(c tele.Context) error {
		msg := c.Message()
		chat := c.Chat()
		if msg == nil || chat == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		out := d.Dispatch(ctx, InboundMessage{ChatID: chat.ID, Text: msg.Text})
		if out.Delivered {
			middleware.CountMessage(c)
		}
		return nil
	}
}
