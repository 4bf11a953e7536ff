package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/m3rciful/finbot/core/logger"
	tgsender "github.com/m3rciful/finbot/core/telegram/sender"
	"github.com/m3rciful/finbot/internal/chats"
)

// ErrEmptyBroadcast rejects a broadcast without text.
var ErrEmptyBroadcast = errors.New("bot: empty broadcast text")

// Notifier sends one text to many chats. With a queue the sends run on the
// sender workers and NotifyAll returns before they finish.
type Notifier struct {
	transport Transport
	queue     *tgsender.Dispatcher
}

// NewNotifier returns a Notifier; queue may be nil for synchronous sends.
func NewNotifier(transport Transport, queue *tgsender.Dispatcher) *Notifier {
	return &Notifier{transport: transport, queue: queue}
}

// NotifyAll attempts every recipient. Failures are logged per chat and never
// stop the loop.
func (n *Notifier) NotifyAll(ctx context.Context, text string, chatIDs map[int64]struct{}) {
	ids := make([]int64, 0, len(chatIDs))
	for id := range chatIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Queued jobs outlive the caller, e.g. an HTTP request.
	jobCtx := context.WithoutCancel(ctx)

	var queued, failed int
	for _, id := range ids {
		chatID := id
		send := func(ctx context.Context) error {
			return n.transport.Send(ctx, strconv.FormatInt(chatID, 10), text)
		}
		if n.queue != nil {
			err := n.queue.Enqueue(jobCtx, "broadcast", "sendMessage", chatID, send)
			if err == nil {
				queued++
				continue
			}
			logger.Warn(ctx, "service.broadcast", "broadcast.enqueue",
				slog.String("status", "fail"),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			if errors.Is(err, tgsender.ErrQueueClosed) {
				failed++
				continue
			}
		}
		if err := send(ctx); err != nil {
			failed++
			logger.Warn(ctx, "service.broadcast", "broadcast.send",
				slog.String("status", "fail"),
				slog.Int64("chat_id", chatID),
				slog.String("err", tgsender.SanitizeError(err)),
				slog.String("err_code", tgsender.ClassifyError(err)),
			)
		}
	}

	logger.Info(ctx, "service.broadcast", "broadcast.done",
		slog.Int("recipients", len(ids)),
		slog.Int("queued", queued),
		slog.Int("failed", failed),
	)
}

// Broadcaster sends to every chat in the active-chat store.
type Broadcaster struct {
	chats    chats.Store
	notifier *Notifier
}

func NewBroadcaster(store chats.Store, notifier *Notifier) *Broadcaster {
	return &Broadcaster{chats: store, notifier: notifier}
}

// Broadcast notifies all active chats and returns how many were addressed.
// Each call gets its own request id in the logs.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, ErrEmptyBroadcast
	}
	ctx = logger.WithRID(ctx, "bc:"+uuid.NewString())
	ids, err := b.chats.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("broadcast: %w", err)
	}
	b.notifier.NotifyAll(ctx, text, chats.Set(ids))
	return len(ids), nil
}
