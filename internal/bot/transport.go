package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by TelebotTransport before a bot is attached.
var ErrNotBound = errors.New("transport: bot not bound")

// Transport delivers a text message to a chat. Chat ids travel as
// string-encoded int64.
type Transport interface {
	Send(ctx context.Context, chatID string, text string) error
}

// TelebotTransport sends through a telebot instance. The bot is attached
// after construction because it only exists once the runtime has started.
type TelebotTransport struct {
	mu  sync.RWMutex
	bot *tele.Bot
}

var _ Transport = (*TelebotTransport)(nil)

func NewTelebotTransport() *TelebotTransport {
	return &TelebotTransport{}
}

// Bind attaches the running bot.
func (t *TelebotTransport) Bind(b *tele.Bot) {
	t.mu.Lock()
	t.bot = b
	t.mu.Unlock()
}

func (t *TelebotTransport) Send(ctx context.Context, chatID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("transport: chat id %q: %w", chatID, err)
	}
	t.mu.RLock()
	b := t.bot
	t.mu.RUnlock()
	if b == nil {
		return ErrNotBound
	}
	if _, err := b.Send(tele.ChatID(id), text); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}
