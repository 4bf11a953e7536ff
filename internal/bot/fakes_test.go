package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/m3rciful/finbot/internal/rates"
)

type fakeSource struct {
	quotes []rates.Quote
	err    error
	panics bool
}

func (f *fakeSource) Fetch(context.Context) ([]rates.Quote, error) {
	if f.panics {
		panic("rate source exploded")
	}
	return f.quotes, f.err
}

type sentMessage struct {
	chatID string
	text   string
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (f *fakeTransport) Send(_ context.Context, chatID string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	if f.fail[chatID] {
		return errors.New("telegram: chat not found (400)")
	}
	return nil
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type failingChats struct{}

func (failingChats) Exists(context.Context, int64) (bool, error) { return false, errors.New("db down") }
func (failingChats) Insert(context.Context, int64) error         { return errors.New("db down") }
func (failingChats) List(context.Context) ([]int64, error)       { return nil, errors.New("db down") }
