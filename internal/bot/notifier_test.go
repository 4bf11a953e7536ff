package bot

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	tgsender "github.com/m3rciful/finbot/core/telegram/sender"
	"github.com/m3rciful/finbot/internal/chats"
	"github.com/m3rciful/finbot/internal/rates"
)

func attempted(msgs []sentMessage) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.chatID)
	}
	sort.Strings(ids)
	return ids
}

func TestNotifyAllContinuesAfterFailure(t *testing.T) {
	tr := &fakeTransport{fail: map[string]bool{"2": true}}
	n := NewNotifier(tr, nil)

	n.NotifyAll(context.Background(), "hi", map[int64]struct{}{1: {}, 2: {}, 3: {}})

	got := attempted(tr.messages())
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("attempted = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempted = %v, want %v", got, want)
		}
	}
	for _, m := range tr.messages() {
		if m.text != "hi" {
			t.Fatalf("text = %q", m.text)
		}
	}
}

func TestNotifyAllThroughQueue(t *testing.T) {
	tr := &fakeTransport{fail: map[string]bool{"2": true}}
	queue := tgsender.NewDispatcher(tgsender.Options{QueueSize: 8, Workers: 2, Timeout: time.Second})
	n := NewNotifier(tr, queue)

	ctx, cancel := context.WithCancel(context.Background())
	n.NotifyAll(ctx, "hi", map[int64]struct{}{1: {}, 2: {}, 3: {}})
	cancel()
	queue.Close()

	if got := attempted(tr.messages()); len(got) != 3 {
		t.Fatalf("attempted = %v", got)
	}
	if queue.SentCount() != 2 || queue.ErrorCount() != 1 {
		t.Fatalf("sent=%d errors=%d", queue.SentCount(), queue.ErrorCount())
	}
}

func TestNotifyAllClosedQueueCountsFailures(t *testing.T) {
	tr := &fakeTransport{}
	queue := tgsender.NewDispatcher(tgsender.Options{QueueSize: 1, Workers: 1})
	queue.Close()

	NewNotifier(tr, queue).NotifyAll(context.Background(), "hi", map[int64]struct{}{1: {}})
	if len(tr.messages()) != 0 {
		t.Fatal("closed queue must not send")
	}
}

func TestBroadcasterSendsToActiveChats(t *testing.T) {
	ctx := context.Background()
	store := chats.NewMemoryStore()
	_ = store.Insert(ctx, 1)
	_ = store.Insert(ctx, 2)
	tr := &fakeTransport{}

	n, err := NewBroadcaster(store, NewNotifier(tr, nil)).Broadcast(ctx, "news")
	if err != nil || n != 2 {
		t.Fatalf("Broadcast = %d, %v", n, err)
	}
	if got := attempted(tr.messages()); len(got) != 2 {
		t.Fatalf("attempted = %v", got)
	}
}

func TestBroadcasterErrors(t *testing.T) {
	b := NewBroadcaster(chats.NewMemoryStore(), NewNotifier(&fakeTransport{}, nil))
	if _, err := b.Broadcast(context.Background(), ""); !errors.Is(err, ErrEmptyBroadcast) {
		t.Fatalf("err = %v", err)
	}
	b = NewBroadcaster(failingChats{}, NewNotifier(&fakeTransport{}, nil))
	if _, err := b.Broadcast(context.Background(), "x"); err == nil {
		t.Fatal("expected list error")
	}
}

func TestRatesBroadcasterTick(t *testing.T) {
	ctx := context.Background()
	store := chats.NewMemoryStore()
	_ = store.Insert(ctx, 77)
	tr := &fakeTransport{}
	src := &fakeSource{quotes: []rates.Quote{{Name: "USD", Rate: "90.1"}}}

	rb := NewRatesBroadcaster(src, NewBroadcaster(store, NewNotifier(tr, nil)), time.Hour)
	rb.Tick(ctx)

	msgs := tr.messages()
	if len(msgs) != 1 || msgs[0].chatID != "77" || msgs[0].text != "USD-90.1\n" {
		t.Fatalf("sent = %+v", msgs)
	}

	src.quotes = nil
	rb.Tick(ctx)
	src.err = errors.New("down")
	rb.Tick(ctx)
	if len(tr.messages()) != 1 {
		t.Fatal("empty or failed fetch must not broadcast")
	}
}

func TestRatesBroadcasterRunStops(t *testing.T) {
	rb := NewRatesBroadcaster(&fakeSource{}, nil, 0)
	rb.Run(context.Background())

	rb = NewRatesBroadcaster(&fakeSource{}, nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rb.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestTelebotTransportUnbound(t *testing.T) {
	tr := NewTelebotTransport()
	if err := tr.Send(context.Background(), "1", "x"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("err = %v", err)
	}
	if err := tr.Send(context.Background(), "abc", "x"); err == nil {
		t.Fatal("expected chat id error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Send(ctx, "1", "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
