package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the parts of tele.Context the middlewares touch.
type fakeContext struct {
	tele.Context
	update tele.Update
	sender *tele.User
	chat   *tele.Chat
	store  map[string]interface{}
	sent   []interface{}
}

func newFakeContext(updateID int, userID, chatID int64) *fakeContext {
	return &fakeContext{
		update: tele.Update{ID: updateID, Message: &tele.Message{Text: "/currentrates"}},
		sender: &tele.User{ID: userID},
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		store:  map[string]interface{}{},
	}
}

func (f *fakeContext) Update() tele.Update             { return f.update }
func (f *fakeContext) Sender() *tele.User              { return f.sender }
func (f *fakeContext) Chat() *tele.Chat                { return f.chat }
func (f *fakeContext) Text() string                    { return f.update.Message.Text }
func (f *fakeContext) Get(key string) interface{}      { return f.store[key] }
func (f *fakeContext) Set(key string, val interface{}) { f.store[key] = val }
func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func TestRecoverSwallowsPanic(t *testing.T) {
	h := Recover(func(tele.Context) error {
		panic("boom")
	})
	if err := h(newFakeContext(1, 2, 3)); err != nil {
		t.Fatalf("err = %v, want nil after recovery", err)
	}
}

func TestRecoverPassesErrors(t *testing.T) {
	want := errors.New("downstream")
	if err := Recover(func(tele.Context) error { return want })(newFakeContext(1, 2, 3)); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestThrottleDropsBurst(t *testing.T) {
	calls, limited := 0, 0
	h := Throttle(ThrottleOptions{
		Interval: time.Hour,
		OnLimited: func(tele.Context) error {
			limited++
			return nil
		},
	})(func(tele.Context) error {
		calls++
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := h(newFakeContext(i, 42, 42)); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if err := h(newFakeContext(9, 43, 43)); err != nil {
		t.Fatalf("other user: %v", err)
	}
	if calls != 2 || limited != 2 {
		t.Fatalf("calls=%d limited=%d, want 2/2", calls, limited)
	}
}

func TestThrottleHonoursExclusions(t *testing.T) {
	calls := 0
	h := Throttle(ThrottleOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})(func(tele.Context) error {
		calls++
		return nil
	})
	for i := 0; i < 3; i++ {
		_ = h(newFakeContext(i, 7, 7))
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestThrottleDisabled(t *testing.T) {
	calls := 0
	h := Throttle(ThrottleOptions{})(func(tele.Context) error {
		calls++
		return nil
	})
	_ = h(newFakeContext(1, 7, 7))
	_ = h(newFakeContext(2, 7, 7))
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":     {Callback: &tele.Callback{}},
		"message":      {Message: &tele.Message{}},
		"inline_query": {Query: &tele.Query{}},
		"other":        {},
	}
	for want, u := range cases {
		if got := UpdateKind(u); got != want {
			t.Fatalf("UpdateKind = %q, want %q", got, want)
		}
	}
}

func TestTraceSetsRIDAndStart(t *testing.T) {
	c := newFakeContext(10, 20, 30)
	var seen string
	h := Trace(func(c tele.Context) error {
		seen, _ = c.Get("rid").(string)
		return errors.New("downstream")
	})
	if err := h(c); err == nil || err.Error() != "downstream" {
		t.Fatalf("err = %v, want downstream error", err)
	}
	if seen != "10:30:20" {
		t.Fatalf("rid = %q", seen)
	}
	if Started(c).IsZero() {
		t.Fatal("start time not recorded")
	}
}

func TestRecentSet(t *testing.T) {
	s := newRecentSet(time.Second)
	now := time.Unix(1000, 0)
	if !s.firstSeen(1, now) {
		t.Fatal("first sighting rejected")
	}
	if s.firstSeen(1, now.Add(500*time.Millisecond)) {
		t.Fatal("duplicate within ttl accepted")
	}
	if !s.firstSeen(1, now.Add(3*time.Second)) {
		t.Fatal("sighting after ttl rejected")
	}
}

func TestCounters(t *testing.T) {
	c := newFakeContext(1, 1, 1)
	h := Counters(func(c tele.Context) error {
		if err := c.Send("hi", &tele.ReplyMarkup{}); err != nil {
			return err
		}
		CountMessage(c)
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := Counts(c)
	if msgs != 2 || !kb {
		t.Fatalf("counters = %d/%v", msgs, kb)
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent = %v", c.sent)
	}
}
