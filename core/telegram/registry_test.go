package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/finbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestLookupIgnoresCaseAndMention(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("/addIncome", Command{Handler: noop, Description: "add income"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, in := range []string{"/addincome", "/ADDINCOME", "addincome", " /AddIncome@finbot "} {
		key, _, ok := reg.Lookup(in)
		if !ok {
			t.Fatalf("%q: command not found", in)
		}
		if key != "/addincome" {
			t.Fatalf("%q: key = %q", in, key)
		}
	}
	if _, _, ok := reg.Lookup("/addspend"); ok {
		t.Fatal("unexpected match for unregistered command")
	}
}

func TestLookupAlias(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register("/currentrates", Command{Handler: noop, Description: "rates", Aliases: []string{"rates"}})
	key, _, ok := reg.Lookup("/Rates")
	if !ok || key != "/currentrates" {
		t.Fatalf("alias lookup = %q, %v", key, ok)
	}
}

func TestRegisterRejects(t *testing.T) {
	reg := NewRegistry()
	bad := map[string]Command{
		"noslash": {Handler: noop, Description: "x"},
		"/":       {Handler: noop, Description: "x"},
		"/nohand": {Description: "x"},
		"/nodesc": {Handler: noop},
	}
	for name, cmd := range bad {
		if err := reg.Register(name, cmd); err == nil {
			t.Fatalf("%q accepted", name)
		}
	}
	_ = reg.Register("/a", Command{Handler: noop, Description: "x"})
	if err := reg.Register("/A", Command{Handler: noop, Description: "y"}); err == nil {
		t.Fatal("duplicate accepted")
	}
}

func TestMenuSortedAndVisible(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register("/currentrates", Command{Handler: noop, Description: "rates"})
	_ = reg.Register("/addspend", Command{Handler: noop, Description: "spend"})
	_ = reg.Register("/debug", Command{Handler: noop, Description: "debug", Hidden: true})

	menu := reg.Menu()
	if len(menu) != 2 {
		t.Fatalf("menu = %d entries, want 2", len(menu))
	}
	if menu[0].Text != "addspend" || menu[1].Text != "currentrates" {
		t.Fatalf("unexpected order: %+v", menu)
	}
	if len(reg.Names()) != 3 {
		t.Fatal("hidden command missing from Names")
	}
}

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}}
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller type = %T", newPoller(cfg))
	}
	if lp.Timeout != 10*time.Second {
		t.Fatalf("default timeout = %v", lp.Timeout)
	}

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://x"}
	w, ok := newPoller(cfg).(*tele.Webhook)
	if !ok || w.Listen != "0.0.0.0:8443" || w.Endpoint.PublicURL != "https://x" {
		t.Fatalf("unexpected webhook poller: %+v", w)
	}
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		var out []string
		for _, m := range mws {
			out = append(out, m.Name)
		}
		return out
	}
	got := names(DefaultMiddlewares(&coreconfig.Config{}, nil))
	if len(got) != 3 || got[0] != "recover" {
		t.Fatalf("chain without limit = %v", got)
	}
	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	got = names(DefaultMiddlewares(cfg, nil))
	if len(got) != 4 || got[1] != "rate_limit" {
		t.Fatalf("chain with limit = %v", got)
	}
}
