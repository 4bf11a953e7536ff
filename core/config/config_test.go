package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	for _, mode := range []string{"", "  Polling ", "LONGPOLL"} {
		cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: mode}}
		if err := Normalize(cfg); err != nil {
			t.Fatalf("%q: normalize: %v", mode, err)
		}
		if cfg.Telegram.RunMode != RunModeLongpoll {
			t.Fatalf("%q: run mode = %q", mode, cfg.Telegram.RunMode)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]*Config{
		"no token":      {},
		"blank token":   {Telegram: TelegramConfig{Token: "  "}},
		"bad mode":      {Telegram: TelegramConfig{Token: "x", RunMode: "push"}},
		"neg timeout":   {Telegram: TelegramConfig{Token: "x", LongPollTimeoutSeconds: -1}},
		"neg interval":  {Telegram: TelegramConfig{Token: "x"}, RateLimit: RateLimitConfig{IntervalMS: -5}},
		"webhook empty": {Telegram: TelegramConfig{Token: "x", RunMode: "webhook"}},
	}
	for name, cfg := range cases {
		if err := Normalize(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := Normalize(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}

func TestWebhookValidation(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "x", RunMode: "webhook"},
		Webhook:  WebhookConfig{URL: "https://example.org/hook"},
	}
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "webhook.listen, webhook.port") {
		t.Fatalf("err = %v", err)
	}
	cfg.Webhook.Listen, cfg.Webhook.Port = "0.0.0.0", 8443
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Webhook.Addr() != "0.0.0.0:8443" {
		t.Fatalf("addr = %q", cfg.Webhook.Addr())
	}
}

func TestRateLimitExclusions(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x"},
		RateLimit: RateLimitConfig{IntervalMS: 250, ExcludeUpdates: []string{" Callback ", "poll"}},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "", "MESSAGE"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	ex := cfg.RateLimit.Excluded()
	if len(ex) != 2 {
		t.Fatalf("excluded = %v", ex)
	}
	if _, ok := ex[UpdateMessage]; !ok {
		t.Fatalf("message not excluded: %v", ex)
	}
	if cfg.RateLimit.Interval() != 250*time.Millisecond {
		t.Fatalf("interval = %v", cfg.RateLimit.Interval())
	}
}

func TestLongPollTimeout(t *testing.T) {
	if got := (TelegramConfig{}).LongPollTimeout(); got != 10*time.Second {
		t.Fatalf("default = %v", got)
	}
	if got := (TelegramConfig{LongPollTimeoutSeconds: 25}).LongPollTimeout(); got != 25*time.Second {
		t.Fatalf("custom = %v", got)
	}
}

func TestLoadOverlaysEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("telegram:\n  token: from-file\n  name: finbot\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("LOG_FORMAT", "kv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Telegram.Name != "finbot" || cfg.Logging.Level != "debug" || cfg.Logging.Format != "kv" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
