package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsEveryJobOnce(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 16})
	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		fail := i%4 == 0
		err := d.Enqueue(context.Background(), "send.text", "sendMessage", int64(i), func(ctx context.Context) error {
			calls.Add(1)
			if fail {
				return errors.New("boom")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()

	if got := calls.Load(); got != 10 {
		t.Fatalf("calls = %d, want 10", got)
	}
	if d.ErrorCount() != 3 || d.SentCount() != 7 {
		t.Fatalf("errors=%d sent=%d, want 3/7", d.ErrorCount(), d.SentCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", "", 1, func(context.Context) error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	d.Close()
}

func TestDispatcherReportsFullQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	if err := d.Enqueue(context.Background(), "a", "", 1, block); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-started
	if err := d.Enqueue(context.Background(), "b", "", 2, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	err := d.Enqueue(context.Background(), "c", "", 3, func(context.Context) error { return nil })
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(release)
	d.Close()
}

func TestDispatcherAppliesJobTimeout(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, Timeout: 20 * time.Millisecond})
	done := make(chan error, 1)
	err := d.Enqueue(context.Background(), "slow", "", 1, func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()
	if got := <-done; !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("ctx err = %v, want deadline exceeded", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d, want 1", d.ErrorCount())
	}
}

func TestSanitizeErrorRedactsToken(t *testing.T) {
	err := fmt.Errorf("post https://api.telegram.org/bot123456:AbC-def_1/sendMessage: timeout")
	got := SanitizeError(err)
	if strings.Contains(got, "AbC-def_1") || !strings.Contains(got, "bot<redacted>") {
		t.Fatalf("token not redacted: %s", got)
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("deadline = %q", got)
	}
	if got := ClassifyError(errors.New("telegram: Bad Request: chat not found (400)")); got != "http_4xx" {
		t.Fatalf("400 = %q", got)
	}
	if got := ClassifyError(errors.New("weird")); got != "unknown" {
		t.Fatalf("unknown = %q", got)
	}
}

func TestClassifyNetworkErrors(t *testing.T) {
	cases := map[string]error{
		"dns":      &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":     &net.OpError{Op: "dial", Err: errors.New("connection refused")},
		"tls":      tls.AlertError(42),
		"http_5xx": errors.New("telegram: internal (502)"),
	}
	for want, err := range cases {
		if got := ClassifyError(err); got != want {
			t.Fatalf("ClassifyError(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestEnqueueRejectsNilRun(t *testing.T) {
	d := NewDispatcher(Options{})
	defer d.Close()
	if err := d.Enqueue(context.Background(), "x", "", 0, nil); err == nil {
		t.Fatal("nil run accepted")
	}
}
