// Package logger provides the structured slog setup shared by every bot
// component: one line per event, a component and an event name on each line,
// and request correlation taken from the context.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/m3rciful/finbot/core/buildinfo"
	coreconfig "github.com/m3rciful/finbot/core/config"
)

var (
	initOnce sync.Once

	shutdownMu sync.Mutex
	shutDown   bool
	writers    []*asyncWriter
	files      []io.Closer

	levelVar slog.LevelVar
	sampled  sampler
	trace    bool
	stacks   = true

	// L is the root logger; nil until InitLogger runs.
	L *slog.Logger
)

// options is the logger setup derived from configuration.
type options struct {
	format      logFormat
	order       []string
	level       slog.Level
	sampleKeep  int
	sampleEvery int
	profile     string
	botFile     string
	errorsFile  string
	stacks      bool
}

func optionsFrom(cfg *coreconfig.Config) options {
	o := options{
		format:      formatJSON,
		order:       defaultKeyOrder,
		level:       slog.LevelInfo,
		sampleKeep:  1,
		sampleEvery: 50,
		profile:     "prod",
		stacks:      true,
	}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			o.order = order
		}
	}

	o.level = parseLevel(lc.Level)

	switch spec := strings.ToLower(strings.TrimSpace(lc.DebugSample)); spec {
	case "":
	case "0", "off", "all":
		o.sampleKeep, o.sampleEvery = 0, 0
	default:
		if k, n := parseRatio(spec); n > 0 {
			o.sampleKeep, o.sampleEvery = k, n
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Stacks)) {
	case "off", "false", "0", "no":
		o.stacks = false
	}

	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		if f := strings.TrimSpace(lc.BotFile); f != "" {
			o.botFile = filepath.Join(dir, f)
		}
		if f := strings.TrimSpace(lc.ErrorsFile); f != "" {
			o.errorsFile = filepath.Join(dir, f)
		}
	}
	return o
}

// InitLogger configures the global logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		err = setup(optionsFrom(cfg))
	})
	return err
}

func setup(o options) error {
	levelVar.Set(o.level)
	sampled.set(o.sampleKeep, o.sampleEvery)
	stacks = o.stacks
	trace = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

	sinks := []io.Writer{os.Stdout}
	if f := openLogFile(o.botFile); f != nil {
		sinks = append(sinks, f)
	}
	out := newAsyncWriter(sinks, 0)
	writers = append(writers, out)

	hopts := handlerOptions{
		level:  &levelVar,
		out:    out,
		format: o.format,
		order:  o.order,
	}
	if f := openLogFile(o.errorsFile); f != nil {
		errOut := newAsyncWriter([]io.Writer{f}, 0)
		writers = append(writers, errOut)
		hopts.errOut = errOut
	}

	L = slog.New(newHandler(hopts))
	slog.SetDefault(L)

	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", o.profile),
	)
	return nil
}

// openLogFile appends to path, creating its directory. Failures are reported
// on the standard logger and the file is skipped.
func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logger: create log dir: %v", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file: %v", err)
		return nil
	}
	files = append(files, f)
	return f
}

// Shutdown flushes pending lines and closes log files.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutDown {
		return nil
	}
	shutDown = true

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Background is context.Background, kept for call sites that log outside a
// request.
func Background() context.Context {
	return context.Background()
}

// LogEvent writes an event through logg, falling back to the context logger
// and then L. It is a no-op before InitLogger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// written. TRACE=1 in the environment disables sampling.
func ShouldSampleDebug() bool {
	return trace || sampled.allow()
}

// Stack returns the calling goroutine's stack for panic logs, or "" when
// logging.stacks is off.
func Stack() string {
	if !stacks {
		return ""
	}
	return string(debug.Stack())
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
