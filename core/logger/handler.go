package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type lineWriter interface {
	Write(line []byte) error
}

type handlerOptions struct {
	level  slog.Leveler
	out    lineWriter
	errOut lineWriter // also receives ERROR lines when set
	format logFormat
	order  []string
}

// handler renders records as single KV or JSON lines with a stable key order.
type handler struct {
	opts   handlerOptions
	attrs  []slog.Attr
	groups []string
}

func newHandler(opts handlerOptions) *handler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if opts.order == nil {
		opts.order = defaultKeyOrder
	}
	return &handler{opts: opts}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.out == nil {
		return errNoWriter
	}
	asJSON := h.opts.format == formatJSON

	e := make(entry, 16)
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	e["level"] = levelName(r.Level)
	if asJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		e.add(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(prefix, a)
		return true
	})
	metaFrom(ctx).fill(e)
	e.finish(r.Message, asJSON)

	var (
		line []byte
		err  error
	)
	if asJSON {
		line, err = e.json(h.opts.order)
		if err != nil {
			return err
		}
	} else {
		line = e.kv(h.opts.order)
	}
	line = append(line, '\n')

	if err := h.opts.out.Write(line); err != nil {
		return err
	}
	if h.opts.errOut != nil && r.Level >= slog.LevelError {
		return h.opts.errOut.Write(line)
	}
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// entry is one log line under construction.
type entry map[string]any

func (e entry) setDefault(key string, v any, present bool) {
	if !present {
		return
	}
	if _, ok := e[key]; !ok {
		e[key] = v
	}
}

// add flattens groups into dotted keys.
func (e entry) add(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := convert(key, v); ok {
		e[k] = val
	}
}

func convert(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), roundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), roundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// roundMS rounds d to whole milliseconds; non-positive values become zero.
func roundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// durationKey makes the unit explicit: duration -> duration_ms.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func (e entry) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// finish applies defaults and drops empty values.
func (e entry) finish(msg string, asJSON bool) {
	if rid := e.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if asJSON {
				e.setDefault("rid_full", rid, true)
			}
			e["rid"] = compact
		}
	}
	if e.str("event") == "" {
		e["event"] = msg
		if msg == "" {
			e["event"] = "unknown"
		}
	}
	if e.str("component") == "" {
		e["component"] = "app"
	}
	if s := e.str("status"); s != "" {
		e["status"] = normalizeStatus(s)
	}
	for k, v := range e {
		if s, ok := v.(string); ok && s == "" {
			delete(e, k)
		}
	}
}

// keys lists ordered keys first, then the rest alphabetically.
func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	seen := make(map[string]bool, len(e))
	for _, k := range order {
		if _, ok := e[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := len(out)
	for k := range e {
		if !seen[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out[rest:])
	return out
}

func (e entry) json(order []string) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, k := range e.keys(order) {
		v, err := json.Marshal(e[k])
		if err != nil {
			return nil, fmt.Errorf("logger: field %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func (e entry) kv(order []string) []byte {
	buf := make([]byte, 0, 256)
	for i, k := range e.keys(order) {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = appendKVValue(buf, e[k])
	}
	return buf
}

func appendKVValue(buf []byte, v any) []byte {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.AppendBool(buf, x)
	case int64:
		return strconv.AppendInt(buf, x, 10)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
