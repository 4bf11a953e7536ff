// Package sender runs outbound Bot API calls on a bounded worker pool.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/finbot/core/logger"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the buffer has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const (
	defaultQueueSize = 256
	defaultWorkers   = 4
	defaultTimeout   = 12 * time.Second
)

// Options size the queue. Zero values select the defaults.
type Options struct {
	QueueSize int
	Workers   int
	// Timeout bounds one job.
	Timeout time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	chatID   int64
	run      func(ctx context.Context) error
}

// Dispatcher executes queued calls at most once each. Enqueue never blocks;
// a saturated queue is reported to the caller.
type Dispatcher struct {
	timeout time.Duration
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	sent atomic.Uint64
	errs atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	size := cmpDefault(opts.QueueSize, defaultQueueSize)
	workers := cmpDefault(opts.Workers, defaultWorkers)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	d := &Dispatcher{timeout: timeout, jobs: make(chan job, size)}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.do(j)
			}
		}()
	}
	return d
}

func cmpDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Enqueue schedules run. action and endpoint label the job in logs; ctx is
// passed to run with the job timeout applied.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, chatID int64, run func(ctx context.Context) error) error {
	if run == nil {
		return errors.New("telegram sender: nil run func")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, chatID: chatID, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SentCount is the number of jobs that returned nil.
func (d *Dispatcher) SentCount() uint64 { return d.sent.Load() }

// ErrorCount is the number of jobs that failed.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Close rejects new jobs, drains the queue and waits for the workers.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) do(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if j.chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", j.chatID))
	}

	start := time.Now()
	err := j.run(ctx)
	attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
	if err != nil {
		d.errs.Add(1)
		logger.Warn(j.ctx, "tg.sender", "send.fail", append(attrs,
			slog.String("err", SanitizeError(err)),
			slog.String("err_code", ClassifyError(err)),
		)...)
		return
	}
	d.sent.Add(1)
	if logger.ShouldSampleDebug() {
		logger.Debug(j.ctx, "tg.sender", "send.success", attrs...)
	}
}
