package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// item is either a line to write or, when ack is set, a flush marker that is
// answered once every earlier line reached the sinks.
type item struct {
	line []byte
	ack  chan error
}

// asyncWriter hands lines to a single goroutine that owns a buffered sink.
// The buffer is flushed whenever the queue drains.
type asyncWriter struct {
	queue chan item
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	buf *bufio.Writer
}

func newAsyncWriter(sinks []io.Writer, size int) *asyncWriter {
	if size <= 0 {
		size = 64 << 10
	}
	live := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	w := &asyncWriter{
		queue: make(chan item, 256),
		done:  make(chan struct{}),
		buf:   bufio.NewWriterSize(io.MultiWriter(live...), size),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for it := range w.queue {
		if it.ack != nil {
			it.ack <- w.buf.Flush()
			continue
		}
		if _, err := w.buf.Write(it.line); err != nil {
			w.fail(err)
			continue
		}
		if len(w.queue) == 0 {
			w.fail(w.buf.Flush())
		}
	}
	w.fail(w.buf.Flush())
}

func (w *asyncWriter) enqueue(it item) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- it
	return nil
}

// Write queues a copy of line. It blocks when the queue is full rather than
// dropping output.
func (w *asyncWriter) Write(line []byte) error {
	if err := w.error(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	return w.enqueue(item{line: append([]byte(nil), line...)})
}

// Flush waits until every line queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	if err := w.enqueue(item{ack: ack}); err != nil {
		return err
	}
	if err := <-ack; err != nil {
		return err
	}
	return w.error()
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.error()
}

func (w *asyncWriter) error() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}
