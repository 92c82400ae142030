package logger

import (
	"bufio"
	"io"
	"sync"
	"time"
)

const flushEvery = 250 * time.Millisecond

// asyncWriter moves formatting off the hot path: lines are queued and a single
// goroutine writes them into one buffered fan-out, flushing on a short tick.
type asyncWriter struct {
	queue   chan []byte
	flushes chan chan error
	done    chan struct{}
	close   sync.Once

	mu  sync.Mutex
	err error
	buf *bufio.Writer
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		queue:   make(chan []byte, 512),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
		buf:     bufio.NewWriterSize(io.MultiWriter(sinks...), bufSize),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	tick := time.NewTicker(flushEvery)
	defer tick.Stop()
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.record(w.buf.Flush())
				return
			}
			_, err := w.buf.Write(line)
			w.record(err)
		case <-tick.C:
			w.record(w.buf.Flush())
		case ack := <-w.flushes:
			// drain what is already queued so Flush covers earlier writes
			for n := len(w.queue); n > 0; n-- {
				_, err := w.buf.Write(<-w.queue)
				w.record(err)
			}
			err := w.buf.Flush()
			w.record(err)
			ack <- err
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failed(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- append([]byte(nil), p...)
	return nil
}

// Flush writes everything queued so far to the sinks.
func (w *asyncWriter) Flush() error {
	select {
	case <-w.done:
		return w.failed()
	default:
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.failed()
	}
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.close.Do(func() { close(w.queue) })
	<-w.done
	return w.failed()
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *asyncWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
