// Package sender runs outbound Telegram calls on a small worker pool so update
// handlers and background jobs do not block on the Bot API.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/scanbot/core/logger"
	"github.com/m3rciful/scanbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher; zero values get defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including retries and flood waits.
	MaxDuration time.Duration
}

func (o *Options) normalize() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 45 * time.Second
	}
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued calls with retries.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	failed atomic.Uint64
	done   atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts.normalize()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run. run may be called more than once when retried.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
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
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that ultimately failed.
func (d *Dispatcher) ErrorCount() uint64 { return d.failed.Load() }

// Completed is the number of jobs that succeeded.
func (d *Dispatcher) Completed() uint64 { return d.done.Load() }

// Close rejects new jobs, lets the workers finish the queue, and waits.
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

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		if err := d.execute(j); err != nil {
			d.failed.Add(1)
		} else {
			d.done.Add(1)
		}
	}
}

func (d *Dispatcher) execute(j job) error {
	// a job outlives the update that queued it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(j.ctx, "tg.sender", "send.success", j.attrs(
				slog.Int("attempt", attempt),
				slog.Duration("duration", logger.Took(start)),
			)...)
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}
		delay := netutil.Backoff(d.opts.RetryBackoff, attempt, err)
		logger.Debug(j.ctx, "tg.sender", "send.retry", j.attrs(
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error_kind", netutil.Classify(err)),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = errors.Join(err, ctx.Err())
			break retry
		case <-timer.C:
		}
	}

	logger.Error(j.ctx, "tg.sender", "send.fail", j.attrs(
		slog.String("error", netutil.Redact(err)),
		slog.String("error_kind", netutil.Classify(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return err
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}
