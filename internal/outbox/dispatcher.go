package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/duochat/internal/bus"
	"go.uber.org/zap"
)

const (
	queueSize    = 256
	writeTimeout = 10 * time.Second
)

// WriteFunc performs one store write.
type WriteFunc func(ctx context.Context) error

// Gate reports whether writes should be attempted.
type Gate interface {
	Online() bool
}

// Writer accepts fire-and-forget writes. Submit skips the write while the
// gate is closed; Attempt tries regardless of connectivity.
type Writer interface {
	Submit(op string, fn WriteFunc)
	Attempt(op string, fn WriteFunc)
}

// Failure is the payload of outbox.failed events.
type Failure struct {
	Op  string
	Err error
}

// Skip is the payload of outbox.skipped events.
type Skip struct {
	Op     string
	Reason string
}

type job struct {
	op string
	fn WriteFunc
}

// Dispatcher runs writes on a single worker in submission order. Callers
// never wait for a write; failures are logged and published.
type Dispatcher struct {
	gate    Gate
	bus     *bus.Bus
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	queue   chan job
	stopped bool
	started bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher. A nil gate is always open.
func NewDispatcher(gate Gate, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		gate:    gate,
		bus:     b,
		logger:  logger,
		timeout: writeTimeout,
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins executing queued writes.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	ctx, d.cancel = context.WithCancel(ctx)
	go d.loop(ctx)
}

// Stop refuses new writes and lets the worker finish what is queued until
// ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return
	}
	select {
	case <-d.done:
	case <-ctx.Done():
		d.logger.Warn("outbox stop timed out, dropping queued writes", zap.Int("queued", len(d.queue)))
	}
	d.cancel()
}

// Submit implements Writer.
func (d *Dispatcher) Submit(op string, fn WriteFunc) {
	if d.gate != nil && !d.gate.Online() {
		d.skip(op, "offline")
		return
	}
	d.enqueue(op, fn)
}

// Attempt implements Writer.
func (d *Dispatcher) Attempt(op string, fn WriteFunc) {
	d.enqueue(op, fn)
}

func (d *Dispatcher) enqueue(op string, fn WriteFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.skip(op, "stopped")
		return
	}
	select {
	case d.queue <- job{op: op, fn: fn}:
	default:
		d.skip(op, "queue full")
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			d.run(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := j.fn(ctx); err != nil {
		d.logger.Warn("write failed", zap.String("op", j.op), zap.Error(err))
		d.bus.Emit(bus.WriteFailed, Failure{Op: j.op, Err: err})
		return
	}
	d.logger.Debug("write done", zap.String("op", j.op))
}

func (d *Dispatcher) skip(op, reason string) {
	d.logger.Debug("write skipped", zap.String("op", op), zap.String("reason", reason))
	d.bus.Emit(bus.WriteSkipped, Skip{Op: op, Reason: reason})
}
