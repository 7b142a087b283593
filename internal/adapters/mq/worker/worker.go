// Package worker delivers queued settlement batches to a sink, retrying
// failed deliveries with exponential backoff.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/bullrun/internal/adapters/settlement"
	"github.com/okian/bullrun/pkg/logger"
	"github.com/okian/bullrun/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultMaxRetries     = 5
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = time.Minute
	defaultDeliverTimeout = 10 * time.Second
	poolShutdownTimeout   = 30 * time.Second
	maxBackoffShift       = 30
)

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan settlement.Batch
}

// Worker drains a queue into a sink.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker, waiting for an in-flight delivery.
	Shutdown(ctx context.Context) error
}

// Delivery is the outcome of one batch, reported to an optional observer.
type Delivery struct {
	Batch    settlement.Batch
	Attempts int
	Err      error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  settlement.Sink
	name  string

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	timeout    time.Duration
	observe    func(Delivery)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, sink settlement.Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		sink:       sink,
		name:       "settlement-worker",
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		timeout:    defaultDeliverTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			w.process(ctx, b)
		}
	}
}

// Shutdown stops the worker. It is safe to call more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process delivers one batch, retrying up to maxRetries times. A batch that
// still fails is dropped and logged.
func (w *InMemoryWorker) process(ctx context.Context, b settlement.Batch) { //nolint:gocritic // hugeParam: batches travel by value
	var err error
	attempts := 0
	for {
		err = w.deliver(ctx, b)
		attempts++
		if err == nil || attempts > w.maxRetries {
			break
		}
		w.logger.Warn(ctx, "settlement delivery failed",
			logger.String("batch_id", b.ID),
			logger.Int("attempt", attempts),
			logger.Error(err),
		)
		metrics.RecordSettlementBatch("retry")
		if !w.sleep(ctx, Backoff(attempts-1, w.baseDelay, w.maxDelay)) {
			err = errors.Join(err, ErrStopped)
			break
		}
	}

	if err == nil {
		metrics.RecordSettlementBatch("delivered")
		w.logger.Info(ctx, "settlement batch delivered",
			logger.String("batch_id", b.ID),
			logger.String("round_id", b.RoundID),
			logger.Int("attempts", attempts),
		)
		w.report(Delivery{Batch: b, Attempts: attempts})
		return
	}

	metrics.RecordSettlementBatch("dropped")
	metrics.RecordErrorByComponent("settlement", "dropped")
	w.logger.Error(ctx, "settlement batch dropped",
		logger.String("batch_id", b.ID),
		logger.String("round_id", b.RoundID),
		logger.Int("attempts", attempts),
		logger.Error(err),
	)
	w.report(Delivery{Batch: b, Attempts: attempts, Err: err})
}

func (w *InMemoryWorker) deliver(ctx context.Context, b settlement.Batch) error { //nolint:gocritic // hugeParam: batches travel by value
	dctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sink.Deliver(dctx, b); err != nil {
		return fmt.Errorf("%w: %w", settlement.ErrDelivery, err)
	}
	return nil
}

// sleep waits d and reports false if the worker was stopped first.
func (w *InMemoryWorker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.shutdown:
		return false
	}
}

func (w *InMemoryWorker) report(d Delivery) {
	if w.observe != nil {
		w.observe(d)
	}
}

// Backoff returns base * 2^retry capped at maxDelay.
func Backoff(retry int, base, maxDelay time.Duration) time.Duration {
	if retry < 0 {
		return base
	}
	if retry > maxBackoffShift {
		return maxDelay
	}
	d := base * time.Duration(1<<retry)
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}

// Pool runs several workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Closer
	wg      sync.WaitGroup
	logger  logger.Logger
}

// Closer is a queue that can be closed.
type Closer interface {
	Queue
	Close() error
}

// NewPool creates workerCount workers sharing the queue and sink.
func NewPool(workerCount int, queue Closer, sink settlement.Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("settlement-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("settlement-worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, sink, wopts...)
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-drained:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "settlement pool shutdown timed out")
		for _, w := range p.workers {
			_ = w.Shutdown(context.Background())
		}
		return fmt.Errorf("settlement pool shutdown: %w", shutdownCtx.Err())
	}
}
