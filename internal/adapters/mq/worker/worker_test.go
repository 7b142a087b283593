package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/bullrun/internal/adapters/mq/queue"
	"github.com/okian/bullrun/internal/adapters/mq/worker"
	"github.com/okian/bullrun/internal/adapters/settlement"
	"github.com/okian/bullrun/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// flakySink fails the first failures deliveries of every batch.
type flakySink struct {
	mu        sync.Mutex
	failures  int
	attempts  map[string]int
	delivered []string
}

func newFlakySink(failures int) *flakySink {
	return &flakySink{failures: failures, attempts: make(map[string]int)}
}

func (s *flakySink) Deliver(_ context.Context, b settlement.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[b.ID]++
	if s.attempts[b.ID] <= s.failures {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, b.ID)
	return nil
}

func (s *flakySink) deliveredIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

func outcomes() (func(worker.Delivery), <-chan worker.Delivery) {
	ch := make(chan worker.Delivery, 16)
	return func(d worker.Delivery) { ch <- d }, ch
}

func await(t *testing.T, ch <-chan worker.Delivery) worker.Delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery outcome within timeout")
		return worker.Delivery{}
	}
}

func TestBackoff(t *testing.T) {
	convey.Convey("Backoff doubles from the base and is capped", t, func() {
		base, maxDelay := time.Second, time.Minute
		convey.So(worker.Backoff(-1, base, maxDelay), convey.ShouldEqual, time.Second)
		convey.So(worker.Backoff(0, base, maxDelay), convey.ShouldEqual, time.Second)
		convey.So(worker.Backoff(3, base, maxDelay), convey.ShouldEqual, 8*time.Second)
		convey.So(worker.Backoff(6, base, maxDelay), convey.ShouldEqual, time.Minute)
		convey.So(worker.Backoff(64, base, maxDelay), convey.ShouldEqual, time.Minute)
	})
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		ctx, cancel := context.WithCancel(context.Background())
		observe, done := outcomes()

		run := func(sink settlement.Sink, opts ...worker.Option) *worker.InMemoryWorker {
			opts = append(opts,
				worker.WithLogger(logger.Nop()),
				worker.WithBackoff(time.Millisecond, 4*time.Millisecond),
				worker.WithObserver(observe),
			)
			w := worker.NewInMemoryWorker(q, sink, opts...)
			go w.Run(ctx)
			return w
		}

		convey.Reset(func() {
			cancel()
			_ = q.Close()
		})

		convey.Convey("When the sink accepts the batch", func() {
			sink := newFlakySink(0)
			run(sink)
			convey.So(q.Enqueue(ctx, settlement.Batch{ID: "b1"}), convey.ShouldBeTrue)

			convey.Convey("Then it is delivered on the first attempt", func() {
				d := await(t, done)
				convey.So(d.Err, convey.ShouldBeNil)
				convey.So(d.Attempts, convey.ShouldEqual, 1)
				convey.So(sink.deliveredIDs(), convey.ShouldResemble, []string{"b1"})
			})
		})

		convey.Convey("When the sink fails transiently", func() {
			sink := newFlakySink(2)
			run(sink, worker.WithMaxRetries(3))
			convey.So(q.Enqueue(ctx, settlement.Batch{ID: "b2"}), convey.ShouldBeTrue)

			convey.Convey("Then it is retried until delivered", func() {
				d := await(t, done)
				convey.So(d.Err, convey.ShouldBeNil)
				convey.So(d.Attempts, convey.ShouldEqual, 3)
				convey.So(sink.deliveredIDs(), convey.ShouldResemble, []string{"b2"})
			})
		})

		convey.Convey("When the sink keeps failing", func() {
			sink := newFlakySink(100)
			run(sink, worker.WithMaxRetries(2))
			convey.So(q.Enqueue(ctx, settlement.Batch{ID: "b3"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, settlement.Batch{ID: "b4"}), convey.ShouldBeTrue)

			convey.Convey("Then the batch is dropped and the next one is processed", func() {
				first := await(t, done)
				convey.So(errors.Is(first.Err, settlement.ErrDelivery), convey.ShouldBeTrue)
				convey.So(first.Attempts, convey.ShouldEqual, 3)
				convey.So(first.Batch.ID, convey.ShouldEqual, "b3")

				second := await(t, done)
				convey.So(second.Batch.ID, convey.ShouldEqual, "b4")
				convey.So(sink.deliveredIDs(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the worker is shut down twice", func() {
			w := run(newFlakySink(0))

			convey.Convey("Then both calls return", func() {
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		sink := newFlakySink(0)
		pool := worker.NewPool(3, q, sink, worker.WithLogger(logger.Nop()))
		pool.Start(context.Background())

		for _, id := range []string{"a", "b", "c", "d", "e"} {
			convey.So(q.Enqueue(context.Background(), settlement.Batch{ID: id}), convey.ShouldBeTrue)
		}

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued batch was delivered first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(sink.deliveredIDs()), convey.ShouldEqual, 5)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
