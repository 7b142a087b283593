package event

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/bullrun/pkg/logger"
	"github.com/okian/bullrun/pkg/metrics"
)

// ErrListener wraps failures raised by subscribers during dispatch.
var ErrListener = errors.New("event listener failed")

// Handler receives events. A returned error is logged and does not stop
// delivery to the remaining subscribers.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Subscriber is the read side of the bus.
type Subscriber interface {
	// Subscribe registers h for the given kinds, or for every kind when none
	// are given. The returned func removes the subscription.
	Subscribe(h Handler, kinds ...Kind) (unsubscribe func())
}

type subscription struct {
	id    uint64
	kinds []Kind
	h     Handler
}

func (s subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// Bus dispatches events synchronously to subscribers in registration order.
// Subscribers registered after an event fired never see it.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger logger.Logger
}

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithLogger sets a custom logger for the bus.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("event-bus")
	}
	return b
}

// Subscribe implements Subscriber.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kinds: slices.Clone(kinds), h: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish implements Publisher. The subscriber list is copied before
// dispatch so handlers may publish or (un)subscribe re-entrantly.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.wants(ev.Kind()) {
			continue
		}
		if err := b.deliver(ctx, s, ev); err != nil {
			metrics.RecordListenerError(string(ev.Kind()))
			b.logger.Error(ctx, "subscriber failed",
				logger.String("event", string(ev.Kind())),
				logger.Int64("subscription", int64(s.id)),
				logger.Error(err),
			)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrListener, r)
		}
	}()
	if herr := s.h(ctx, ev); herr != nil {
		return fmt.Errorf("%w: %w", ErrListener, herr)
	}
	return nil
}
