package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Subscriber consumes messages delivered by the [Bus]. HandleMessage is
// invoked serially per subscriber, in publish order. A returned error is
// logged and contained; it never interrupts delivery to other subscribers.
//
// Handlers that need true concurrency (TTS synthesis while the session keeps
// flowing) spawn their own child goroutines and publish results later.
type Subscriber interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("chat: bus closed")

// defaultQueueCapacity bounds each subscriber's delivery queue. At the client
// audio chunk rate this is well over a minute of backlog before publishers
// feel it.
const defaultQueueCapacity = 256

// Bus is the per-session synchronisation point: an append-only message
// history with fan-out to subscribers.
//
// Delivery guarantee: for any two messages published in order, every
// subscriber observes the first handler complete before the second begins.
// Each subscriber has its own bounded FIFO delivery queue drained by a
// dedicated goroutine, so a handler may publish new messages without
// deadlocking. Once a subscriber falls a full queue behind, Publish blocks
// until it catches up: a stalled handler throttles producers (the audio
// reader above all) instead of growing the backlog without limit.
type Bus struct {
	ctx      context.Context
	logger   *slog.Logger
	capacity int

	// pubMu serialises the fan-out so every queue receives messages in
	// timestamp order even under concurrent publishers.
	pubMu sync.Mutex

	mu      sync.Mutex
	history []*Message
	subs    []*subscription
	seq     int64
	closed  bool

	wg sync.WaitGroup
}

// subscription pairs a Subscriber with its bounded FIFO delivery queue.
type subscription struct {
	sub      Subscriber
	capacity int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Message
	closed bool
}

// BusOption customises a Bus.
type BusOption func(*Bus)

// WithQueueCapacity overrides the per-subscriber delivery queue bound.
func WithQueueCapacity(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// NewBus creates a Bus whose handler invocations run under ctx. Cancelling
// ctx aborts in-flight handler IO; the delivery goroutines themselves exit
// on [Bus.Close].
func NewBus(ctx context.Context, logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{ctx: ctx, logger: logger, capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers sub. Registration order determines delivery order.
// Subscribing the same subscriber twice is a no-op. Subscribers are never
// removed; teardown happens via [Bus.Close].
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if s.sub == sub {
			return
		}
	}
	s := &subscription{sub: sub, capacity: b.capacity}
	s.cond = sync.NewCond(&s.mu)
	b.subs = append(b.subs, s)

	b.wg.Add(1)
	go b.deliverLoop(s)
}

// Publish assigns the message its history position and hands it to every
// subscriber's delivery queue in registration order. It does not wait for
// handler execution, but it does block while any subscriber's queue is full.
func (b *Bus) Publish(msg *Message) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.seq++
	msg.Timestamp = b.seq
	b.history = append(b.history, msg)
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.enqueue(msg)
	}
	return nil
}

// History returns a snapshot of the accepted message sequence. Subscribers
// may scan it to build prompt context but must not mutate the messages.
func (b *Bus) History() []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Message, len(b.history))
	copy(out, b.history)
	return out
}

// Close stops accepting publishes and lets each delivery goroutine drain its
// remaining queue and exit. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// Drain blocks until every delivery goroutine has exited or ctx expires.
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliverLoop drains one subscriber's queue, invoking its handler serially.
func (b *Bus) deliverLoop(s *subscription) {
	defer b.wg.Done()
	for {
		msg, ok := s.next()
		if !ok {
			return
		}
		b.invoke(s.sub, msg)
	}
}

// invoke runs a single handler, containing errors and panics.
func (b *Bus) invoke(sub Subscriber, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus: subscriber panicked", "panic", r, "kind", msg.Kind)
		}
	}()
	if err := sub.HandleMessage(b.ctx, msg); err != nil {
		b.logger.Error("bus: subscriber handler failed", "err", err, "kind", msg.Kind, "role", msg.Role)
	}
}

// enqueue appends msg, blocking while the queue is at capacity. Close wakes
// blocked enqueuers; their messages are dropped along with the session.
func (s *subscription) enqueue(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) >= s.capacity && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return
	}
	s.queue = append(s.queue, msg)
	s.cond.Broadcast()
}

// next blocks until a message is queued or the subscription is closed with
// an empty queue. Remaining messages are still delivered after close.
func (s *subscription) next() (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	s.cond.Broadcast()
	return msg, true
}
