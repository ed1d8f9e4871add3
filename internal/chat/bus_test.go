package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// recordingSubscriber records the order in which messages arrive.
type recordingSubscriber struct {
	mu   sync.Mutex
	seen []int64
}

func (r *recordingSubscriber) HandleMessage(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg.Timestamp)
	return nil
}

func (r *recordingSubscriber) timestamps() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.seen))
	copy(out, r.seen)
	return out
}

func drainBus(t *testing.T, b *Bus) {
	t.Helper()
	b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestBusDeliversInOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	bus.Subscribe(a)
	bus.Subscribe(b)

	for i := 0; i < 50; i++ {
		if err := bus.Publish(NewTextMessage(RoleUser, fmt.Sprintf("m%d", i), false)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	drainBus(t, bus)

	for name, sub := range map[string]*recordingSubscriber{"a": a, "b": b} {
		got := sub.timestamps()
		if len(got) != 50 {
			t.Fatalf("subscriber %s saw %d messages, want 50", name, len(got))
		}
		for i, ts := range got {
			if ts != int64(i+1) {
				t.Fatalf("subscriber %s out of order at %d: %v", name, i, got)
			}
		}
	}
}

func TestBusHistoryAppendOnly(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	bus.Publish(NewTextMessage(RoleUser, "one", false))
	bus.Publish(NewTextMessage(RoleAssistant, "two", true))

	hist := bus.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].Timestamp != 1 || hist[1].Timestamp != 2 {
		t.Errorf("timestamps = %d, %d", hist[0].Timestamp, hist[1].Timestamp)
	}

	// Mutating the snapshot must not affect the bus.
	hist[0] = nil
	if bus.History()[0] == nil {
		t.Error("history snapshot aliases internal state")
	}
	drainBus(t, bus)
}

// republisher publishes a derived message when it sees an end-of-turn text.
// Exercises publish-from-handler, which must not deadlock.
type republisher struct {
	bus *Bus
}

func (r *republisher) HandleMessage(_ context.Context, msg *Message) error {
	if msg.Kind == KindText && msg.EndOfTurn {
		return r.bus.Publish(&Message{Kind: KindTranscription, Role: msg.Role, SourceText: msg.Text})
	}
	return nil
}

func TestBusPublishFromHandler(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	rec := &recordingSubscriber{}
	bus.Subscribe(&republisher{bus: bus})
	bus.Subscribe(rec)

	bus.Publish(NewTextMessage(RoleAssistant, "done", true))

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.timestamps()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	drainBus(t, bus)

	hist := bus.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2 (original + derived)", len(hist))
	}
	if hist[1].Kind != KindTranscription || hist[1].SourceText != "done" {
		t.Errorf("derived message = %+v", hist[1])
	}
}

// faultySubscriber fails on every message.
type faultySubscriber struct{}

func (faultySubscriber) HandleMessage(context.Context, *Message) error {
	return errors.New("boom")
}

// panicky panics on every message.
type panicky struct{}

func (panicky) HandleMessage(context.Context, *Message) error {
	panic("kaboom")
}

func TestBusContainsSubscriberFailures(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	rec := &recordingSubscriber{}
	bus.Subscribe(faultySubscriber{})
	bus.Subscribe(panicky{})
	bus.Subscribe(rec)

	for i := 0; i < 5; i++ {
		if err := bus.Publish(NewTextMessage(RoleUser, "x", false)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	drainBus(t, bus)

	if got := len(rec.timestamps()); got != 5 {
		t.Errorf("later subscriber saw %d messages, want 5", got)
	}
}

func TestBusSubscribeIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	rec := &recordingSubscriber{}
	bus.Subscribe(rec)
	bus.Subscribe(rec)

	bus.Publish(NewTextMessage(RoleUser, "once", false))
	drainBus(t, bus)

	if got := len(rec.timestamps()); got != 1 {
		t.Errorf("duplicate subscription delivered %d copies, want 1", got)
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	bus.Close()
	if err := bus.Publish(NewTextMessage(RoleUser, "late", false)); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish after close = %v, want ErrBusClosed", err)
	}
}

func TestBusDrainDeliversQueuedMessages(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil)
	slow := &slowSubscriber{rec: &recordingSubscriber{}}
	bus.Subscribe(slow)

	for i := 0; i < 10; i++ {
		bus.Publish(NewTextMessage(RoleUser, "x", false))
	}
	drainBus(t, bus)

	if got := len(slow.rec.timestamps()); got != 10 {
		t.Errorf("drained subscriber saw %d messages, want 10", got)
	}
}

type slowSubscriber struct {
	rec *recordingSubscriber
}

func (s *slowSubscriber) HandleMessage(ctx context.Context, msg *Message) error {
	time.Sleep(time.Millisecond)
	return s.rec.HandleMessage(ctx, msg)
}

// gatedSubscriber blocks every delivery until release is closed.
type gatedSubscriber struct {
	release chan struct{}
	rec     *recordingSubscriber
}

func (g *gatedSubscriber) HandleMessage(ctx context.Context, msg *Message) error {
	<-g.release
	return g.rec.HandleMessage(ctx, msg)
}

func TestBusFullQueueBlocksPublisher(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil, WithQueueCapacity(1))
	release := make(chan struct{})
	rec := &recordingSubscriber{}
	bus.Subscribe(&gatedSubscriber{release: release, rec: rec})

	// The delivery goroutine takes the first message and wedges in the
	// handler; the second fills the one-slot queue.
	bus.Publish(NewTextMessage(RoleUser, "a", false))
	bus.Publish(NewTextMessage(RoleUser, "b", false))

	third := make(chan error, 1)
	go func() {
		third <- bus.Publish(NewTextMessage(RoleUser, "c", false))
	}()

	select {
	case err := <-third:
		t.Fatalf("publish into a full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-third:
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publisher still blocked after the subscriber caught up")
	}
	drainBus(t, bus)

	got := rec.timestamps()
	if len(got) != 3 {
		t.Fatalf("subscriber saw %d messages, want 3", len(got))
	}
	for i, ts := range got {
		if ts != int64(i+1) {
			t.Fatalf("delivery out of order at %d: %v", i, got)
		}
	}
}

func TestBusCloseUnblocksPublisher(t *testing.T) {
	t.Parallel()

	bus := NewBus(context.Background(), nil, WithQueueCapacity(1))
	release := make(chan struct{})
	bus.Subscribe(&gatedSubscriber{release: release, rec: &recordingSubscriber{}})

	bus.Publish(NewTextMessage(RoleUser, "a", false))
	bus.Publish(NewTextMessage(RoleUser, "b", false))

	blocked := make(chan error, 1)
	go func() {
		blocked <- bus.Publish(NewTextMessage(RoleUser, "c", false))
	}()
	time.Sleep(20 * time.Millisecond)

	bus.Close()
	select {
	case err := <-blocked:
		if err != nil && !errors.Is(err, ErrBusClosed) {
			t.Fatalf("Publish during close = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publisher still blocked after Close")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bus.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}
