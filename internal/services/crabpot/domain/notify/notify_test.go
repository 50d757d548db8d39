package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1024)}
}

func (r *recorder) handle(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-deadline:
			t.Fatalf("received %d events, want %d", i, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestPublishDeliversInOrder(t *testing.T) {
	t.Parallel()

	n := New()
	defer n.Close(context.Background())

	rec := newRecorder()
	if _, err := n.Subscribe(rec.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := range 50 {
		n.Publish(PlayEvent(play.Record{Sequence: uint64(i), Outcome: play.OutcomeLost}))
	}
	n.Publish(BlockEvent(block.Record{Sequence: 0}))

	events := rec.wait(t, 51)
	for i := range 50 {
		if events[i].Kind != KindPlay || events[i].Play.Sequence != uint64(i) {
			t.Fatalf("event %d = %+v, want play %d", i, events[i], i)
		}
	}
	if events[50].Kind != KindBlock || events[50].Block == nil {
		t.Fatalf("last event = %+v, want block", events[50])
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()

	n := New()
	defer n.Close(context.Background())

	release := make(chan struct{})
	if _, err := n.Subscribe(func(Event) { <-release }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	fast := newRecorder()
	if _, err := n.Subscribe(fast.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := range 100 {
			n.Publish(PlayEvent(play.Record{Sequence: uint64(i)}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	fast.wait(t, 100)
	close(release)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	n := New()
	defer n.Close(context.Background())

	rec := newRecorder()
	handle, err := n.Subscribe(rec.handle)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	n.Publish(PlayEvent(play.Record{Sequence: 0}))
	rec.wait(t, 1)

	if !n.Unsubscribe(handle) {
		t.Fatal("expected unsubscribe to report active handle")
	}
	if n.Unsubscribe(handle) {
		t.Fatal("expected second unsubscribe to report unknown handle")
	}
	n.Publish(PlayEvent(play.Record{Sequence: 1}))

	select {
	case <-rec.got:
		t.Fatal("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	t.Parallel()

	var logged sync.WaitGroup
	logged.Add(1)
	var once sync.Once
	n := New(WithLogger(func(string, ...any) { once.Do(logged.Done) }))
	defer n.Close(context.Background())

	if _, err := n.Subscribe(func(Event) { panic("boom") }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	rec := newRecorder()
	if _, err := n.Subscribe(rec.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	n.Publish(PlayEvent(play.Record{Sequence: 0}))
	n.Publish(PlayEvent(play.Record{Sequence: 1}))
	rec.wait(t, 2)
	logged.Wait()
}

func TestCloseDrainsAndRejectsSubscribers(t *testing.T) {
	t.Parallel()

	n := New()
	rec := newRecorder()
	if _, err := n.Subscribe(rec.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := range 10 {
		n.Publish(PlayEvent(play.Record{Sequence: uint64(i)}))
	}
	if err := n.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(rec.wait(t, 10)); got != 10 {
		t.Fatalf("delivered = %d, want 10", got)
	}
	if _, err := n.Subscribe(rec.handle); !errors.Is(err, ErrClosed) {
		t.Fatalf("subscribe after close = %v, want ErrClosed", err)
	}
	if n.Subscribers() != 0 {
		t.Fatalf("subscribers = %d, want 0", n.Subscribers())
	}
}

func TestCloseTimesOutOnStuckSubscriber(t *testing.T) {
	t.Parallel()

	n := New()
	release := make(chan struct{})
	defer close(release)
	if _, err := n.Subscribe(func(Event) { <-release }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	n.Publish(PlayEvent(play.Record{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("close = %v, want deadline exceeded", err)
	}
}
