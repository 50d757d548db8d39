// Package notify fans committed plays and blocks out to subscribers.
//
// Publish never blocks: every subscriber owns an unbounded FIFO mailbox
// drained by its own goroutine, so a slow handler delays only itself. Events
// reach each subscriber in publish order.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/louisbranch/crabpot/internal/platform/id"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
)

// ErrClosed is returned when subscribing to a closed notifier.
var ErrClosed = errors.New("notifier is closed")

// Kind names the committed action an event reports.
type Kind string

const (
	KindPlay  Kind = "PLAY"
	KindBlock Kind = "BLOCK"
)

// Event reports one committed record. Exactly one of Play or Block is set.
type Event struct {
	Kind  Kind
	Play  *play.Record
	Block *block.Record
}

// PlayEvent wraps a committed play.
func PlayEvent(record play.Record) Event {
	return Event{Kind: KindPlay, Play: &record}
}

// BlockEvent wraps a committed block.
func BlockEvent(record block.Record) Event {
	return Event{Kind: KindBlock, Block: &record}
}

// Handler receives events on the subscriber's goroutine.
type Handler func(Event)

// Handle identifies a subscription.
type Handle string

// Option customizes a Notifier.
type Option func(*Notifier)

// WithLogger routes handler panic reports to logf.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(n *Notifier) {
		if logf != nil {
			n.logf = logf
		}
	}
}

// Notifier delivers events to subscribers.
type Notifier struct {
	mu     sync.Mutex
	subs   map[Handle]*mailbox
	closed bool
	logf   func(format string, args ...any)
}

// New returns an open notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		subs: make(map[Handle]*mailbox),
		logf: log.Printf,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers handler for every event published after it returns.
func (n *Notifier) Subscribe(handler Handler) (Handle, error) {
	if handler == nil {
		return "", fmt.Errorf("handler is required")
	}
	raw, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("subscription handle: %w", err)
	}
	handle := Handle(raw)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return "", ErrClosed
	}
	box := newMailbox(handle, handler, n.logf)
	n.subs[handle] = box
	go box.run()
	return handle, nil
}

// Unsubscribe stops delivery to handle and discards its pending events. It
// reports whether the handle was subscribed.
func (n *Notifier) Unsubscribe(handle Handle) bool {
	n.mu.Lock()
	box, ok := n.subs[handle]
	delete(n.subs, handle)
	n.mu.Unlock()
	if ok {
		box.drop()
	}
	return ok
}

// Publish enqueues event for every current subscriber.
func (n *Notifier) Publish(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, box := range n.subs {
		box.push(event)
	}
}

// Subscribers returns the number of active subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close stops accepting events and waits for queued events to drain until
// ctx is done. Undelivered events are discarded on timeout.
func (n *Notifier) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	boxes := make([]*mailbox, 0, len(n.subs))
	for handle, box := range n.subs {
		boxes = append(boxes, box)
		delete(n.subs, handle)
	}
	n.mu.Unlock()

	for _, box := range boxes {
		box.drain()
	}
	for i, box := range boxes {
		select {
		case <-box.finished:
		case <-ctx.Done():
			for _, rest := range boxes[i:] {
				rest.drop()
			}
			return fmt.Errorf("drain subscribers: %w", ctx.Err())
		}
	}
	return nil
}

type mailbox struct {
	handle   Handle
	handler  Handler
	logf     func(format string, args ...any)
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	closing  bool
	dropped  bool
	finished chan struct{}
}

func newMailbox(handle Handle, handler Handler, logf func(string, ...any)) *mailbox {
	m := &mailbox{
		handle:   handle,
		handler:  handler,
		logf:     logf,
		finished: make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) push(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}
	m.queue = append(m.queue, event)
	m.cond.Signal()
}

func (m *mailbox) drain() {
	m.mu.Lock()
	m.closing = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) drop() {
	m.mu.Lock()
	m.closing = true
	m.dropped = true
	m.queue = nil
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) run() {
	defer close(m.finished)
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closing {
			m.cond.Wait()
		}
		if m.dropped || len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		event := m.queue[0]
		m.queue[0] = Event{}
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.deliver(event)
	}
}

func (m *mailbox) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logf("notify: subscriber %s panicked on %s event: %v", m.handle, event.Kind, r)
		}
	}()
	m.handler(event)
}
