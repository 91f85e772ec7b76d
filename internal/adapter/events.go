package adapter

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies a lifecycle event.
type EventKind int

// Lifecycle events.
const (
	NetworkChanged EventKind = iota
	AccountsChanged
	Closed
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case NetworkChanged:
		return "networkChanged"
	case AccountsChanged:
		return "accountsChanged"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a lifecycle notification from an adapter.
type Event struct {
	Kind EventKind

	// NetworkID is set for NetworkChanged.
	NetworkID uint64

	// Accounts is set for AccountsChanged. It may be empty.
	Accounts []common.Address

	// Err is the transport error that caused a Closed event, if any.
	Err error
}

// Handler receives adapter events. Handlers for one adapter run sequentially
// in arrival order and should return quickly.
type Handler func(Event)

// Subscription is a registered handler.
type Subscription interface {
	// Unsubscribe removes the handler. Once Unsubscribe returns, no new
	// invocation of the handler starts. It must not be called from inside
	// the handler it removes.
	Unsubscribe()
}

type subscription struct {
	mu      sync.Mutex
	handler Handler
	active  bool
	owner   *emitter
	kind    EventKind
	id      uint64
}

func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.owner.remove(s.kind, s.id)
}

// deliver runs the handler while holding the subscription lock so that
// Unsubscribe waits for an in-flight invocation.
func (s *subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.handler(ev)
	}
}

// emitter fans events out to subscriptions.
type emitter struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[EventKind]map[uint64]*subscription
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[EventKind]map[uint64]*subscription)}
}

func (e *emitter) subscribe(kind EventKind, h Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	s := &subscription{handler: h, active: true, owner: e, kind: kind, id: e.nextID}
	if e.subs[kind] == nil {
		e.subs[kind] = make(map[uint64]*subscription)
	}
	e.subs[kind][s.id] = s
	return s
}

func (e *emitter) remove(kind EventKind, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs[kind], id)
}

// count returns the number of live subscriptions across all kinds.
func (e *emitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.subs {
		n += len(m)
	}
	return n
}

// clear drops every subscription. Used on Close.
func (e *emitter) clear() {
	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[EventKind]map[uint64]*subscription)
	e.mu.Unlock()

	for _, m := range subs {
		for _, s := range m {
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
		}
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	targets := make([]*subscription, 0, len(e.subs[ev.Kind]))
	for _, s := range e.subs[ev.Kind] {
		targets = append(targets, s)
	}
	e.mu.Unlock()

	for _, s := range targets {
		s.deliver(ev)
	}
}
