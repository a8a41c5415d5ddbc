package library

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventName identifies a kind of domain event.
type EventName string

const (
	EventBookAdded       EventName = "book:added"
	EventBookUpdated     EventName = "book:updated"
	EventBookRemoved     EventName = "book:removed"
	EventUserRegistered  EventName = "user:registered"
	EventUserUpdated     EventName = "user:updated"
	EventUserRemoved     EventName = "user:removed"
	EventLoanCreated     EventName = "loan:created"
	EventLoanReturned    EventName = "loan:returned"
	EventLibraryRestored EventName = "library:restored"
)

// DefaultHistorySize is how many recent events a Library keeps.
const DefaultHistorySize = 50

// Event is one fired domain event. Data holds one of BookEvent, UserEvent, LoanEvent or
// RestoredEvent, always by value.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      EventName `json:"name"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type BookEvent struct {
	Book Book `json:"book"`
}

type UserEvent struct {
	User Profile `json:"user"`
}

type LoanEvent struct {
	UserEmail string `json:"userEmail"`
	ISBN      string `json:"isbn"`
	BookTitle string `json:"bookTitle"`
}

type RestoredEvent struct {
	Books int `json:"books"`
	Users int `json:"users"`
	Loans int `json:"loans"`
}

// Handler receives fired events synchronously, after the event is in the history.
type Handler func(Event)

// EventStats is a fold over the event history.
type EventStats struct {
	Counts         map[EventName]int `json:"eventCounts"`
	Total          int               `json:"totalEvents"`
	LastEvent      *Event            `json:"lastEvent,omitempty"`
	FirstEventTime *time.Time        `json:"firstEventTime,omitempty"`
	LastEventTime  *time.Time        `json:"lastEventTime,omitempty"`
}

// ring is a fixed-capacity FIFO; pushing into a full ring evicts the oldest entry.
type ring struct {
	buf   []Event
	start int
	n     int
}

func newRing(size int) *ring {
	return &ring{buf: make([]Event, size)}
}

func (r *ring) push(ev Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = ev
		r.n++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

// items returns the stored events oldest first.
func (r *ring) items() []Event {
	out := make([]Event, r.n)
	for i := range r.n {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

type subscriber struct {
	id      uint64
	handler Handler
}

// eventBus owns the bounded history and the registered handlers of one Library.
type eventBus struct {
	mu       sync.Mutex
	history  *ring
	handlers map[EventName][]subscriber
	wildcard []subscriber
	nextID   uint64
}

func newEventBus(historySize int) *eventBus {
	return &eventBus{
		history:  newRing(historySize),
		handlers: make(map[EventName][]subscriber),
	}
}

// Subscription is the handle returned by On and OnAny.
type Subscription struct {
	bus  *eventBus
	id   uint64
	name EventName
	all  bool
}

// Cancel stops further deliveries to the handler. Calling it twice is harmless.
func (s Subscription) Cancel() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.all {
		s.bus.wildcard = without(s.bus.wildcard, s.id)
		return
	}
	s.bus.handlers[s.name] = without(s.bus.handlers[s.name], s.id)
}

func without(subs []subscriber, id uint64) []subscriber {
	out := make([]subscriber, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func (b *eventBus) subscribe(name EventName, h Handler, all bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := subscriber{id: b.nextID, handler: h}
	if all {
		b.wildcard = append(b.wildcard, sub)
	} else {
		b.handlers[name] = append(b.handlers[name], sub)
	}
	return Subscription{bus: b, id: sub.id, name: name, all: all}
}

// record appends ev to the history and returns the handlers to run for it. The caller
// dispatches them after releasing its own locks.
func (b *eventBus) record(ev Event) []subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.push(ev)
	named := b.handlers[ev.Name]
	subs := make([]subscriber, 0, len(named)+len(b.wildcard))
	subs = append(subs, named...)
	return append(subs, b.wildcard...)
}

func dispatch(ev Event, subs []subscriber) {
	for _, s := range subs {
		s.handler(ev)
	}
}

func (b *eventBus) snapshot() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.items()
}

func statsOf(history []Event) EventStats {
	stats := EventStats{Counts: make(map[EventName]int), Total: len(history)}
	for _, ev := range history {
		stats.Counts[ev.Name]++
	}
	if len(history) > 0 {
		first, last := history[0], history[len(history)-1]
		stats.LastEvent = &last
		stats.FirstEventTime = &first.Timestamp
		stats.LastEventTime = &last.Timestamp
	}
	return stats
}
