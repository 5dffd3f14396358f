// Package eventbus dispatches cell events to channel subscribers and
// continuous-query callbacks. Subscribers register a channel and an
// optional set of event types to relay via Notify, and unsubscribe with
// Ignore.
package eventbus

import (
	"sync"

	"github.com/shaj13/gridentry"
)

// Bus relays EventRecords to subscriber channels and continuous-query
// callbacks. It implements both gridentry.EventBus and
// gridentry.ContinuousQueries so a single dispatcher serves both roles
// and a key's events arrive in the same total order as the mutations
// that caused them.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan<- gridentry.EventRecord]map[gridentry.EventType]bool
	cqCallbacks []ContinuousQueryFunc
	recordable  map[gridentry.EventType]bool
}

// ContinuousQueryFunc receives either an update or an expiry notification.
type ContinuousQueryFunc struct {
	OnUpdated func(key gridentry.Key, newVal, oldVal any, preload bool)
	OnExpired func(key gridentry.Key, expiredVal any)
}

// New returns a Bus with every event type recordable by default.
func New() *Bus {
	return &Bus{
		subscribers: make(map[chan<- gridentry.EventRecord]map[gridentry.EventType]bool),
		recordable: map[gridentry.EventType]bool{
			gridentry.EventPut:     true,
			gridentry.EventRemoved: true,
			gridentry.EventRead:    true,
			gridentry.EventExpired: true,
		},
	}
}

// SetRecordable toggles what IsRecordable reports for t. The cell checks
// IsRecordable before each emission; AddEvent itself does not consult it.
func (b *Bus) SetRecordable(t gridentry.EventType, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordable[t] = on
}

// Notify causes the bus to relay events to ch. If no types are provided,
// every type is relayed; otherwise only the given types are.
func (b *Bus) Notify(ch chan<- gridentry.EventRecord, types ...gridentry.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subscribers[ch]
	if set == nil {
		set = make(map[gridentry.EventType]bool)
	}
	if len(types) == 0 {
		set[gridentry.EventPut] = true
		set[gridentry.EventRemoved] = true
		set[gridentry.EventRead] = true
		set[gridentry.EventExpired] = true
	}
	for _, t := range types {
		set[t] = true
	}
	b.subscribers[ch] = set
}

// Ignore undoes a prior Notify for the given types, or removes ch entirely
// if none are given.
func (b *Bus) Ignore(ch chan<- gridentry.EventRecord, types ...gridentry.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		delete(b.subscribers, ch)
		return
	}
	set := b.subscribers[ch]
	for _, t := range types {
		delete(set, t)
	}
}

// RegisterContinuousQuery adds a continuous-query subscriber.
func (b *Bus) RegisterContinuousQuery(cb ContinuousQueryFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cqCallbacks = append(b.cqCallbacks, cb)
}

// IsRecordable implements gridentry.EventBus.
func (b *Bus) IsRecordable(t gridentry.EventType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordable[t]
}

// AddEvent implements gridentry.EventBus: it relays rec to every
// subscriber registered for its type. Delivery is non-blocking: a full
// subscriber channel drops the event rather than stalling the cell's
// critical section, since events fire while the cell's own lock is held.
func (b *Bus) AddEvent(rec gridentry.EventRecord) {
	b.mu.Lock()
	subs := make([]chan<- gridentry.EventRecord, 0, len(b.subscribers))
	for ch, types := range b.subscribers {
		if types[rec.Type] {
			subs = append(subs, ch)
		}
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// OnEntryUpdated implements gridentry.ContinuousQueries.
func (b *Bus) OnEntryUpdated(key gridentry.Key, newVal, oldVal any, preload bool) {
	b.mu.Lock()
	cbs := append([]ContinuousQueryFunc(nil), b.cqCallbacks...)
	b.mu.Unlock()
	for _, cb := range cbs {
		if cb.OnUpdated != nil {
			cb.OnUpdated(key, newVal, oldVal, preload)
		}
	}
}

// OnEntryExpired implements gridentry.ContinuousQueries.
func (b *Bus) OnEntryExpired(key gridentry.Key, expiredVal any) {
	b.mu.Lock()
	cbs := append([]ContinuousQueryFunc(nil), b.cqCallbacks...)
	b.mu.Unlock()
	for _, cb := range cbs {
		if cb.OnExpired != nil {
			cb.OnExpired(key, expiredVal)
		}
	}
}
