package bus

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const subscriberBufferSize = 256

// subscriber is one live listener on a journal's event stream. Channel is
// closed and the subscriber dropped once it falls behind (desynchronized)
// or calls Unsubscribe.
type subscriber struct {
	id      int64
	ch      chan ExecutionEvent
	closed  bool
}

// journal is the append-only, per-execution event log plus the set of
// currently live subscribers. mu guards both the log slice and the
// subscriber set together so that a new subscriber's catch-up replay can
// never interleave with a concurrent publish — matching the durability
// guarantee the engine promises callers.
type journal struct {
	mu          sync.Mutex
	events      []ExecutionEvent
	subscribers map[int64]*subscriber
	nextSubID   int64
	seq         int64
}

// Bus is the process-wide event bus: one journal per execution, looked up
// concurrently by many goroutines (the scheduler publishing, HTTP/WS
// handlers subscribing). The outer map uses xsync for lock-free reads under
// concurrent publish/subscribe across unrelated executions.
type Bus struct {
	journals *xsync.MapOf[string, *journal]
}

func New() *Bus {
	return &Bus{journals: xsync.NewMapOf[string, *journal]()}
}

func (b *Bus) journalFor(executionID string) *journal {
	j, _ := b.journals.LoadOrCompute(executionID, func() *journal {
		return &journal{subscribers: make(map[int64]*subscriber)}
	})
	return j
}

// Publish appends ev to the execution's journal (assigning it the next
// sequence number) and fans it out to every live subscriber. A subscriber
// whose buffer is full is desynchronized: it is dropped and its channel
// closed rather than blocking the publisher indefinitely.
func (b *Bus) Publish(executionID string, ev ExecutionEvent) ExecutionEvent {
	j := b.journalFor(executionID)

	j.mu.Lock()
	j.seq++
	ev.Sequence = j.seq
	j.events = append(j.events, ev)
	stale := j.deliverLocked(ev)
	j.mu.Unlock()

	for _, id := range stale {
		j.dropSubscriber(id)
	}
	return ev
}

// deliverLocked must be called with j.mu held. It returns the ids of
// subscribers that were too far behind to accept ev without blocking.
func (j *journal) deliverLocked(ev ExecutionEvent) []int64 {
	var stale []int64
	for id, sub := range j.subscribers {
		select {
		case sub.ch <- ev:
		default:
			stale = append(stale, id)
		}
	}
	return stale
}

func (j *journal) dropSubscriber(id int64) {
	j.mu.Lock()
	sub, ok := j.subscribers[id]
	if ok {
		delete(j.subscribers, id)
	}
	j.mu.Unlock()
	if ok && !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Subscription is a live handle on an execution's event stream.
type Subscription struct {
	Events <-chan ExecutionEvent
	cancel func()
}

// Unsubscribe stops delivery and closes Events. Safe to call more than
// once.
func (s *Subscription) Unsubscribe() {
	s.cancel()
}

// Subscribe attaches a new live listener to executionID's journal. Every
// journaled event with a timestamp strictly after `after` — or every
// journaled event, when after is nil — is replayed (in order, serialized so
// it cannot interleave with a concurrently-arriving live event) before the
// subscription starts forwarding new publishes.
func (b *Bus) Subscribe(executionID string, after *time.Time) *Subscription {
	j := b.journalFor(executionID)

	j.mu.Lock()
	id := j.nextSubID
	j.nextSubID++
	sub := &subscriber{id: id, ch: make(chan ExecutionEvent, subscriberBufferSize)}
	j.subscribers[id] = sub

	for _, ev := range j.events {
		if after != nil && !ev.Timestamp.After(*after) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Catch-up backlog exceeds the buffer; the subscriber
			// starts desynchronized and must re-subscribe.
			delete(j.subscribers, id)
			close(sub.ch)
			j.mu.Unlock()
			return &Subscription{Events: sub.ch, cancel: func() {}}
		}
	}
	j.mu.Unlock()

	return &Subscription{Events: sub.ch, cancel: func() { j.dropSubscriber(id) }}
}

// Exists reports whether executionID has a journal on this bus, without
// creating one. A completed execution keeps its journal for the life of the
// process; false therefore means the execution either never ran here or ran
// before a restart, and any replay must come from durable storage instead.
func (b *Bus) Exists(executionID string) bool {
	_, ok := b.journals.Load(executionID)
	return ok
}

// Replay returns every event journaled for executionID after the given
// timestamp (or all of them, if after is nil), for one-shot catch-up reads
// that don't want a live subscription.
func (b *Bus) Replay(executionID string, after *time.Time) []ExecutionEvent {
	j := b.journalFor(executionID)
	j.mu.Lock()
	defer j.mu.Unlock()
	if after == nil {
		out := make([]ExecutionEvent, len(j.events))
		copy(out, j.events)
		return out
	}
	var out []ExecutionEvent
	for _, ev := range j.events {
		if ev.Timestamp.After(*after) {
			out = append(out, ev)
		}
	}
	return out
}

// Close releases an execution's journal and disconnects any remaining
// subscribers. Completed executions keep their journal available for later
// replay, so this is an explicit eviction — for shutdown or memory
// reclamation once durable storage is known to hold the full journal — not
// part of the normal completion path.
func (b *Bus) Close(executionID string) {
	j, ok := b.journals.Load(executionID)
	if !ok {
		return
	}
	j.mu.Lock()
	subs := j.subscribers
	j.subscribers = make(map[int64]*subscriber)
	j.mu.Unlock()
	for _, sub := range subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	b.journals.Delete(executionID)
}
