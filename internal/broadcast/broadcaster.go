// Package broadcast fans structured events out to live subscribers.
// Delivery is best-effort and independent per subscriber: a subscriber
// that cannot keep up is dropped rather than allowed to block the rest.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventType tags an event with its kind.
type EventType string

const (
	// EventWorkflowCreated indicates a new workflow was generated.
	EventWorkflowCreated EventType = "workflow_created"
	// EventWorkflowStarted indicates workflow execution began.
	EventWorkflowStarted EventType = "workflow_started"
	// EventTaskUpdated indicates a task changed state.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskDecomposed indicates a task was spliced into subtasks.
	EventTaskDecomposed EventType = "task_decomposed"
	// EventProgressUpdate carries periodic aggregate progress.
	EventProgressUpdate EventType = "progress_update"
)

// Event is a tagged record delivered to subscribers. On the wire it
// serializes as a flat JSON object with the type alongside the payload
// fields: {"type": "task_updated", "workflow_id": ...}.
type Event struct {
	Type    EventType
	Payload map[string]any
}

// MarshalJSON flattens the payload into a single object with the type tag.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["type"] = string(e.Type)
	return json.Marshal(flat)
}

// Subscriber is a live connection handle returned by Subscribe.
type Subscriber struct {
	id uint64
	ch chan Event
}

// Events returns the channel on which the subscriber receives events.
// The channel is closed when the subscriber is unsubscribed or dropped.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broadcaster delivers events to every registered subscriber.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
	buffer int

	dropped atomic.Uint64
}

// New creates a Broadcaster whose subscribers buffer up to bufferSize
// undelivered events before being dropped.
func New(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Broadcaster{
		subs:   make(map[uint64]*Subscriber),
		buffer: bufferSize,
	}
}

// Subscribe registers a new live connection and returns its handle.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscriber{id: b.nextID, ch: make(chan Event, b.buffer)}
	b.subs[s.id] = s
	return s
}

// Unsubscribe removes a subscriber and closes its channel.
// Safe to call more than once.
func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(s)
}

// removeLocked deletes the subscriber and closes its channel. The channel
// is only ever closed here, under the mutex, after removal from the map,
// so Broadcast can never send on a closed channel.
func (b *Broadcaster) removeLocked(s *Subscriber) {
	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	close(s.ch)
}

// Broadcast sends an event to every registered subscriber. Delivery to
// each subscriber is independent: a subscriber whose buffer is full is
// unsubscribed on the spot and the remaining subscribers still receive
// the event. Broadcast never blocks on a slow subscriber.
func (b *Broadcaster) Broadcast(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var stale []*Subscriber
	for _, s := range b.subs {
		select {
		case s.ch <- event:
		default:
			stale = append(stale, s)
		}
	}

	for _, s := range stale {
		b.removeLocked(s)
		count := b.dropped.Add(1)
		log.Printf("[broadcast] dropped slow subscriber %d (total dropped: %d): type=%s", s.id, count, event.Type)
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// DroppedCount returns the total number of subscribers dropped for
// failing delivery.
func (b *Broadcaster) DroppedCount() uint64 {
	return b.dropped.Load()
}

// Close unsubscribes every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		b.removeLocked(s)
	}
}
