package broadcast

import (
	"encoding/json"
	"testing"
)

func TestSubscribeAndBroadcast(t *testing.T) {
	b := New(4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Broadcast(Event{Type: EventWorkflowCreated, Payload: map[string]any{"workflow_id": "wf-1"}})

	for _, s := range []*Subscriber{s1, s2} {
		ev := <-s.Events()
		if ev.Type != EventWorkflowCreated {
			t.Errorf("expected workflow_created, got %s", ev.Type)
		}
		if ev.Payload["workflow_id"] != "wf-1" {
			t.Errorf("expected workflow_id wf-1, got %v", ev.Payload["workflow_id"])
		}
	}
}

func TestBroadcastOrderingPerSubscriber(t *testing.T) {
	b := New(8)
	s := b.Subscribe()

	for i := 0; i < 5; i++ {
		b.Broadcast(Event{Type: EventProgressUpdate, Payload: map[string]any{"seq": i}})
	}

	for i := 0; i < 5; i++ {
		ev := <-s.Events()
		if ev.Payload["seq"] != i {
			t.Fatalf("expected seq %d, got %v", i, ev.Payload["seq"])
		}
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	b := New(1)
	slow := b.Subscribe()
	ok1 := b.Subscribe()
	ok2 := b.Subscribe()

	// First broadcast fills every buffer. The healthy subscribers drain
	// theirs; the slow one never reads.
	b.Broadcast(Event{Type: EventProgressUpdate, Payload: map[string]any{"seq": 0}})
	for _, s := range []*Subscriber{ok1, ok2} {
		ev := <-s.Events()
		if ev.Payload["seq"] != 0 {
			t.Fatalf("expected seq 0, got %v", ev.Payload["seq"])
		}
	}

	// The second broadcast finds only the slow buffer full: that
	// subscriber is pruned, the healthy two still receive.
	b.Broadcast(Event{Type: EventProgressUpdate, Payload: map[string]any{"seq": 1}})

	if b.SubscriberCount() != 2 {
		t.Errorf("expected slow subscriber to be pruned, have %d subscribers", b.SubscriberCount())
	}
	if b.DroppedCount() != 1 {
		t.Errorf("expected 1 dropped subscriber, got %d", b.DroppedCount())
	}

	for _, s := range []*Subscriber{ok1, ok2} {
		ev := <-s.Events()
		if ev.Payload["seq"] != 1 {
			t.Errorf("expected seq 1, got %v", ev.Payload["seq"])
		}
	}

	// The dropped subscriber keeps its buffered event, then its channel
	// is closed.
	ev := <-slow.Events()
	if ev.Payload["seq"] != 0 {
		t.Errorf("expected buffered seq 0, got %v", ev.Payload["seq"])
	}
	if _, open := <-slow.Events(); open {
		t.Error("expected dropped subscriber channel to be closed")
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := New(4)
	s := b.Subscribe()
	b.Unsubscribe(s)
	b.Unsubscribe(s) // must not panic
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcastAfterUnsubscribe(t *testing.T) {
	b := New(4)
	s := b.Subscribe()
	keep := b.Subscribe()
	b.Unsubscribe(s)

	b.Broadcast(Event{Type: EventWorkflowStarted, Payload: map[string]any{"workflow_id": "wf-1"}})

	ev := <-keep.Events()
	if ev.Type != EventWorkflowStarted {
		t.Errorf("expected workflow_started, got %s", ev.Type)
	}
	if b.DroppedCount() != 0 {
		t.Errorf("unsubscribed connection should not count as dropped, got %d", b.DroppedCount())
	}
}

func TestEventMarshalFlat(t *testing.T) {
	ev := Event{Type: EventTaskUpdated, Payload: map[string]any{"task_id": "t-1", "progress": 50.0}}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "task_updated" {
		t.Errorf("expected flat type tag, got %v", m["type"])
	}
	if m["task_id"] != "t-1" {
		t.Errorf("expected flat payload field, got %v", m["task_id"])
	}
}
