package events

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aristath/stepflow/internal/state"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicRun, 10)

	bus.Publish(TopicRun, RunStartedEvent{
		ID:        "run-1",
		Task:      "Summarise the release notes",
		MaxSteps:  5,
		Timestamp: time.Now(),
	})

	select {
	case received := <-ch:
		if received.TaskID() != "run-1" {
			t.Errorf("expected task ID 'run-1', got '%s'", received.TaskID())
		}
		if received.EventType() != EventTypeRunStarted {
			t.Errorf("expected event type '%s', got '%s'", EventTypeRunStarted, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicNode, 10)
	ch2 := bus.Subscribe(TopicNode, 10)

	bus.Publish(TopicNode, NodeCompletedEvent{
		ID:        "run-2",
		Node:      "decision",
		Step:      1,
		MaxSteps:  5,
		Status:    state.StatusRunning,
		Duration:  20 * time.Millisecond,
		Timestamp: time.Now(),
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID() != "run-2" {
				t.Errorf("subscriber %d: expected task ID 'run-2', got '%s'", i+1, received.TaskID())
			}
			node, ok := received.(NodeCompletedEvent)
			if !ok {
				t.Fatalf("subscriber %d: expected NodeCompletedEvent, got %T", i+1, received)
			}
			if node.Node != "decision" {
				t.Errorf("subscriber %d: node = %q, want decision", i+1, node.Node)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

func TestNonBlockingSend(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicNode, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicNode, ProviderExecutedEvent{
				ID:        fmt.Sprintf("run-%d", i),
				Provider:  "research",
				Step:      i,
				Success:   true,
				Timestamp: time.Now(),
			})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	// Only the first event fits the buffer
	select {
	case received := <-ch:
		if received.TaskID() != "run-0" {
			t.Errorf("expected first event to be kept, got %s", received.TaskID())
		}
	default:
		t.Error("expected at least one event in buffer")
	}
}

func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe(TopicRun, 10)
	all := bus.SubscribeAll(10)

	bus.Close()
	bus.Close()

	received := 0
	for range ch {
		received++
	}
	for range all {
		received++
	}
	if received != 0 {
		t.Errorf("expected 0 events after close, got %d", received)
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicRun, 10)

	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(TopicRun, RunFailedEvent{ID: "run-1", Err: errors.New("boom"), Timestamp: time.Now()})

	if _, ok := <-ch; ok {
		t.Error("received event after bus was closed")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	if _, ok := <-bus.Subscribe(TopicRun, 1); ok {
		t.Error("expected closed channel from Subscribe after Close")
	}
	if _, ok := <-bus.SubscribeAll(1); ok {
		t.Error("expected closed channel from SubscribeAll after Close")
	}
}

func TestMultipleTopics(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	runCh := bus.Subscribe(TopicRun, 10)
	nodeCh := bus.Subscribe(TopicNode, 10)

	bus.Publish(TopicRun, RunCompletedEvent{ID: "run-1", Steps: 3, Timestamp: time.Now()})
	bus.Publish(TopicNode, DecisionMadeEvent{
		ID:        "run-1",
		Step:      1,
		Decision:  state.Decision{Action: state.ActionComplete, Confidence: 1},
		Timestamp: time.Now(),
	})

	select {
	case received := <-runCh:
		if received.EventType() != EventTypeRunCompleted {
			t.Errorf("run channel: expected run event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("run channel: timeout waiting for event")
	}

	select {
	case received := <-nodeCh:
		if received.EventType() != EventTypeDecisionMade {
			t.Errorf("node channel: expected decision event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("node channel: timeout waiting for event")
	}

	select {
	case <-runCh:
		t.Error("run channel received unexpected event")
	case <-nodeCh:
		t.Error("node channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	bus.Publish(TopicRun, RunStartedEvent{ID: "run-1", Timestamp: time.Now()})
	bus.Publish(TopicNode, NodeCompletedEvent{ID: "run-1", Node: "query_analysis", Timestamp: time.Now()})

	receivedTypes := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedTypes[received.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for event %d", i+1)
		}
	}

	if !receivedTypes[EventTypeRunStarted] {
		t.Error("SubscribeAll did not receive run event")
	}
	if !receivedTypes[EventTypeNodeCompleted] {
		t.Error("SubscribeAll did not receive node event")
	}

	select {
	case <-allCh:
		t.Error("received unexpected third event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	keep := bus.Subscribe(TopicRun, 10)
	drop := bus.Subscribe(TopicRun, 10)
	dropAll := bus.SubscribeAll(10)

	bus.Unsubscribe(drop)
	bus.Unsubscribe(dropAll)
	bus.Unsubscribe(make(chan Event)) // unknown, ignored

	if _, ok := <-drop; ok {
		t.Error("expected unsubscribed channel to be closed")
	}
	if _, ok := <-dropAll; ok {
		t.Error("expected unsubscribed SubscribeAll channel to be closed")
	}

	bus.Publish(TopicRun, RunStartedEvent{ID: "run-1", Timestamp: time.Now()})

	select {
	case received := <-keep:
		if received.TaskID() != "run-1" {
			t.Errorf("expected run-1, got %s", received.TaskID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("remaining subscriber missed event")
	}
}
