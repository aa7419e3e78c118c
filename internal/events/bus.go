package events

import (
	"slices"
	"sync"
)

const defaultBuffer = 256

// Bus is a channel-based pub-sub bus for run events. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event
	closed  bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events published to topic.
// bufSize defaults to 256 if <= 0.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	ch := newChan(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// SubscribeAll returns a channel receiving events from every topic.
func (b *Bus) SubscribeAll(bufSize int) <-chan Event {
	ch := newChan(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe or
// SubscribeAll. Unknown channels are ignored.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	match := func(ch chan Event) bool { return (<-chan Event)(ch) == sub }
	for topic, chans := range b.subs {
		if i := slices.IndexFunc(chans, match); i >= 0 {
			close(chans[i])
			b.subs[topic] = slices.Delete(chans, i, i+1)
			return
		}
	}
	if i := slices.IndexFunc(b.allSubs, match); i >= 0 {
		close(b.allSubs[i])
		b.allSubs = slices.Delete(b.allSubs, i, i+1)
	}
}

// Publish sends event to the subscribers of topic and to every
// SubscribeAll channel.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	deliver(b.subs[topic], event)
	deliver(b.allSubs, event)
}

// Close closes the bus and all subscriber channels. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}

func newChan(bufSize int) chan Event {
	if bufSize <= 0 {
		bufSize = defaultBuffer
	}
	return make(chan Event, bufSize)
}

func deliver(chans []chan Event, event Event) {
	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			// Full buffer, drop
		}
	}
}
