package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one task update as delivered to in-process subscribers.
type Event struct {
	ID     string
	TaskID string
	Data   json.RawMessage
}

// Bus fans task updates out to in-process subscribers such as SSE streams.
// It keeps a ring buffer so reconnecting clients can replay what they missed.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type subscriber struct {
	ch     chan Event
	taskID string
}

// NewBus creates a bus with the given ring buffer size.
func NewBus(ringSize int) *Bus {
	if ringSize < 1 {
		ringSize = 1
	}
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers for updates of one task ("" for all tasks) and
// returns the channel and a cancel function.
func (b *Bus) Subscribe(taskID string) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = subscriber{ch: ch, taskID: taskID}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ReplaySince returns buffered events of taskID after lastEventID, oldest
// first. An unknown lastEventID replays nothing.
func (b *Bus) ReplaySince(lastEventID, taskID string) []Event {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""
	for i := 0; i < b.ringSize; i++ {
		e := b.ring[(b.ringHead+i)%b.ringSize]
		if e.ID == "" {
			continue
		}
		if !found {
			found = e.ID == lastEventID
			continue
		}
		if taskID == "" || e.TaskID == taskID {
			events = append(events, e)
		}
	}
	return events
}

// Publish implements Publisher. Slow subscribers miss events rather than
// blocking the task.
func (b *Bus) Publish(taskID string, state any) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	e := Event{
		ID:     fmt.Sprintf("%d-%d", time.Now().UnixMilli(), b.seq.Add(1)),
		TaskID: taskID,
		Data:   data,
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = e
	b.ringHead = (b.ringHead + 1) % b.ringSize
	b.ringMu.Unlock()

	b.mu.RLock()
	for _, sub := range b.subscribers {
		if sub.taskID != "" && sub.taskID != taskID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
	b.mu.RUnlock()
}

func (b *Bus) Close() {}

// Fanout publishes every update to each of its publishers.
type Fanout []Publisher

func (f Fanout) Publish(taskID string, state any) {
	for _, p := range f {
		p.Publish(taskID, state)
	}
}

func (f Fanout) Close() {
	for _, p := range f {
		p.Close()
	}
}
