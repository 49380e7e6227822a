package graph

import (
	"sync"
	"sync/atomic"

	"kmerwalk/internal/epoch"
)

// EventType names a graph mutation.
type EventType string

const (
	EventReset       EventType = "reset"
	EventNodeAdded   EventType = "node_added"
	EventEdgeAdded   EventType = "edge_added"
	EventNodeUpdated EventType = "node_updated"
)

// DefaultEventBuffer is the per-subscriber channel capacity.
const DefaultEventBuffer = 256

// Event is one mutation. Exactly one of Session, Node or Edge is set,
// according to Type. Seq increases by one per published event.
type Event struct {
	Seq     uint64
	Type    EventType
	Epoch   epoch.Epoch
	Session *Session
	Node    *Node
	Edge    *Edge
}

// hub fans events out to subscribers. Sends never block; a subscriber
// that falls behind loses events and should resync from a Snapshot.
type hub struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	seq     uint64
	dropped atomic.Uint64
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	ev.Seq = h.seq
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}
