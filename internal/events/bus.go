// Package events distributes generation-progress events to SSE subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/narratage/narratage/internal/metrics"
)

// Event is one server-sent event as delivered to a browser.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SegmentID string          `json:"segment_id,omitempty"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Filter narrows which events a subscriber receives. Zero value matches all.
type Filter struct {
	Types      []string
	SegmentIDs []string
}

// Bus provides pub-sub event distribution for SSE subscribers.
// It maintains a ring buffer for replay on reconnect.
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
	filter Filter
}

// NewBus creates an event bus with the given ring buffer size.
func NewBus(ringSize int) *Bus {
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// ReplaySince returns buffered events newer than the given event ID.
func (b *Bus) ReplaySince(lastEventID string, filter Filter) []Event {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var out []Event
	found := lastEventID == ""

	for i := 0; i < b.ringSize; i++ {
		idx := (b.ringHead + i) % b.ringSize
		e := b.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	return out
}

// Publish sends an event to all matching subscribers and records it for replay.
// Slow subscribers are skipped rather than blocking the publisher.
func (b *Bus) Publish(eventType, segmentID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	seq := b.seq.Add(1)
	event := Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq),
		Type:      eventType,
		SegmentID: segmentID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = event
	b.ringHead = (b.ringHead + 1) % b.ringSize
	b.ringMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if !matches(event, sub.filter) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}

	metrics.SSEEventsPublishedTotal.Inc()
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func matches(e Event, f Filter) bool {
	if len(f.Types) > 0 && !contains(f.Types, e.Type) {
		return false
	}
	if len(f.SegmentIDs) > 0 && !contains(f.SegmentIDs, e.SegmentID) {
		return false
	}
	return true
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
