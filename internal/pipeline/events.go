package pipeline

import (
	"sync"
	"time"

	"pdf-audio/internal/domain"
)

// EventType classifies messages emitted by the state machine.
type EventType string

const (
	// EventTypeState carries a new pipeline snapshot.
	EventTypeState EventType = "state"
	// EventTypeVoices announces a refreshed filtered voice list.
	EventTypeVoices EventType = "voices"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64                  `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId"`
	Type      EventType              `json:"type"`
	Stage     domain.Stage           `json:"stage,omitempty"`
	Message   string                 `json:"message,omitempty"`
	State     *domain.PipelineState  `json:"state,omitempty"`
	Voices    []domain.FilteredVoice `json:"voices,omitempty"`
}

// EventBus keeps a bounded history of events for incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 256
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Last returns the most recent event, if any.
func (b *EventBus) Last() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return Event{}, false
	}
	return b.events[len(b.events)-1], true
}
