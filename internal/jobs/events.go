package jobs

import (
	"sort"
	"sync"
	"time"

	"render-sender/internal/domain"
)

// EventType tags what a job event reports.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
)

const defaultMaxEvents = 500

// Event is one sequenced notification about a send job.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	JobID     string           `json:"jobId"`
	Type      EventType        `json:"type"`
	Status    domain.JobStatus `json:"status,omitempty"`
	Message   string           `json:"message,omitempty"`
	Project   string           `json:"project,omitempty"`
	Files     []string         `json:"files,omitempty"`
}

// EventBus keeps the most recent events for polling clients and pushes each
// new one to registered listeners. Sequence numbers start at 1 and never
// repeat, so a client that remembers the last Seq it saw can resume.
type EventBus struct {
	mu        sync.RWMutex
	seq       int64
	limit     int
	buf       []Event
	listeners []func(Event)
}

// NewEventBus creates a bus retaining at most limit events.
func NewEventBus(limit int) *EventBus {
	if limit <= 0 {
		limit = defaultMaxEvents
	}
	return &EventBus{limit: limit, buf: make([]Event, 0, limit)}
}

// Listen registers fn to receive every event published from now on.
// Listeners run on the publishing goroutine, outside the bus lock.
func (b *EventBus) Listen(fn func(Event)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Publish stamps event with the next sequence number and the current time
// (unless already set), stores it and notifies listeners.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if len(b.buf) == b.limit {
		copy(b.buf, b.buf[1:])
		b.buf = b.buf[:len(b.buf)-1]
	}
	b.buf = append(b.buf, event)
	listeners := b.listeners
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
	return event
}

// Since returns the retained events with Seq greater than seq, oldest first.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i := sort.Search(len(b.buf), func(i int) bool { return b.buf[i].Seq > seq })
	if i == len(b.buf) {
		return nil
	}
	return append([]Event(nil), b.buf[i:]...)
}

// ForJob returns the retained events of one job, oldest first.
func (b *EventBus) ForJob(jobID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.buf {
		if event.JobID == jobID {
			out = append(out, event)
		}
	}
	return out
}
