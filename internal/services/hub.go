package services

import (
	"sync"
	"time"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
)

// DefaultSubscriberBuffer is the per-subscriber channel depth.
const DefaultSubscriberBuffer = 64

// Subscriber is one live consumer of job events. Events arrive on C; a slow
// consumer loses its oldest undelivered events, never the publisher's time.
type Subscriber struct {
	C  chan models.JobEvent
	id uint64
}

// NotificationHub fans job events out to live subscribers over bounded
// channels. Publish never blocks: when a subscriber's buffer is full the
// oldest event is dropped to make room, which keeps backpressure explicit
// and bounded instead of growing listener queues without limit.
type NotificationHub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	buffer int
}

// NewNotificationHub creates a hub with the given per-subscriber buffer size.
func NewNotificationHub(buffer int) *NotificationHub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &NotificationHub{
		subs:   make(map[uint64]*Subscriber),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber.
func (h *NotificationHub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		C:  make(chan models.JobEvent, h.buffer),
		id: h.nextID,
	}
	h.subs[sub.id] = sub
	debug.Debug("Hub subscriber %d registered (%d total)", sub.id, len(h.subs))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *NotificationHub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.subs[sub.id]; !exists {
		return
	}
	delete(h.subs, sub.id)
	close(sub.C)
	debug.Debug("Hub subscriber %d removed (%d remaining)", sub.id, len(h.subs))
}

// Publish delivers an event to every subscriber without blocking.
func (h *NotificationHub) Publish(event models.JobEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.C <- event:
		default:
			// Buffer full: drop the oldest event, then deliver the new one.
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- event:
			default:
			}
			debug.Debug("Hub subscriber %d lagging, dropped oldest event", sub.id)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *NotificationHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
