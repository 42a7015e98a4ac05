// Package events fans capture-pipeline notifications out to page sessions
// and operator tooling. Delivery is best-effort: the correlation store, not
// the broker, is the source of truth, so dropped events are harmless.
package events

import (
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 64

// Event types published on the broker.
const (
	TypeDemoDetected  = "demo_download_detected"
	TypeCaptureStored = "capture_stored"
	TypeCaptureEvict  = "capture_evicted"
	TypeDelivery      = "demo_delivery"
	TypeSessionState  = "session_state"
)

// DemoDetected announces a classified demo download.
type DemoDetected struct {
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	DownloadHandle int    `json:"downloadId"`
}

// Delivery announces the outcome of a submission.
type Delivery struct {
	MatchID string `json:"matchId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionState announces a page session transition.
type SessionState struct {
	SessionID string `json:"sessionId"`
	MatchID   string `json:"matchId,omitempty"`
	State     string `json:"state"`
}

// Event is a single broker notification.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Broker fans out events to all subscribers. Slow consumers have events
// dropped rather than blocking publishers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Event)}
}

// Subscribe registers a consumer and returns its id and buffered channel.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to every subscriber without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SubscriberCount returns the number of active consumers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
