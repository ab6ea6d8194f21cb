// Package realtime fans order events out to subscribers of a topic.
//
// Delivery is a hint, not a log: a subscriber that cannot keep up is
// disconnected instead of silently skipping events, and clients re-fetch
// state over HTTP after reconnecting.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"gamescrow/pkg/logger"
	"gamescrow/pkg/metrics"
)

const DefaultBufferSize = 64

// Event is the envelope written to SSE and WebSocket clients.
type Event struct {
	Name      string          `json:"event"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subscription receives the events of one topic until it is closed, its
// context ends, or the hub evicts it for falling behind.
type Subscription struct {
	hub    *Hub
	topic  string
	events chan Event
	done   chan struct{}
	once   sync.Once

	evicted bool
}

func (s *Subscription) Topic() string {
	return s.topic
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Evicted reports whether the hub dropped this subscriber for a full buffer.
func (s *Subscription) Evicted() bool {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.evicted
}

func (s *Subscription) Close() {
	s.hub.remove(s, false)
}

// Forwarder receives every locally published event, e.g. to relay it to
// other instances.
type Forwarder func(ev Event)

type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*Subscription]struct{}
	bufferSize int
	forward    Forwarder
	origin     string
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		topics:     make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		origin:     uuid.New().String(),
	}
}

// Origin identifies this hub instance in relayed events.
func (h *Hub) Origin() string {
	return h.origin
}

func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	h.forward = f
	h.mu.Unlock()
}

// Subscribe registers a subscriber on topic. It is removed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, topic string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topic:  topic,
		events: make(chan Event, h.bufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeSubscribers.Inc()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

// Publish never blocks and never fails the caller; a payload that cannot
// be encoded is logged and dropped.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("realtime: failed to encode %s for %s: %v", event, topic, err)
		return
	}
	ev := Event{Name: event, Topic: topic, Data: data, Timestamp: time.Now().UTC()}

	h.Deliver(ev)

	h.mu.RLock()
	forward := h.forward
	h.mu.RUnlock()
	if forward != nil {
		forward(ev)
	}
}

// Deliver hands ev to the local subscribers of its topic only.
func (h *Hub) Deliver(ev Event) {
	metrics.RealtimeEventsTotal.WithLabelValues(ev.Name).Inc()

	var slow []*Subscription
	h.mu.RLock()
	for sub := range h.topics[ev.Topic] {
		select {
		case sub.events <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		logger.Warn("realtime: evicting slow subscriber on %s", sub.topic)
		h.remove(sub, true)
	}
}

// SubscriberCount returns the number of open subscriptions on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(sub *Subscription, evicted bool) {
	sub.once.Do(func() {
		h.mu.Lock()
		if subs, ok := h.topics[sub.topic]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, sub.topic)
			}
		}
		sub.evicted = evicted
		h.mu.Unlock()

		close(sub.done)
		metrics.RealtimeSubscribers.Dec()
		if evicted {
			metrics.RealtimeEvictionsTotal.Inc()
		}
	})
}
