// Package broadcast fans table and tournament events out to subscribers.
// Delivery per topic is in publish order and at-most-once: a subscriber whose
// Deliver fails is dropped, never retried.
package broadcast

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Subscriber is a sink for events, typically a websocket connection.
// Deliver must not block; buffered sends that report failure when the buffer
// is full satisfy this.
type Subscriber interface {
	ID() string
	Deliver(event any) error
}

// Hub routes events to the subscribers of each topic. Topics are table or
// tournament ids.
type Hub struct {
	logger *log.Logger

	mu     sync.Mutex
	topics map[string]map[string]Subscriber
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger.WithPrefix("broadcast"),
		topics: make(map[string]map[string]Subscriber),
	}
}

// Subscribe adds the subscriber to a topic. If snapshot is non-nil its result
// is delivered immediately, before any subsequent publish, so a late joiner
// starts from current state. Subscribing twice with the same id replaces the
// earlier subscription.
func (h *Hub) Subscribe(topic string, sub Subscriber, snapshot func(viewerID string) any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		h.topics[topic] = subs
	}
	subs[sub.ID()] = sub

	if snapshot != nil {
		if err := sub.Deliver(snapshot(sub.ID())); err != nil {
			h.logger.Warn("dropping subscriber on snapshot delivery failure",
				"topic", topic, "subscriber", sub.ID(), "error", err)
			delete(subs, sub.ID())
		}
	}
}

// Unsubscribe removes a subscriber from one topic.
func (h *Hub) Unsubscribe(topic, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// UnsubscribeAll removes a subscriber from every topic. Called when a
// connection closes.
func (h *Hub) UnsubscribeAll(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, subs := range h.topics {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish delivers the same event to every subscriber of the topic.
func (h *Hub) Publish(topic string, event any) {
	h.PublishEach(topic, func(string) any { return event })
}

// PublishEach delivers a per-viewer event built by fn, so hole cards can be
// shown only to their owner. fn runs once per subscriber under the hub lock.
func (h *Hub) PublishEach(topic string, build func(viewerID string) any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	for id, sub := range subs {
		if err := sub.Deliver(build(id)); err != nil {
			h.logger.Warn("dropping subscriber on delivery failure",
				"topic", topic, "subscriber", id, "error", err)
			delete(subs, id)
		}
	}
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Subscribers returns the subscriber count for a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// CloseTopic removes every subscriber of a topic, e.g. when a table breaks.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, topic)
}
