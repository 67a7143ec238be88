package broadcast

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jpalmerr/votewatch/internal/metrics"
	"github.com/jpalmerr/votewatch/internal/store"
)

const defaultQueueSize = 64

// History is the part of the history buffer the Hub reads and appends to.
type History interface {
	Append(s store.Snapshot)
	Snapshot() []store.Snapshot
}

// Subscriber is one registered observer.
//
// Its queue is closed when the subscriber is unregistered or the Hub is
// closed. Transports read from [Subscriber.Events] until it is closed.
type Subscriber struct {
	id        string
	transport string
	events    chan []byte
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// Transport returns the transport name given at registration ("sse", "ws").
func (s *Subscriber) Transport() string {
	return s.transport
}

// Events returns the subscriber's queue of encoded events.
func (s *Subscriber) Events() <-chan []byte {
	return s.events
}

// Hub is the registry of connected observers.
//
// Registration, unregistration, and fan-out are serialized by a single lock,
// so every observer sees a consistent cut: each published snapshot reaches an
// observer exactly once, either inside its "init" replay or as an "update".
type Hub struct {
	history   History
	logger    *slog.Logger
	queueSize int

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// Option configures a [Hub].
type Option func(*Hub)

// WithQueueSize sets how many events may wait for a slow observer before
// further events are dropped for it. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// NewHub creates a [Hub] that replays history to new observers.
func NewHub(history History, logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		history:   history,
		logger:    logger,
		queueSize: defaultQueueSize,
		subs:      make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds an observer and queues its "init" event.
//
// The init payload is the history as of registration; any snapshot published
// later arrives as an "update" queued behind it. Returns an error if the Hub
// is closed or the history cannot be encoded.
func (h *Hub) Register(transport string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub is closed")
	}

	data, err := InitEvent(h.history.Snapshot()).Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode init event: %w", err)
	}

	sub := &Subscriber{
		id:        uuid.NewString(),
		transport: transport,
		events:    make(chan []byte, h.queueSize),
	}
	// queue is empty, so the init event always fits
	sub.events <- data
	h.subs[sub] = struct{}{}

	metrics.ObserversConnected.WithLabelValues(transport).Inc()
	h.logger.Debug("observer registered", "observer_id", sub.id, "transport", transport)
	return sub, nil
}

// Unregister removes an observer and closes its queue.
//
// Safe to call multiple times or after [Hub.Close].
func (h *Hub) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	h.remove(sub)
	h.logger.Debug("observer unregistered", "observer_id", sub.id, "transport", sub.transport)
}

// Broadcast queues one "update" event for s on every registered observer.
//
// Observers registered at call entry receive it exactly once. A full queue
// drops the event for that observer only.
func (h *Hub) Broadcast(s store.Snapshot) {
	data, ok := h.encodeUpdate(s)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanOut(data)
}

// Publish appends s to the history and broadcasts it as one step, so an
// observer registering concurrently sees s either in its init replay or as
// an update, never both and never neither.
func (h *Hub) Publish(s store.Snapshot) {
	data, ok := h.encodeUpdate(s)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history.Append(s)
	if ok {
		h.fanOut(data)
	}
}

// Count returns the number of registered observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close unregisters every observer and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		h.remove(sub)
	}
}

func (h *Hub) encodeUpdate(s store.Snapshot) ([]byte, bool) {
	data, err := UpdateEvent(s).Encode()
	if err != nil {
		h.logger.Error("failed to encode update event", "timestamp", s.Timestamp, "error", err)
		return nil, false
	}
	return data, true
}

// fanOut must be called with h.mu held.
func (h *Hub) fanOut(data []byte) {
	metrics.BroadcastsTotal.Inc()
	for sub := range h.subs {
		select {
		case sub.events <- data:
		default:
			// slow observer; the transport decides when it is gone
			metrics.BroadcastDroppedTotal.Inc()
			h.logger.Warn("observer queue full, dropping update",
				"observer_id", sub.id,
				"transport", sub.transport,
			)
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscriber) {
	delete(h.subs, sub)
	close(sub.events)
	metrics.ObserversConnected.WithLabelValues(sub.transport).Dec()
}
