// Package broadcast implements the Broadcast Hub (C11): a connection
// registry with topic groups and non-blocking, bounded-queue,
// drop-oldest fan-out, generalized from the teacher's TwinManager
// event-handler fan-out (internal/digitaltwin/twin.go).
package broadcast

import (
	"fmt"
	"log"
	"sync"

	"github.com/savegress/intellimaint/internal/obs"
)

const (
	TopicAll = "all"
)

// DeviceTopic builds the per-device topic name for a device id.
func DeviceTopic(deviceID string) string {
	return "device:" + deviceID
}

// LagEvent records a dropped payload for a connection whose outbound
// queue overflowed.
type LagEvent struct {
	ConnID    string
	Topic     string
	DroppedAt int64
}

// Connection is one subscriber's outbound queue and topic membership.
type Connection struct {
	ID       string
	outbound chan any
	mu       sync.Mutex
	topics   map[string]bool
	lagCount int64
}

func newConnection(id string, bufferSize int) *Connection {
	return &Connection{
		ID:       id,
		outbound: make(chan any, bufferSize),
		topics:   make(map[string]bool),
	}
}

// Outbound returns the channel to drain delivered payloads from.
func (c *Connection) Outbound() <-chan any {
	return c.outbound
}

// LagCount returns how many payloads have been dropped for this connection.
func (c *Connection) LagCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lagCount
}

// Hub is the broadcast registry. Publish never blocks on a slow
// subscriber: a full queue drops its oldest entry and a LagEvent is
// recorded for that connection.
type Hub struct {
	mu          sync.Mutex
	conns       map[string]*Connection
	bufferSize  int
	nextID      int64
	onLag       func(LagEvent)
	lastTsByKey map[string]int64
	metrics     *obs.Metrics
}

// Config controls the hub's per-connection outbound queue depth.
type Config struct {
	BufferSize int
	Metrics    *obs.Metrics
}

// NewHub creates a Hub with the given per-connection buffer size.
func NewHub(cfg Config) *Hub {
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		conns:       make(map[string]*Connection),
		bufferSize:  bufSize,
		lastTsByKey: make(map[string]int64),
		metrics:     cfg.Metrics,
	}
}

// OnLag registers a callback invoked whenever a connection's queue
// overflows and drops a payload.
func (h *Hub) OnLag(cb func(LagEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLag = cb
}

// OnConnect registers a new connection and returns its id.
func (h *Hub) OnConnect() *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := fmt.Sprintf("conn-%d", h.nextID)
	conn := newConnection(id, h.bufferSize)
	h.conns[id] = conn
	h.metrics.IncConnections()
	return conn
}

// OnDisconnect removes a connection from the registry.
func (h *Hub) OnDisconnect(id string) {
	h.mu.Lock()
	_, existed := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if existed {
		h.metrics.DecConnections()
	}
}

// Subscribe adds a connection to a topic group.
func (h *Hub) Subscribe(id, topic string) {
	h.mu.Lock()
	conn := h.conns[id]
	h.mu.Unlock()
	if conn == nil {
		return
	}
	conn.mu.Lock()
	conn.topics[topic] = true
	conn.mu.Unlock()
}

// Unsubscribe removes a connection from a topic group.
func (h *Hub) Unsubscribe(id, topic string) {
	h.mu.Lock()
	conn := h.conns[id]
	h.mu.Unlock()
	if conn == nil {
		return
	}
	conn.mu.Lock()
	delete(conn.topics, topic)
	conn.mu.Unlock()
}

// Publish delivers payload to every connection subscribed to topic.
// The subscriber list is copied under the hub lock, then delivery
// happens lock-free so one slow subscriber cannot stall others.
func (h *Hub) Publish(topic string, payload any) {
	h.mu.Lock()
	subscribers := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		c.mu.Lock()
		subscribed := c.topics[topic]
		c.mu.Unlock()
		if subscribed {
			subscribers = append(subscribers, c)
		}
	}
	onLag := h.onLag
	metrics := h.metrics
	h.mu.Unlock()

	for _, conn := range subscribers {
		deliver(conn, topic, payload, onLag, metrics)
	}
}

func deliver(conn *Connection, topic string, payload any, onLag func(LagEvent), metrics *obs.Metrics) {
	select {
	case conn.outbound <- payload:
		return
	default:
	}

	// queue full: drop the oldest, then enqueue the new payload.
	select {
	case <-conn.outbound:
	default:
	}
	select {
	case conn.outbound <- payload:
	default:
	}

	conn.mu.Lock()
	conn.lagCount++
	conn.mu.Unlock()
	metrics.ObserveLag(topic)

	if onLag != nil {
		onLag(LagEvent{ConnID: conn.ID, Topic: topic})
	} else {
		log.Printf("broadcast: dropped payload for connection %s on topic %s", conn.ID, topic)
	}
}

// PublishTelemetryPoint publishes a telemetry sample to both the
// global `all` topic and the per-device topic, enforcing that
// published Ts values are monotone per (DeviceId, TagId) by tracking
// the last published Ts for that key and skipping stale or duplicate
// samples.
func (h *Hub) PublishTelemetryPoint(deviceID, tagID string, ts int64, payload any) bool {
	key := deviceID + "|" + tagID
	h.mu.Lock()
	last, seen := h.lastTsByKey[key]
	if seen && ts <= last {
		h.mu.Unlock()
		return false
	}
	h.lastTsByKey[key] = ts
	h.mu.Unlock()

	h.Publish(TopicAll, payload)
	h.Publish(DeviceTopic(deviceID), payload)
	return true
}
