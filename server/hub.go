package server

import (
	"encoding/json"
	"sync"

	"github.com/robmorgan/tapsync/logger"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is how many payloads may wait for a client before it is considered stale.
const DefaultQueueSize = 64

// Hub fans payloads out to the connected WebSocket clients. Every client has a bounded queue; a
// client that falls behind is dropped rather than slowing the broadcaster down.
type Hub struct {
	lock      sync.Mutex
	clients   map[*client]struct{}
	queueSize int
	log       *logrus.Entry
}

// NewHub creates a Hub giving each client a queue of queueSize payloads. A non-positive size uses
// DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		clients:   map[*client]struct{}{},
		queueSize: queueSize,
		log:       logger.GetProjectLogger().WithField("component", "hub"),
	}
}

// Broadcast queues payload for every client. It never blocks.
func (h *Hub) Broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("Could not encode broadcast")
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// subscribe adds c and queues the payloads returned by snapshot. snapshot runs under the hub lock,
// so every state change it misses is broadcast to c afterwards.
func (h *Hub) subscribe(c *client, snapshot func() ([][]byte, error)) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	initial, err := snapshot()
	if err != nil {
		return err
	}

	h.clients[c] = struct{}{}
	for _, data := range initial {
		h.enqueueLocked(c, data)
	}
	h.log.WithField("clients", len(h.clients)).Debug("Client connected")
	return nil
}

// send queues payload for a single client.
func (h *Hub) send(c *client, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("Could not encode reply")
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.enqueueLocked(c, data)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.removeLocked(c)
}

func (h *Hub) enqueueLocked(c *client, data []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.queue <- data:
	default:
		h.log.Warn("Dropping slow client")
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.queue)
	h.log.WithField("clients", len(h.clients)).Debug("Client disconnected")
}
