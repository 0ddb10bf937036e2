// Package observer streams keeper events to loopback WebSocket clients.
// The feed is read-only and advisory: subscribers that fall behind lose
// frames, never the other way around.
package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"wardstone.gg/internal/observerproto"
)

const subscriberBuffer = 256

type Hub struct {
	log *log.Logger

	mu   sync.Mutex
	subs map[string]chan []byte

	nextID  atomic.Uint64
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log:  logger,
		subs: make(map[string]chan []byte),
	}
}

// Publish fans an event out to every subscriber. It never blocks: a full
// subscriber buffer drops the frame for that subscriber only.
func (h *Hub) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		if h.log != nil {
			h.log.Printf("observer: drop unmarshalable event: %v", err)
		}
		return
	}
	frame, err := json.Marshal(observerproto.Frame{
		Seq:  h.seq.Add(1),
		At:   time.Now().UTC().Format(time.RFC3339Nano),
		Data: data,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- frame:
		default:
			h.dropped.Add(1)
			if h.log != nil {
				h.log.Printf("observer: subscriber %s lagging, frame dropped", id)
			}
		}
	}
}

func (h *Hub) subscribe() (string, chan []byte) {
	id := fmt.Sprintf("O%d", h.nextID.Add(1))
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the total frames lost to slow subscribers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
