// Package monitor broadcasts reporter snapshots to connected WebSocket
// subscribers, for a live dashboard watching the forwarder run.
package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/agsys/lora-pktfwd/internal/stats"
	"github.com/gorilla/websocket"
)

// Report is the JSON envelope broadcast to every subscriber once per
// reporter interval.
type Report struct {
	Timestamp int64                    `json:"timestamp"`
	Up        stats.UpstreamCounters   `json:"up"`
	Down      stats.DownstreamCounters `json:"down"`
	Ratios    stats.Ratios             `json:"ratios"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub accepts WebSocket subscribers and fans each broadcast out to
// every connected client.
type Hub struct {
	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*subscriber]struct{})}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection as a subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sub)
	go h.readPump(sub)
}

// readPump drains and discards inbound frames so the connection's
// control messages (close, ping/pong) are still processed; this hub
// has no client->server protocol.
func (h *Hub) readPump(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.remove(sub)
	defer sub.conn.Close()

	for {
		select {
		case msg, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
}

// Broadcast marshals report and enqueues it on every subscriber's send
// channel, dropping it for any subscriber whose queue is full rather
// than blocking the reporter.
func (h *Hub) Broadcast(report Report) {
	data, err := json.Marshal(report)
	if err != nil {
		log.Printf("monitor: failed to marshal report: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- data:
		default:
			log.Printf("monitor: subscriber send queue full, dropping report")
		}
	}
}
