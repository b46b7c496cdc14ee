package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"taskboard/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	sendBuffer = 64
)

var (
	subscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskboard_event_subscribers",
			Help: "Number of connected change feed subscribers",
		},
	)

	droppedSubscribers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskboard_event_subscribers_dropped_total",
			Help: "Subscribers disconnected because their send buffer was full",
		},
	)
)

// Hub fans events out to websocket subscribers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader
}

type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			// Same policy as the REST API: any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish encodes ev once and queues it for every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error(context.Background(), err, "encode event", "type", ev.Type)
		return
	}

	h.mu.RLock()
	var slow []*subscriber
	for s := range h.subs {
		select {
		case s.send <- payload:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		droppedSubscribers.Inc()
		logger.Warn(context.Background(), "dropping slow subscriber", "remote", s.conn.RemoteAddr().String())
		h.remove(s)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(r.Context(), err, "websocket upgrade")
		return
	}

	s := &subscriber{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	subscribersGauge.Inc()
	logger.Debug(r.Context(), "subscriber connected", "remote", conn.RemoteAddr().String())

	go s.writePump()
	go s.readPump()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		h.remove(s)
	}
}

func (h *Hub) remove(s *subscriber) {
	s.once.Do(func() {
		h.mu.Lock()
		delete(h.subs, s)
		h.mu.Unlock()
		subscribersGauge.Dec()
		close(s.send)
	})
}

// readPump only exists to process control frames and notice disconnects.
func (s *subscriber) readPump() {
	defer s.hub.remove(s)

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
