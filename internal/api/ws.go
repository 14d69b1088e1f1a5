package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/board"
	"github.com/hackgods/clinic-status-board/internal/clinic"
)

const (
	EventSnapshot = "snapshot"
	EventAlarm    = "alarm"

	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is one message pushed to a viewer.
type Event struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Board     *BoardResponse     `json:"board,omitempty"`
	Alarm     *clinic.Completion `json:"alarm,omitempty"`
}

// Client is one connected viewer.
type Client struct {
	ID   string
	Send chan []byte
}

// Hub fans board snapshots and alarms out to every connected viewer. A viewer too slow to
// drain its buffer misses messages rather than blocking the board.
type Hub struct {
	store   *board.Store
	log     *zap.Logger
	viewers prometheus.Gauge

	mu  sync.RWMutex
	all map[*Client]struct{}
}

func NewHub(store *board.Store, log *zap.Logger, viewers prometheus.Gauge) *Hub {
	return &Hub{
		store:   store,
		log:     log,
		viewers: viewers,
		all:     make(map[*Client]struct{}),
	}
}

// Attach starts broadcasting every snapshot change of the store. The returned func detaches.
func (h *Hub) Attach() func() {
	return h.store.Subscribe(func(s clinic.Snapshot) {
		h.BroadcastAll(h.snapshotEvent(s))
	})
}

func (h *Hub) snapshotEvent(s clinic.Snapshot) Event {
	return Event{
		Type:      EventSnapshot,
		Timestamp: time.Now().UTC(),
		Board: &BoardResponse{
			Loading:  h.store.Loading(),
			Degraded: h.store.Degraded(),
			Snapshot: s,
		},
	}
}

// Ring broadcasts a completion so every viewer can sound its own alert.
func (h *Hub) Ring(c clinic.Completion) {
	h.BroadcastAll(Event{Type: EventAlarm, Timestamp: time.Now().UTC(), Alarm: &c})
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.all[client] = struct{}{}
	h.mu.Unlock()
	h.viewers.Inc()
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	delete(h.all, client)
	close(client.Send)
	h.viewers.Dec()
}

func (h *Hub) BroadcastAll(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("websocket: failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.all {
		select {
		case client.Send <- data:
		default:
			h.log.Debug("websocket: viewer buffer full, dropping event", zap.String("client_id", client.ID))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // wall displays load the board from any host on the clinic LAN
	},
}

// ServeHTTP upgrades a viewer connection and sends it the current board straight away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, sendBuffer),
	}
	h.Register(client)

	if data, err := json.Marshal(h.snapshotEvent(h.store.Snapshot())); err == nil {
		select {
		case client.Send <- data:
		default:
		}
	}

	go h.writePump(client, ws)
	go h.readPump(client, ws)
}

// readPump only watches for the viewer going away; viewers never send commands here.
func (h *Hub) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		h.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client, ws *websocket.Conn) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
