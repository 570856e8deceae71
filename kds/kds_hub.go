package kds

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/utils"
)

// Event types pushed to locally connected display sockets.
const (
	EventOrderUpdate      = "order_update"
	EventSnapshot         = "snapshot"
	EventConnectionStatus = "connection_status"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub fans engine events out to the KDS/BDS display screens connected to
// this terminal. It is a local relay only; cross-device synchronization
// goes through the realtime client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]string // conn -> device type
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
	}
}

// RegisterClient adds a display connection with its device type.
func (h *Hub) RegisterClient(conn *websocket.Conn, deviceType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = deviceType
}

// UnregisterClient removes and closes a display connection.
func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// ClientCount reports the number of connected displays.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastOrderUpdate pushes one changed ticket to every display.
func (h *Hub) BroadcastOrderUpdate(order models.KitchenOrder) {
	h.broadcast(Message{
		Event: EventOrderUpdate,
		Data:  order,
	})
}

// BroadcastSnapshot pushes the full active view, sent after the engine
// repairs state from a backend snapshot.
func (h *Hub) BroadcastSnapshot(orders []models.KitchenOrder) {
	h.broadcast(Message{
		Event: EventSnapshot,
		Data:  orders,
	})
}

// BroadcastConnectionStatus relays the realtime connection indicator.
func (h *Hub) BroadcastConnectionStatus(status interface{}) {
	h.broadcast(Message{
		Event: EventConnectionStatus,
		Data:  status,
	})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("hub message marshal failed: %v", err)
		return
	}

	for conn, deviceType := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("hub send to %s display failed: %v", deviceType, err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}
