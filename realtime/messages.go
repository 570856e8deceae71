package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/yeremiapane/pos-sync/models"
)

// Wire message types. The discriminator is the "type" field of every frame.
const (
	TypeSubmitOrder       = "submit_order"
	TypeOrderCreated      = "order_created"
	TypeOrderStatusUpdate = "order_status_update"
	TypeSyncState         = "sync_state"
	TypeError             = "error"
	TypeRegister          = "register"
	TypeRegistered        = "registered"
	TypePing              = "ping"
	TypePong              = "pong"
)

// Device types a client can register as.
const (
	DevicePOS     = "pos"
	DeviceKDS     = "kds"
	DeviceBDS     = "bds"
	DeviceManager = "manager"
)

// Outbound frames (client -> server).

type SubmitOrderMessage struct {
	Type  string              `json:"type"`
	Order models.KitchenOrder `json:"order"`
}

func NewSubmitOrder(order models.KitchenOrder) SubmitOrderMessage {
	return SubmitOrderMessage{Type: TypeSubmitOrder, Order: order}
}

type StatusUpdateMessage struct {
	Type        string `json:"type"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
	UpdatedBy   string `json:"updatedBy"`
}

func NewStatusUpdate(orderID, orderNumber, status string, version int, updatedBy string) StatusUpdateMessage {
	return StatusUpdateMessage{
		Type:        TypeOrderStatusUpdate,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Status:      status,
		Version:     version,
		UpdatedBy:   updatedBy,
	}
}

type registerMessage struct {
	Type       string `json:"type"`
	DeviceType string `json:"deviceType"`
	TenantID   string `json:"tenantId"`
}

type pingMessage struct {
	Type string `json:"type"`
}

// Inbound frames (server -> client). Decoded into a closed set of variants
// so client and backend schemas cannot drift silently.

// InboundMessage is the tagged union of everything the server may push.
type InboundMessage interface {
	inbound()
}

// OrderCreatedMessage confirms an order and carries the kitchen ticket the
// backend created for it.
type OrderCreatedMessage struct {
	Order        OrderInfo           `json:"order"`
	KitchenOrder models.KitchenOrder `json:"kitchenOrder"`
}

// OrderInfo is the aggregator-side identity of a confirmed order.
type OrderInfo struct {
	AggregatorOrderID string `json:"aggregatorOrderId"`
	OrderNumber       string `json:"orderNumber"`
	Source            string `json:"source"`
	Status            string `json:"status"`
}

// OrderStatusUpdateMessage is a status change from any actor (kitchen
// display, aggregator, another terminal).
type OrderStatusUpdateMessage struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
	UpdatedBy   string `json:"updatedBy"`
}

// SyncStateMessage is the authoritative full snapshot pushed after a
// (re)connect. It replaces local active state, never merges into it.
type SyncStateMessage struct {
	ActiveOrders []models.KitchenOrder `json:"activeOrders"`
	RecentOrders []models.KitchenOrder `json:"recentOrders"`
}

// ErrorMessage is surfaced to the caller for display; it mutates nothing.
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// RegisteredMessage acknowledges the registration handshake.
type RegisteredMessage struct {
	ClientID   string     `json:"clientId"`
	ServerInfo ServerInfo `json:"serverInfo"`
}

// ServerInfo describes the backend session endpoint.
type ServerInfo struct {
	ServerID   string `json:"serverId"`
	TenantID   string `json:"tenantId"`
	ServerTime string `json:"serverTime"`
}

// PongMessage answers a keep-alive ping.
type PongMessage struct{}

func (*OrderCreatedMessage) inbound()      {}
func (*OrderStatusUpdateMessage) inbound() {}
func (*SyncStateMessage) inbound()         {}
func (*ErrorMessage) inbound()             {}
func (*RegisteredMessage) inbound()        {}
func (*PongMessage) inbound()              {}

type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses a server frame into its typed variant. Unknown types
// are an error so schema drift surfaces immediately instead of being
// silently dropped.
func DecodeInbound(data []byte) (InboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	switch env.Type {
	case TypeOrderCreated:
		msg := &OrderCreatedMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeOrderStatusUpdate:
		msg := &OrderStatusUpdateMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSyncState:
		msg := &SyncStateMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeError:
		msg := &ErrorMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeRegistered:
		msg := &RegisteredMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePong:
		return &PongMessage{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
