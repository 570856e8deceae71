package models

import "time"

// Order sources. Aggregator platforms originate orders outside the POS.
const (
	SourcePlatformA = "platform_a"
	SourcePlatformB = "platform_b"
	SourceWebsite   = "website"
	SourcePOS       = "pos"
)

// Aggregator order lifecycle statuses tracked on the mapping.
const (
	MappingStatusReceived  = "received"
	MappingStatusAccepted  = "accepted"
	MappingStatusPreparing = "preparing"
	MappingStatusReady     = "ready"
	MappingStatusCompleted = "completed"
	MappingStatusRejected  = "rejected"
	MappingStatusCancelled = "cancelled"
	MappingStatusDelivered = "delivered"
)

// TerminalMappingStatuses are statuses excluded from GetActive results.
var TerminalMappingStatuses = []string{
	MappingStatusCompleted,
	MappingStatusRejected,
	MappingStatusCancelled,
	MappingStatusDelivered,
}

// OrderMapping relates an aggregator-originated order to the kitchen ticket
// created for it. One row per aggregator order.
type OrderMapping struct {
	AggregatorOrderID string     `gorm:"primaryKey;column:aggregator_order_id" json:"aggregator_order_id"`
	TenantID          string     `gorm:"index;not null" json:"tenant_id"`
	OrderNumber       string     `gorm:"index;not null" json:"order_number"`
	KitchenOrderID    *string    `gorm:"index" json:"kitchen_order_id,omitempty"`
	Source            string     `gorm:"type:varchar(32);not null" json:"source"`
	CurrentStatus     string     `gorm:"type:varchar(32);not null;default:'received'" json:"current_status"`
	KDSStatus         *string    `gorm:"type:varchar(32);column:kds_status" json:"kds_status,omitempty"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	ReadyAt           *time.Time `json:"ready_at,omitempty"`
}

func (OrderMapping) TableName() string {
	return "order_mappings"
}

// IsTerminal reports whether the mapping has reached a final status.
func (m *OrderMapping) IsTerminal() bool {
	for _, s := range TerminalMappingStatuses {
		if m.CurrentStatus == s {
			return true
		}
	}
	return false
}
