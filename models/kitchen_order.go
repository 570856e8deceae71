package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Kitchen order statuses. Transitions are forward-only:
// pending -> in_progress -> ready -> completed.
const (
	KitchenStatusPending    = "pending"
	KitchenStatusInProgress = "in_progress"
	KitchenStatusReady      = "ready"
	KitchenStatusCompleted  = "completed"
)

// Order types.
const (
	OrderTypeDineIn     = "dine_in"
	OrderTypeTakeout    = "takeout"
	OrderTypeDelivery   = "delivery"
	OrderTypeAggregator = "aggregator"
)

// kitchenStatusRank orders statuses for transition checks. Unknown statuses
// rank as -1 and are rejected by StatusRank comparisons.
var kitchenStatusRank = map[string]int{
	KitchenStatusPending:    0,
	KitchenStatusInProgress: 1,
	KitchenStatusReady:      2,
	KitchenStatusCompleted:  3,
}

// StatusRank returns the position of a kitchen status in the lifecycle,
// or -1 for an unknown status.
func StatusRank(status string) int {
	if r, ok := kitchenStatusRank[status]; ok {
		return r
	}
	return -1
}

// KitchenOrderItem is a single line on a kitchen ticket.
type KitchenOrderItem struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
	Status    string   `json:"status"`
	Station   string   `json:"station,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// KitchenOrderItems is stored as a JSON column so item order is preserved
// exactly as submitted.
type KitchenOrderItems []KitchenOrderItem

func (items KitchenOrderItems) Value() (driver.Value, error) {
	if items == nil {
		items = KitchenOrderItems{}
	}
	return json.Marshal(items)
}

func (items *KitchenOrderItems) Scan(value interface{}) error {
	if value == nil {
		*items = KitchenOrderItems{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for KitchenOrderItems")
	}
	if len(data) == 0 {
		*items = KitchenOrderItems{}
		return nil
	}
	return json.Unmarshal(data, items)
}

// KitchenOrder is one kitchen ticket, independent of where the order came
// from. Version is the optimistic-concurrency counter: every accepted write
// increases it, and stale writes (version <= stored) are rejected.
type KitchenOrder struct {
	ID                string            `gorm:"primaryKey" json:"id"`
	TenantID          string            `gorm:"index;not null" json:"tenant_id"`
	OrderNumber       string            `gorm:"index;not null" json:"order_number"`
	TableNumber       *string           `json:"table_number,omitempty"`
	OrderType         string            `gorm:"type:varchar(20);not null" json:"order_type"`
	Source            string            `gorm:"type:varchar(32);not null" json:"source"`
	Status            string            `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Items             KitchenOrderItems `gorm:"type:text" json:"items"`
	IsRunningOrder    bool              `json:"is_running_order"`
	KOTSequence       *int              `gorm:"column:kot_sequence" json:"kot_sequence,omitempty"`
	Version           int               `gorm:"not null;default:1" json:"version"`
	Synced            bool              `gorm:"not null" json:"synced"`
	IsUrgent          bool              `json:"is_urgent"`
	Priority          int               `json:"priority"`
	EstimatedPrepTime int               `json:"estimated_prep_time"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	AcceptedAt        *time.Time        `json:"accepted_at,omitempty"`
	ReadyAt           *time.Time        `json:"ready_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

func (KitchenOrder) TableName() string {
	return "kds_orders"
}

// ElapsedMinutes is derived from CreatedAt, not persisted.
func (o *KitchenOrder) ElapsedMinutes() int {
	return int(time.Since(o.CreatedAt).Minutes())
}

// ShouldBeUrgent reports whether the ticket has been open longer than the
// given threshold without reaching a terminal status.
func (o *KitchenOrder) ShouldBeUrgent(thresholdMinutes int) bool {
	if o.Status == KitchenStatusCompleted {
		return false
	}
	return o.ElapsedMinutes() >= thresholdMinutes
}
