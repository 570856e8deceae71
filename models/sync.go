package models

import "time"

// SyncWatermark records the last successful (or partially successful) bulk
// sync pass per tenant. One row per tenant.
type SyncWatermark struct {
	TenantID   string    `gorm:"primaryKey" json:"tenant_id"`
	LastSyncAt time.Time `gorm:"not null" json:"last_sync_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (SyncWatermark) TableName() string {
	return "sync_watermarks"
}

// SyncState is the in-memory, per-session view of synchronization health.
// It is never persisted beyond the watermark table.
type SyncState struct {
	LastSyncTimestamp    *time.Time `json:"last_sync_timestamp,omitempty"`
	IsSyncing            bool       `json:"is_syncing"`
	QueuedOperationCount int        `json:"queued_operation_count"`
}
