package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/utils"
)

// Result is the outcome of one bulk pass. Success means zero errors; a
// partially failed pass still updates the watermark, so callers that need
// full completeness must inspect Errors, not just Success.
type Result struct {
	Success     bool            `json:"success"`
	Skipped     bool            `json:"skipped"`
	Errors      []string        `json:"errors"`
	SyncedItems map[string]bool `json:"synced_items"`
	Duration    time.Duration   `json:"duration"`
}

// Progress is emitted after each step as a cumulative weighted percentage.
type Progress struct {
	Step      string `json:"step"`
	Percent   int    `json:"percent"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Failed    bool   `json:"failed"`
}

// SyncStatus answers "when did we last sync and should we again".
type SyncStatus struct {
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	SyncRecommended bool       `json:"sync_recommended"`
	IsSyncing       bool       `json:"is_syncing"`
}

// staleAfter is how old a watermark may get before another pass is
// recommended.
const staleAfter = 24 * time.Hour

// Orchestrator runs the weighted multi-domain bulk synchronization. Steps
// run sequentially so progress stays monotonic; each step has its own
// failure boundary and cannot abort the pass.
type Orchestrator struct {
	db      *gorm.DB
	domains []DomainSyncer

	progressCh chan Progress

	mu      sync.Mutex
	syncing bool
}

func NewOrchestrator(db *gorm.DB, domains []DomainSyncer) *Orchestrator {
	return &Orchestrator{
		db:         db,
		domains:    domains,
		progressCh: make(chan Progress, 16),
	}
}

// Progress is the subscriber stream. Buffered; the orchestrator never
// blocks on a slow consumer.
func (o *Orchestrator) Progress() <-chan Progress {
	return o.progressCh
}

// NeedsInitialSync reports whether this tenant has never been set up on
// this device: no staff, no settings and no floor sections, or no sync
// watermark at all.
func (o *Orchestrator) NeedsInitialSync(tenantID string) (bool, error) {
	if o.db == nil {
		return false, nil
	}

	var watermark models.SyncWatermark
	err := o.db.Where("tenant_id = ?", tenantID).First(&watermark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var staffCount, settingsCount, sectionCount int64
	if err := o.db.Model(&models.StaffUser{}).Where("tenant_id = ?", tenantID).Count(&staffCount).Error; err != nil {
		return false, err
	}
	if err := o.db.Model(&models.RestaurantSettings{}).Where("tenant_id = ?", tenantID).Count(&settingsCount).Error; err != nil {
		return false, err
	}
	if err := o.db.Model(&models.FloorSection{}).Where("tenant_id = ?", tenantID).Count(&sectionCount).Error; err != nil {
		return false, err
	}

	return staffCount == 0 && settingsCount == 0 && sectionCount == 0, nil
}

// PerformInitialSync pulls every domain from the cloud. Re-entrancy
// guarded: a concurrent call fails fast instead of queueing. Without force,
// a tenant that does not need an initial sync is skipped.
func (o *Orchestrator) PerformInitialSync(ctx context.Context, tenantID string, force bool) Result {
	if !force {
		needs, err := o.NeedsInitialSync(tenantID)
		if err != nil {
			return Result{Errors: []string{fmt.Sprintf("sync check: %v", err)}, SyncedItems: map[string]bool{}}
		}
		if !needs {
			return Result{Success: true, Skipped: true, SyncedItems: map[string]bool{}}
		}
	}

	return o.run(ctx, tenantID, func(d DomainSyncer) error {
		return d.SyncFromCloud(ctx, tenantID)
	})
}

// PushAllToCloud is the inverse pass, used for backup and migration. Same
// partial-failure tolerance.
func (o *Orchestrator) PushAllToCloud(ctx context.Context, tenantID string) Result {
	return o.run(ctx, tenantID, func(d DomainSyncer) error {
		return d.SyncToCloud(ctx, tenantID)
	})
}

func (o *Orchestrator) run(ctx context.Context, tenantID string, step func(DomainSyncer) error) Result {
	o.mu.Lock()
	if o.syncing {
		o.mu.Unlock()
		return Result{
			Errors:      []string{"sync already in progress"},
			SyncedItems: map[string]bool{},
		}
	}
	o.syncing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.syncing = false
		o.mu.Unlock()
	}()

	start := time.Now()
	result := Result{SyncedItems: make(map[string]bool, len(o.domains))}

	total := 0
	for _, d := range o.domains {
		total += d.Weight()
	}

	completed := 0
	for i, d := range o.domains {
		err := step(d)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", d.Name(), err))
			result.SyncedItems[d.Name()] = false
			utils.ErrorLogger.Printf("sync step %s failed for tenant %s: %v", d.Name(), tenantID, err)
		} else {
			result.SyncedItems[d.Name()] = true
		}
		completed += d.Weight()
		o.emit(Progress{
			Step:      d.Name(),
			Percent:   completed * 100 / total,
			Completed: i + 1,
			Total:     len(o.domains),
			Failed:    err != nil,
		})
	}

	// The watermark moves even on partial failure; callers inspect Errors
	// for completeness, NeedsInitialSync only answers "ever synced".
	if err := o.touchWatermark(tenantID); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("watermark: %v", err))
	}

	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(start)
	utils.InfoLogger.Printf("sync pass finished for tenant %s: success=%v errors=%d duration=%s",
		tenantID, result.Success, len(result.Errors), result.Duration)
	return result
}

func (o *Orchestrator) touchWatermark(tenantID string) error {
	if o.db == nil {
		return nil
	}
	now := time.Now()
	return o.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sync_at", "updated_at"}),
	}).Create(&models.SyncWatermark{
		TenantID:   tenantID,
		LastSyncAt: now,
		UpdatedAt:  now,
	}).Error
}

// GetSyncStatus returns the watermark and whether a fresh pass is
// recommended.
func (o *Orchestrator) GetSyncStatus(tenantID string) (SyncStatus, error) {
	o.mu.Lock()
	syncing := o.syncing
	o.mu.Unlock()

	status := SyncStatus{IsSyncing: syncing}
	if o.db == nil {
		return status, nil
	}

	var watermark models.SyncWatermark
	err := o.db.Where("tenant_id = ?", tenantID).First(&watermark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		status.SyncRecommended = true
		return status, nil
	}
	if err != nil {
		return status, err
	}

	status.LastSyncAt = &watermark.LastSyncAt
	status.SyncRecommended = time.Since(watermark.LastSyncAt) > staleAfter
	return status, nil
}

func (o *Orchestrator) emit(p Progress) {
	select {
	case o.progressCh <- p:
	default:
	}
}
