package stores

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/utils"
)

// KitchenOrderStore persists kitchen tickets with conflict-aware writes.
// Multiple terminals may write the same ticket concurrently through a shared
// backend; the version guard in Save is what makes those races converge.
// A nil DB handle degrades every operation to a no-op.
type KitchenOrderStore struct {
	db       *gorm.DB
	tenantID string
}

func NewKitchenOrderStore(db *gorm.DB, tenantID string) *KitchenOrderStore {
	return &KitchenOrderStore{db: db, tenantID: tenantID}
}

// Save upserts a ticket by ID with last-writer-wins by version: an incoming
// version less than or equal to the stored version is rejected as stale.
// The returned bool reports whether the write was applied. A stale rejection
// is not an error; it is expected convergence behavior.
func (s *KitchenOrderStore) Save(order *models.KitchenOrder) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	order.TenantID = s.tenantID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Version < 1 {
		order.Version = 1
	}

	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.KitchenOrder
		err := tx.Where("tenant_id = ? AND id = ?", s.tenantID, order.ID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(order).Error; err != nil {
				return err
			}
			applied = true
			return nil
		}
		if err != nil {
			return err
		}
		if order.Version <= existing.Version {
			// Stale write; a newer update already landed.
			return nil
		}
		if err := tx.Model(&models.KitchenOrder{}).
			Where("tenant_id = ? AND id = ?", s.tenantID, order.ID).
			Select("*").Omit("created_at", "tenant_id", "id").
			Updates(order).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		utils.ErrorLogger.Printf("kitchen order save failed for %s: %v", order.ID, err)
		return false, err
	}
	return applied, nil
}

// Get returns a ticket by ID, or nil when none exists.
func (s *KitchenOrderStore) Get(orderID string) (*models.KitchenOrder, error) {
	if s.db == nil {
		return nil, nil
	}
	var order models.KitchenOrder
	err := s.db.Where("tenant_id = ? AND id = ?", s.tenantID, orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByOrderNumber looks a ticket up by its human-facing order number, the
// key shared with the mapping store.
func (s *KitchenOrderStore) GetByOrderNumber(orderNumber string) (*models.KitchenOrder, error) {
	if s.db == nil {
		return nil, nil
	}
	var order models.KitchenOrder
	err := s.db.Where("tenant_id = ? AND order_number = ?", s.tenantID, orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetActive returns all tickets that have not completed, newest first.
func (s *KitchenOrderStore) GetActive() ([]models.KitchenOrder, error) {
	if s.db == nil {
		return nil, nil
	}
	var orders []models.KitchenOrder
	err := s.db.
		Where("tenant_id = ? AND status != ?", s.tenantID, models.KitchenStatusCompleted).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetCompleted returns the most recent completed tickets, for billing-status
// lookups and reprints.
func (s *KitchenOrderStore) GetCompleted(limit int) ([]models.KitchenOrder, error) {
	if s.db == nil {
		return nil, nil
	}
	var orders []models.KitchenOrder
	err := s.db.
		Where("tenant_id = ? AND status = ?", s.tenantID, models.KitchenStatusCompleted).
		Order("completed_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// StatusTimes carries the optional milestone timestamps for UpdateStatus.
type StatusTimes struct {
	ReadyAt     *time.Time
	CompletedAt *time.Time
}

// UpdateStatus writes a status transition plus any supplied milestones and
// bumps the version. Transition direction is validated at the coordinator
// layer, not here.
func (s *KitchenOrderStore) UpdateStatus(orderID, status string, times StatusTimes) error {
	if s.db == nil {
		return nil
	}
	updates := map[string]interface{}{
		"status":  status,
		"version": gorm.Expr("version + 1"),
	}
	if times.ReadyAt != nil {
		updates["ready_at"] = *times.ReadyAt
	}
	if times.CompletedAt != nil {
		updates["completed_at"] = *times.CompletedAt
	}

	err := s.db.Model(&models.KitchenOrder{}).
		Where("tenant_id = ? AND id = ?", s.tenantID, orderID).
		Updates(updates).Error
	if err != nil {
		utils.ErrorLogger.Printf("kitchen order status update failed for %s: %v", orderID, err)
		return err
	}
	return nil
}

// UpdateItemStatus rewrites the status of one line item. A missing order is
// a silent no-op: it may have been purged already, or belong to a device
// that has not synced yet.
func (s *KitchenOrderStore) UpdateItemStatus(orderID, itemID, status string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var order models.KitchenOrder
		err := tx.Where("tenant_id = ? AND id = ?", s.tenantID, orderID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		changed := false
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				order.Items[i].Status = status
				changed = true
			}
		}
		if !changed {
			return nil
		}

		return tx.Model(&models.KitchenOrder{}).
			Where("tenant_id = ? AND id = ?", s.tenantID, orderID).
			Updates(map[string]interface{}{
				"items":   order.Items,
				"version": gorm.Expr("version + 1"),
			}).Error
	})
}

// ApplySnapshot replaces the local synced view with the authoritative
// backend state: snapshot orders are written unconditionally (no version
// guard, the snapshot is authoritative) and synced active orders absent
// from the snapshot are removed. Unsynced local-only orders are preserved
// for reconciliation.
func (s *KitchenOrderStore) ApplySnapshot(active, recent []models.KitchenOrder) error {
	if s.db == nil {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(active))
		for _, o := range active {
			keep = append(keep, o.ID)
		}

		q := tx.Where("tenant_id = ? AND status != ? AND synced = ?",
			s.tenantID, models.KitchenStatusCompleted, true)
		if len(keep) > 0 {
			q = q.Where("id NOT IN ?", keep)
		}
		if err := q.Delete(&models.KitchenOrder{}).Error; err != nil {
			return err
		}

		for _, o := range append(append([]models.KitchenOrder{}, active...), recent...) {
			o.TenantID = s.tenantID
			o.Synced = true
			if o.CreatedAt.IsZero() {
				o.CreatedAt = time.Now()
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&o).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkSynced flips the unsynced flag after a queued local order reaches the
// backend.
func (s *KitchenOrderStore) MarkSynced(orderID string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Model(&models.KitchenOrder{}).
		Where("tenant_id = ? AND id = ?", s.tenantID, orderID).
		Update("synced", true).Error
}

// GetUnsynced returns local-only tickets awaiting reconciliation, oldest
// first so replay preserves original submission order.
func (s *KitchenOrderStore) GetUnsynced() ([]models.KitchenOrder, error) {
	if s.db == nil {
		return nil, nil
	}
	var orders []models.KitchenOrder
	err := s.db.
		Where("tenant_id = ? AND synced = ?", s.tenantID, false).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// DeleteOrder removes a ticket. Destructive; used for testing and reset.
func (s *KitchenOrderStore) DeleteOrder(orderID string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Where("tenant_id = ? AND id = ?", s.tenantID, orderID).
		Delete(&models.KitchenOrder{}).Error
}

// ClearAllOrders removes every ticket for the tenant. Destructive.
func (s *KitchenOrderStore) ClearAllOrders() error {
	if s.db == nil {
		return nil
	}
	return s.db.Where("tenant_id = ?", s.tenantID).
		Delete(&models.KitchenOrder{}).Error
}

// ClearCompletedOrdersForTable removes completed tickets for one table after
// billing.
func (s *KitchenOrderStore) ClearCompletedOrdersForTable(tableNumber string) error {
	if s.db == nil {
		return nil
	}
	return s.db.
		Where("tenant_id = ? AND table_number = ? AND status = ?",
			s.tenantID, tableNumber, models.KitchenStatusCompleted).
		Delete(&models.KitchenOrder{}).Error
}

// CleanupOldOrders purges tickets created before the horizon and returns
// the number removed.
func (s *KitchenOrderStore) CleanupOldOrders(daysOld int) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)
	res := s.db.
		Where("tenant_id = ? AND created_at < ?", s.tenantID, cutoff).
		Delete(&models.KitchenOrder{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
