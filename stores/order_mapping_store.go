package stores

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/utils"
)

// OrderMappingStore persists the relationship between an aggregator order
// and the kitchen ticket created for it. It performs no network I/O. When
// constructed with a nil DB handle it degrades to a no-op so the order flow
// keeps working in web-only deployments without local storage.
type OrderMappingStore struct {
	db       *gorm.DB
	tenantID string
}

func NewOrderMappingStore(db *gorm.DB, tenantID string) *OrderMappingStore {
	return &OrderMappingStore{db: db, tenantID: tenantID}
}

// Save upserts a mapping keyed by aggregator order ID. On conflict the
// status, linkage and milestone fields are overwritten; created_at and
// source never are.
func (s *OrderMappingStore) Save(mapping *models.OrderMapping) error {
	if s.db == nil {
		return nil
	}
	mapping.TenantID = s.tenantID
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "aggregator_order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kitchen_order_id", "current_status", "kds_status",
			"accepted_at", "ready_at",
		}),
	}).Create(mapping).Error
	if err != nil {
		utils.ErrorLogger.Printf("order mapping save failed for %s: %v", mapping.AggregatorOrderID, err)
		return err
	}
	return nil
}

// Get returns the mapping for an aggregator order, or nil when none exists.
func (s *OrderMappingStore) Get(aggregatorOrderID string) (*models.OrderMapping, error) {
	if s.db == nil {
		return nil, nil
	}
	var mapping models.OrderMapping
	err := s.db.
		Where("tenant_id = ? AND aggregator_order_id = ?", s.tenantID, aggregatorOrderID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// GetByKitchenOrderID returns the mapping linked to a kitchen ticket, or nil.
func (s *OrderMappingStore) GetByKitchenOrderID(kitchenOrderID string) (*models.OrderMapping, error) {
	if s.db == nil {
		return nil, nil
	}
	var mapping models.OrderMapping
	err := s.db.
		Where("tenant_id = ? AND kitchen_order_id = ?", s.tenantID, kitchenOrderID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// GetByOrderNumber returns the mapping carrying the shared human-facing
// order number, or nil. Status pushes are keyed by order number because the
// two stores use different primary keys.
func (s *OrderMappingStore) GetByOrderNumber(orderNumber string) (*models.OrderMapping, error) {
	if s.db == nil {
		return nil, nil
	}
	var mapping models.OrderMapping
	err := s.db.
		Where("tenant_id = ? AND order_number = ?", s.tenantID, orderNumber).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// GetActive returns all mappings that have not reached a terminal status,
// newest first. Used to rebuild in-memory state after a restart.
func (s *OrderMappingStore) GetActive() ([]models.OrderMapping, error) {
	if s.db == nil {
		return nil, nil
	}
	var mappings []models.OrderMapping
	err := s.db.
		Where("tenant_id = ? AND current_status NOT IN ?", s.tenantID, models.TerminalMappingStatuses).
		Order("created_at DESC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

// StatusFields are the optional fields UpdateStatus may set alongside the
// status. Nil fields are left untouched.
type StatusFields struct {
	KDSStatus  *string
	AcceptedAt *time.Time
	ReadyAt    *time.Time
}

// UpdateStatus writes a new lifecycle status plus any supplied optional
// fields. Missing rows are a silent no-op.
func (s *OrderMappingStore) UpdateStatus(aggregatorOrderID, newStatus string, fields StatusFields) error {
	if s.db == nil {
		return nil
	}
	updates := map[string]interface{}{"current_status": newStatus}
	if fields.KDSStatus != nil {
		updates["kds_status"] = *fields.KDSStatus
	}
	if fields.AcceptedAt != nil {
		updates["accepted_at"] = *fields.AcceptedAt
	}
	if fields.ReadyAt != nil {
		updates["ready_at"] = *fields.ReadyAt
	}

	err := s.db.Model(&models.OrderMapping{}).
		Where("tenant_id = ? AND aggregator_order_id = ?", s.tenantID, aggregatorOrderID).
		Updates(updates).Error
	if err != nil {
		utils.ErrorLogger.Printf("order mapping status update failed for %s: %v", aggregatorOrderID, err)
		return err
	}
	return nil
}

var ErrAlreadyLinked = errors.New("order mapping already linked to a kitchen order")

// LinkKitchenOrder sets the kitchen ticket reference exactly once. A second
// link attempt for the same mapping is rejected.
func (s *OrderMappingStore) LinkKitchenOrder(aggregatorOrderID, kitchenOrderID string) error {
	if s.db == nil {
		return nil
	}
	res := s.db.Model(&models.OrderMapping{}).
		Where("tenant_id = ? AND aggregator_order_id = ? AND kitchen_order_id IS NULL", s.tenantID, aggregatorOrderID).
		Update("kitchen_order_id", kitchenOrderID)
	if res.Error != nil {
		utils.ErrorLogger.Printf("order mapping link failed for %s: %v", aggregatorOrderID, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := s.Get(aggregatorOrderID)
		if err != nil {
			return err
		}
		if existing != nil && existing.KitchenOrderID != nil {
			if *existing.KitchenOrderID == kitchenOrderID {
				return nil
			}
			return ErrAlreadyLinked
		}
	}
	return nil
}

// PurgeOlderThan deletes mappings created before the horizon and returns
// the number removed. Called from maintenance, never from the request path.
func (s *OrderMappingStore) PurgeOlderThan(days int) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.
		Where("tenant_id = ? AND created_at < ?", s.tenantID, cutoff).
		Delete(&models.OrderMapping{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
