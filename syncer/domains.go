package syncer

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/pos-sync/cloud"
	"github.com/yeremiapane/pos-sync/models"
)

// DomainSyncer is one step of the bulk pass. Optional domains treat a
// backend "not found" as a benign empty state.
type DomainSyncer interface {
	Name() string
	Weight() int
	Optional() bool
	SyncFromCloud(ctx context.Context, tenantID string) error
	SyncToCloud(ctx context.Context, tenantID string) error
}

// StandardDomains builds the seven-step set in its fixed order. Weights sum
// to 100 so progress reads as a percentage.
func StandardDomains(client *cloud.Client, db *gorm.DB) []DomainSyncer {
	return []DomainSyncer{
		&settingsSyncer{client: client, db: db},
		&staffSyncer{client: client, db: db},
		&floorPlanSyncer{client: client, db: db},
		&menuSyncer{client: client, db: db},
		&pricingSyncer{client: client, db: db},
		&printerSyncer{client: client, db: db},
		&aggregatorSyncer{client: client, db: db},
	}
}

// replaceAll swaps the tenant's rows for the freshly fetched set in one
// transaction. Bulk sync is full-replace, not merge.
func replaceAll[T any](db *gorm.DB, tenantID string, model interface{}, rows []T) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

type settingsSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *settingsSyncer) Name() string   { return "settings" }
func (s *settingsSyncer) Weight() int    { return 15 }
func (s *settingsSyncer) Optional() bool { return false }

func (s *settingsSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	settings, err := s.client.FetchSettings(ctx, tenantID)
	if err != nil {
		return err
	}
	settings.TenantID = tenantID
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(settings).Error
}

func (s *settingsSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var settings models.RestaurantSettings
	err := s.db.Where("tenant_id = ?", tenantID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.PushSettings(ctx, tenantID, &settings)
}

type staffSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *staffSyncer) Name() string   { return "staff" }
func (s *staffSyncer) Weight() int    { return 15 }
func (s *staffSyncer) Optional() bool { return false }

func (s *staffSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	staff, err := s.client.FetchStaff(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range staff {
		staff[i].TenantID = tenantID
	}
	return replaceAll(s.db, tenantID, &models.StaffUser{}, staff)
}

func (s *staffSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var staff []models.StaffUser
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&staff).Error; err != nil {
		return err
	}
	return s.client.PushStaff(ctx, tenantID, staff)
}

type floorPlanSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *floorPlanSyncer) Name() string   { return "floor_plan" }
func (s *floorPlanSyncer) Weight() int    { return 15 }
func (s *floorPlanSyncer) Optional() bool { return false }

func (s *floorPlanSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	plan, err := s.client.FetchFloorPlan(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range plan.Sections {
		plan.Sections[i].TenantID = tenantID
	}
	for i := range plan.Tables {
		plan.Tables[i].TenantID = tenantID
	}
	if err := replaceAll(s.db, tenantID, &models.FloorSection{}, plan.Sections); err != nil {
		return err
	}
	return replaceAll(s.db, tenantID, &models.FloorTable{}, plan.Tables)
}

func (s *floorPlanSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var plan cloud.FloorPlan
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&plan.Sections).Error; err != nil {
		return err
	}
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&plan.Tables).Error; err != nil {
		return err
	}
	return s.client.PushFloorPlan(ctx, tenantID, &plan)
}

type menuSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *menuSyncer) Name() string   { return "menu" }
func (s *menuSyncer) Weight() int    { return 25 }
func (s *menuSyncer) Optional() bool { return false }

func (s *menuSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	menu, err := s.client.FetchMenu(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range menu.Categories {
		menu.Categories[i].TenantID = tenantID
	}
	for i := range menu.Items {
		menu.Items[i].TenantID = tenantID
	}
	if err := replaceAll(s.db, tenantID, &models.MenuCategory{}, menu.Categories); err != nil {
		return err
	}
	return replaceAll(s.db, tenantID, &models.MenuItem{}, menu.Items)
}

func (s *menuSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var menu cloud.Menu
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&menu.Categories).Error; err != nil {
		return err
	}
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&menu.Items).Error; err != nil {
		return err
	}
	return s.client.PushMenu(ctx, tenantID, &menu)
}

type pricingSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *pricingSyncer) Name() string   { return "pricing" }
func (s *pricingSyncer) Weight() int    { return 10 }
func (s *pricingSyncer) Optional() bool { return false }

func (s *pricingSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	overrides, err := s.client.FetchPricingOverrides(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range overrides {
		overrides[i].TenantID = tenantID
	}
	return replaceAll(s.db, tenantID, &models.PricingOverride{}, overrides)
}

func (s *pricingSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var overrides []models.PricingOverride
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&overrides).Error; err != nil {
		return err
	}
	return s.client.PushPricingOverrides(ctx, tenantID, overrides)
}

type printerSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *printerSyncer) Name() string   { return "printer_config" }
func (s *printerSyncer) Weight() int    { return 10 }
func (s *printerSyncer) Optional() bool { return true }

func (s *printerSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	configs, err := s.client.FetchPrinterConfigs(ctx, tenantID)
	if errors.Is(err, cloud.ErrNotFound) {
		// Tenant has never configured printers; nothing to import.
		return nil
	}
	if err != nil {
		return err
	}
	for i := range configs {
		configs[i].TenantID = tenantID
	}
	return replaceAll(s.db, tenantID, &models.PrinterConfig{}, configs)
}

func (s *printerSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var configs []models.PrinterConfig
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&configs).Error; err != nil {
		return err
	}
	if len(configs) == 0 {
		return nil
	}
	return s.client.PushPrinterConfigs(ctx, tenantID, configs)
}

type aggregatorSyncer struct {
	client *cloud.Client
	db     *gorm.DB
}

func (s *aggregatorSyncer) Name() string   { return "aggregator_rules" }
func (s *aggregatorSyncer) Weight() int    { return 10 }
func (s *aggregatorSyncer) Optional() bool { return true }

func (s *aggregatorSyncer) SyncFromCloud(ctx context.Context, tenantID string) error {
	rules, err := s.client.FetchAggregatorRules(ctx, tenantID)
	if errors.Is(err, cloud.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for i := range rules {
		rules[i].TenantID = tenantID
	}
	return replaceAll(s.db, tenantID, &models.AggregatorRule{}, rules)
}

func (s *aggregatorSyncer) SyncToCloud(ctx context.Context, tenantID string) error {
	var rules []models.AggregatorRule
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&rules).Error; err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	return s.client.PushAggregatorRules(ctx, tenantID, rules)
}
