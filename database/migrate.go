package database

import (
	"gorm.io/gorm"

	"github.com/yeremiapane/pos-sync/models"
)

// Migrate creates or updates every table the engine owns. Safe to call on a
// nil handle (no local storage configured).
func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&models.OrderMapping{},
		&models.KitchenOrder{},
		&models.SyncWatermark{},
		&models.StaffUser{},
		&models.RestaurantSettings{},
		&models.FloorSection{},
		&models.FloorTable{},
		&models.MenuCategory{},
		&models.MenuItem{},
		&models.PricingOverride{},
		&models.PrinterConfig{},
		&models.AggregatorRule{},
	)
}
