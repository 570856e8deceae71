package models

import "time"

// RestaurantSettings holds per-tenant configuration synced from the cloud.
type RestaurantSettings struct {
	TenantID       string    `gorm:"primaryKey" json:"tenant_id"`
	Name           string    `gorm:"not null" json:"name"`
	Currency       string    `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`
	TaxRate        float64   `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	ServiceCharge  float64   `gorm:"type:decimal(5,2);not null;default:0" json:"service_charge"`
	UrgentAfterMin int       `gorm:"not null;default:15" json:"urgent_after_min"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (RestaurantSettings) TableName() string {
	return "restaurant_settings"
}

// FloorSection is a named area of the floor plan (Main, Patio, ...).
type FloorSection struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	Name      string    `gorm:"not null" json:"name"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FloorSection) TableName() string {
	return "floor_sections"
}

// FloorTable is a table inside a section.
type FloorTable struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	TenantID  string  `gorm:"index;not null" json:"tenant_id"`
	SectionID string  `gorm:"index;not null" json:"section_id"`
	Number    string  `gorm:"not null" json:"number"`
	Capacity  int     `gorm:"not null;default:2" json:"capacity"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
}

func (FloorTable) TableName() string {
	return "floor_tables"
}

// MenuCategory groups menu items.
type MenuCategory struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	Name      string    `gorm:"not null" json:"name"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MenuCategory) TableName() string {
	return "menu_categories"
}

// MenuItem is a sellable item synced from the cloud menu.
type MenuItem struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	TenantID   string    `gorm:"index;not null" json:"tenant_id"`
	CategoryID string    `gorm:"index;not null" json:"category_id"`
	Name       string    `gorm:"not null" json:"name"`
	Price      float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	Station    string    `gorm:"type:varchar(32)" json:"station"`
	PrepTime   int       `gorm:"not null;default:15" json:"prep_time"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (MenuItem) TableName() string {
	return "menu_items"
}

// PricingOverride is a per-channel price adjustment (aggregator menus are
// usually priced above the dine-in menu).
type PricingOverride struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	TenantID   string    `gorm:"index;not null" json:"tenant_id"`
	MenuItemID string    `gorm:"index;not null" json:"menu_item_id"`
	Source     string    `gorm:"type:varchar(32);not null" json:"source"`
	Price      float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (PricingOverride) TableName() string {
	return "pricing_overrides"
}

// PrinterConfig is the saved printer assignment per station. The engine only
// stores it; byte-level printer protocols live elsewhere.
type PrinterConfig struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	Station   string    `gorm:"type:varchar(32);not null" json:"station"`
	Name      string    `gorm:"not null" json:"name"`
	Address   string    `gorm:"not null" json:"address"`
	PaperSize string    `gorm:"type:varchar(8);not null;default:'80mm'" json:"paper_size"`
	IsDefault bool      `gorm:"not null;default:false" json:"is_default"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PrinterConfig) TableName() string {
	return "printer_configs"
}

// AggregatorRule is the per-platform integration rule set.
type AggregatorRule struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	TenantID       string    `gorm:"index;not null" json:"tenant_id"`
	Platform       string    `gorm:"type:varchar(32);not null" json:"platform"`
	Enabled        bool      `gorm:"not null;default:false" json:"enabled"`
	DashboardURL   string    `json:"dashboard_url"`
	PollIntervalMs int       `gorm:"not null;default:5000" json:"poll_interval_ms"`
	AutoAccept     bool      `gorm:"not null;default:false" json:"auto_accept"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (AggregatorRule) TableName() string {
	return "aggregator_rules"
}
