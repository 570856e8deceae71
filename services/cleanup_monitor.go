package services

import (
	"sync"
	"time"

	"github.com/yeremiapane/pos-sync/stores"
	"github.com/yeremiapane/pos-sync/utils"
)

// CleanupMonitor runs the retention sweep: completed tickets and terminal
// mappings older than the horizon are purged, and urgency flags are
// refreshed on the way past. Never called from request-path code.
type CleanupMonitor struct {
	kitchen  *stores.KitchenOrderStore
	mappings *stores.OrderMappingStore
	orders   *OrderService

	RetentionDays int
	Interval      time.Duration

	stopCh chan struct{}
	once   sync.Once
}

func NewCleanupMonitor(kitchen *stores.KitchenOrderStore, mappings *stores.OrderMappingStore, orders *OrderService) *CleanupMonitor {
	return &CleanupMonitor{
		kitchen:       kitchen,
		mappings:      mappings,
		orders:        orders,
		RetentionDays: 7,
		Interval:      time.Hour,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the sweep goroutine.
func (m *CleanupMonitor) Start() {
	go m.loop()
	utils.InfoLogger.Println("cleanup monitor started")
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (m *CleanupMonitor) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
	})
}

func (m *CleanupMonitor) loop() {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.RunOnce()
		}
	}
}

// RunOnce performs a single sweep pass.
func (m *CleanupMonitor) RunOnce() {
	if m.orders != nil {
		if err := m.orders.RefreshUrgency(); err != nil {
			utils.ErrorLogger.Printf("urgency refresh failed: %v", err)
		}
	}

	purgedOrders, err := m.kitchen.CleanupOldOrders(m.RetentionDays)
	if err != nil {
		utils.ErrorLogger.Printf("kitchen order cleanup failed: %v", err)
	}
	purgedMappings, err := m.mappings.PurgeOlderThan(m.RetentionDays)
	if err != nil {
		utils.ErrorLogger.Printf("order mapping purge failed: %v", err)
	}
	if purgedOrders > 0 || purgedMappings > 0 {
		utils.InfoLogger.Printf("retention sweep removed %d orders, %d mappings", purgedOrders, purgedMappings)
	}
}
