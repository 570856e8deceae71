package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yeremiapane/pos-sync/cloud"
	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/realtime"
	"github.com/yeremiapane/pos-sync/stores"
	"github.com/yeremiapane/pos-sync/utils"
)

// Broadcaster pushes order events to locally connected display sockets
// (KDS/BDS screens). Implemented by the kds hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastOrderUpdate(order models.KitchenOrder)
	BroadcastSnapshot(orders []models.KitchenOrder)
}

// DefaultUrgentAfterMinutes is used when the tenant has no synced settings.
const DefaultUrgentAfterMinutes = 15

// OrderService is the order lifecycle coordinator. It applies inbound
// realtime messages to both stores, picks the submission tier when the
// connection is down, and repairs local state from the reconnect snapshot.
type OrderService struct {
	tenantID string
	deviceID string

	kitchen  *stores.KitchenOrderStore
	mappings *stores.OrderMappingStore
	conn     *realtime.ConnectionManager
	cloud    *cloud.Client
	hub      Broadcaster

	urgentAfterMin int
}

func NewOrderService(
	tenantID, deviceID string,
	kitchen *stores.KitchenOrderStore,
	mappings *stores.OrderMappingStore,
	conn *realtime.ConnectionManager,
	cloudClient *cloud.Client,
	hub Broadcaster,
) *OrderService {
	return &OrderService{
		tenantID:       tenantID,
		deviceID:       deviceID,
		kitchen:        kitchen,
		mappings:       mappings,
		conn:           conn,
		cloud:          cloudClient,
		hub:            hub,
		urgentAfterMin: DefaultUrgentAfterMinutes,
	}
}

// SetUrgentThreshold overrides the urgency threshold, usually from synced
// restaurant settings.
func (s *OrderService) SetUrgentThreshold(minutes int) {
	if minutes > 0 {
		s.urgentAfterMin = minutes
	}
}

// SubmissionTier records which path a submission took, for logging and for
// the UI to explain degraded behavior.
type SubmissionTier string

const (
	TierRealtime SubmissionTier = "realtime"
	TierDirect   SubmissionTier = "direct"
	TierLocal    SubmissionTier = "local"
)

// SubmitOrder sends a new order through the three-tier fallback:
// realtime first (fire-and-forget, confirmation arrives as an asynchronous
// order_created push), then a direct backend call, then local-only
// persistence flagged unsynced for later reconciliation.
func (s *OrderService) SubmitOrder(ctx context.Context, order models.KitchenOrder) (*models.KitchenOrder, SubmissionTier, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.KitchenStatusPending
	}
	if order.Version < 1 {
		order.Version = 1
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		if order.Items[i].Status == "" {
			order.Items[i].Status = models.KitchenStatusPending
		}
	}

	if s.conn != nil && s.conn.Connected() {
		if err := s.conn.Send(realtime.NewSubmitOrder(order)); err == nil {
			// Optimistic local record; the order_created push confirms it.
			order.Synced = true
			if _, err := s.kitchen.Save(&order); err != nil {
				return nil, TierRealtime, err
			}
			s.broadcast(order)
			return &order, TierRealtime, nil
		}
	}

	if s.cloud != nil {
		resp, err := s.cloud.SubmitOrder(ctx, s.tenantID, order)
		if err == nil {
			created := resp.KitchenOrder
			if created.ID == "" {
				created = order
			}
			created.Synced = true
			if _, err := s.kitchen.Save(&created); err != nil {
				return nil, TierDirect, err
			}
			if resp.AggregatorOrderID != "" {
				s.ensureMapping(resp.AggregatorOrderID, created.OrderNumber, created.Source, created.ID)
			}
			s.broadcast(created)
			return &created, TierDirect, nil
		}
		utils.ErrorLogger.Printf("direct order submission failed, falling back to local: %v", err)
	}

	// Last tier: keep the order locally and reconcile when the connection
	// comes back.
	order.Synced = false
	if _, err := s.kitchen.Save(&order); err != nil {
		return nil, TierLocal, err
	}
	s.broadcast(order)
	return &order, TierLocal, nil
}

// UpdateStatus applies a local actor's status change (kitchen staff at this
// terminal). Backward transitions are rejected here, not in the store.
func (s *OrderService) UpdateStatus(orderID, newStatus string) error {
	order, err := s.kitchen.Get(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	if models.StatusRank(newStatus) < models.StatusRank(order.Status) {
		utils.InfoLogger.Printf("ignoring backward transition %s -> %s for order %s",
			order.Status, newStatus, orderID)
		return nil
	}

	times := stores.StatusTimes{}
	now := time.Now()
	if newStatus == models.KitchenStatusReady {
		times.ReadyAt = &now
	}
	if newStatus == models.KitchenStatusCompleted {
		times.CompletedAt = &now
	}
	if err := s.kitchen.UpdateStatus(orderID, newStatus, times); err != nil {
		return err
	}

	s.updateMappingForOrder(order.OrderNumber, newStatus, times)

	if s.conn != nil {
		// Advisory; queued while disconnected.
		_ = s.conn.Send(realtime.NewStatusUpdate(orderID, order.OrderNumber, newStatus, order.Version+1, s.deviceID))
	}

	if updated, err := s.kitchen.Get(orderID); err == nil && updated != nil {
		s.broadcast(*updated)
	}
	return nil
}

// UpdateItemStatus applies a per-item change from kitchen staff.
func (s *OrderService) UpdateItemStatus(orderID, itemID, status string) error {
	return s.kitchen.UpdateItemStatus(orderID, itemID, status)
}

// RefreshUrgency flags active orders whose elapsed time crossed the
// threshold. Urgency is derived, never synced.
func (s *OrderService) RefreshUrgency() error {
	orders, err := s.kitchen.GetActive()
	if err != nil {
		return err
	}
	for _, order := range orders {
		if !order.IsUrgent && order.ShouldBeUrgent(s.urgentAfterMin) {
			order.IsUrgent = true
			order.Version++
			if _, err := s.kitchen.Save(&order); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleOrderCreated applies the backend's order confirmation: the kitchen
// ticket is stored (version-guarded) and, for aggregator orders, the
// mapping is created and linked.
func (s *OrderService) HandleOrderCreated(msg *realtime.OrderCreatedMessage) {
	order := msg.KitchenOrder
	order.Synced = true
	applied, err := s.kitchen.Save(&order)
	if err != nil {
		return
	}

	if msg.Order.AggregatorOrderID != "" {
		s.ensureMapping(msg.Order.AggregatorOrderID, order.OrderNumber, msg.Order.Source, order.ID)
	}

	if applied {
		s.broadcast(order)
	}
}

// HandleOrderStatusUpdate applies a status push from any remote actor.
// Backward transitions are rejected; mapping status follows, keyed by order
// number.
func (s *OrderService) HandleOrderStatusUpdate(msg *realtime.OrderStatusUpdateMessage) {
	order, err := s.kitchen.Get(msg.OrderID)
	if err != nil {
		return
	}
	if order == nil && msg.OrderNumber != "" {
		order, err = s.kitchen.GetByOrderNumber(msg.OrderNumber)
		if err != nil {
			return
		}
	}
	if order == nil {
		// Unknown ticket; possibly purged, possibly not yet synced here.
		return
	}

	if msg.Version > 0 {
		// Version-carrying updates go through the guarded save so races
		// between independent actors converge.
		update := *order
		update.Status = msg.Status
		update.Version = msg.Version
		s.applyMilestones(&update, msg.Status)
		applied, err := s.kitchen.Save(&update)
		if err != nil || !applied {
			return
		}
		s.updateMappingForOrder(order.OrderNumber, msg.Status, milestoneTimes(&update))
		s.broadcast(update)
		return
	}

	if models.StatusRank(msg.Status) < models.StatusRank(order.Status) {
		utils.InfoLogger.Printf("ignoring out-of-order status %s for order %s (currently %s)",
			msg.Status, order.ID, order.Status)
		return
	}

	times := stores.StatusTimes{}
	now := time.Now()
	if msg.Status == models.KitchenStatusReady {
		times.ReadyAt = &now
	}
	if msg.Status == models.KitchenStatusCompleted {
		times.CompletedAt = &now
	}
	if err := s.kitchen.UpdateStatus(order.ID, msg.Status, times); err != nil {
		return
	}
	s.updateMappingForOrder(order.OrderNumber, msg.Status, times)
	if updated, err := s.kitchen.Get(order.ID); err == nil && updated != nil {
		s.broadcast(*updated)
	}
}

// HandleSyncState applies the authoritative snapshot pushed after a
// (re)connect: local synced state is replaced, not merged, and local-only
// unsynced orders are replayed to the backend.
func (s *OrderService) HandleSyncState(msg *realtime.SyncStateMessage) {
	if err := s.kitchen.ApplySnapshot(msg.ActiveOrders, msg.RecentOrders); err != nil {
		utils.ErrorLogger.Printf("snapshot apply failed: %v", err)
		return
	}

	s.ReconcileUnsynced()

	if s.hub != nil {
		if active, err := s.kitchen.GetActive(); err == nil {
			s.hub.BroadcastSnapshot(active)
		}
	}
}

// HandleServerError surfaces a backend error frame. It never mutates
// stores.
func (s *OrderService) HandleServerError(msg *realtime.ErrorMessage) {
	utils.ErrorLogger.Printf("backend error: %s (%s)", msg.Message, msg.Code)
}

// ReconcileUnsynced replays local-only orders, oldest first. Each is marked
// synced when its order_created confirmation arrives.
func (s *OrderService) ReconcileUnsynced() {
	if s.conn == nil || !s.conn.Connected() {
		return
	}
	unsynced, err := s.kitchen.GetUnsynced()
	if err != nil {
		return
	}
	for _, order := range unsynced {
		if err := s.conn.Send(realtime.NewSubmitOrder(order)); err != nil {
			utils.ErrorLogger.Printf("reconcile resubmit failed for %s: %v", order.ID, err)
			return
		}
		// The backend treats resubmission of a known ID as idempotent; the
		// confirmation push flips the flag.
		if err := s.kitchen.MarkSynced(order.ID); err != nil {
			utils.ErrorLogger.Printf("reconcile mark synced failed for %s: %v", order.ID, err)
		}
	}
	if len(unsynced) > 0 {
		utils.InfoLogger.Printf("reconciled %d unsynced orders for tenant %s", len(unsynced), s.tenantID)
	}
}

// ensureMapping creates the mapping row if this device has not seen the
// aggregator order yet, then links the kitchen ticket exactly once.
func (s *OrderService) ensureMapping(aggregatorOrderID, orderNumber, source, kitchenOrderID string) {
	existing, err := s.mappings.Get(aggregatorOrderID)
	if err != nil {
		return
	}
	if existing == nil {
		mapping := &models.OrderMapping{
			AggregatorOrderID: aggregatorOrderID,
			OrderNumber:       orderNumber,
			Source:            source,
			CurrentStatus:     models.MappingStatusReceived,
			CreatedAt:         time.Now(),
		}
		if err := s.mappings.Save(mapping); err != nil {
			return
		}
	}
	if err := s.mappings.LinkKitchenOrder(aggregatorOrderID, kitchenOrderID); err != nil {
		utils.ErrorLogger.Printf("kitchen order link failed for %s: %v", aggregatorOrderID, err)
	}
}

// updateMappingForOrder mirrors a kitchen status change onto the mapping,
// when one exists for this order number.
func (s *OrderService) updateMappingForOrder(orderNumber, kitchenStatus string, times stores.StatusTimes) {
	mapping, err := s.mappings.GetByOrderNumber(orderNumber)
	if err != nil || mapping == nil {
		return
	}
	fields := stores.StatusFields{
		KDSStatus:  &kitchenStatus,
		AcceptedAt: nil,
		ReadyAt:    times.ReadyAt,
	}
	if err := s.mappings.UpdateStatus(mapping.AggregatorOrderID, mappingStatusFor(kitchenStatus, mapping.CurrentStatus), fields); err != nil {
		utils.ErrorLogger.Printf("mapping status mirror failed for %s: %v", mapping.AggregatorOrderID, err)
	}
}

// mappingStatusFor translates a kitchen status into the aggregator
// lifecycle vocabulary. Unmapped statuses keep the current mapping status.
func mappingStatusFor(kitchenStatus, current string) string {
	switch kitchenStatus {
	case models.KitchenStatusInProgress:
		return models.MappingStatusPreparing
	case models.KitchenStatusReady:
		return models.MappingStatusReady
	case models.KitchenStatusCompleted:
		return models.MappingStatusCompleted
	default:
		return current
	}
}

func (s *OrderService) applyMilestones(order *models.KitchenOrder, status string) {
	now := time.Now()
	if status == models.KitchenStatusReady && order.ReadyAt == nil {
		order.ReadyAt = &now
	}
	if status == models.KitchenStatusCompleted && order.CompletedAt == nil {
		order.CompletedAt = &now
	}
}

func milestoneTimes(order *models.KitchenOrder) stores.StatusTimes {
	return stores.StatusTimes{ReadyAt: order.ReadyAt, CompletedAt: order.CompletedAt}
}

func (s *OrderService) broadcast(order models.KitchenOrder) {
	if s.hub != nil {
		s.hub.BroadcastOrderUpdate(order)
	}
}
