package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/services"
	"github.com/yeremiapane/pos-sync/stores"
	"github.com/yeremiapane/pos-sync/utils"
)

// OrderController exposes the engine's order state to the local dashboard
// UI. All synchronization logic lives in the service; this layer only
// renders it.
type OrderController struct {
	orders   *services.OrderService
	kitchen  *stores.KitchenOrderStore
	mappings *stores.OrderMappingStore
}

func NewOrderController(orders *services.OrderService, kitchen *stores.KitchenOrderStore, mappings *stores.OrderMappingStore) *OrderController {
	return &OrderController{orders: orders, kitchen: kitchen, mappings: mappings}
}

// CreateOrder submits a new order through the three-tier fallback.
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	var order models.KitchenOrder
	if err := c.ShouldBindJSON(&order); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(order.Items) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("order has no items"))
		return
	}

	created, tier, err := ctrl.orders.SubmitOrder(c.Request.Context(), order)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "order submitted via "+string(tier), created)
}

// GetActiveOrders lists all tickets that have not completed.
func (ctrl *OrderController) GetActiveOrders(c *gin.Context) {
	orders, err := ctrl.kitchen.GetActive()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "active orders", orders)
}

// GetCompletedOrders lists recent completed tickets for billing lookups.
func (ctrl *OrderController) GetCompletedOrders(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	orders, err := ctrl.kitchen.GetCompleted(limit)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "completed orders", orders)
}

// UpdateOrderStatus applies a status change from staff at this terminal.
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("order_id")
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if models.StatusRank(body.Status) < 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown status "+body.Status))
		return
	}

	if err := ctrl.orders.UpdateStatus(orderID, body.Status); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "status updated", nil)
}

// UpdateItemStatus applies a per-item change from kitchen staff.
func (ctrl *OrderController) UpdateItemStatus(c *gin.Context) {
	orderID := c.Param("order_id")
	itemID := c.Param("item_id")
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := ctrl.orders.UpdateItemStatus(orderID, itemID, body.Status); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "item status updated", nil)
}

// GetActiveMappings lists non-terminal aggregator order mappings.
func (ctrl *OrderController) GetActiveMappings(c *gin.Context) {
	mappings, err := ctrl.mappings.GetActive()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "active mappings", mappings)
}
