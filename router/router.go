package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/pos-sync/controllers"
	"github.com/yeremiapane/pos-sync/kds"
	"github.com/yeremiapane/pos-sync/middlewares"
	"github.com/yeremiapane/pos-sync/realtime"
	"github.com/yeremiapane/pos-sync/services"
	"github.com/yeremiapane/pos-sync/stores"
	"github.com/yeremiapane/pos-sync/syncer"
)

// Deps is everything the local device API renders. The composition root
// owns construction; the router only wires endpoints.
type Deps struct {
	TenantID     string
	Orders       *services.OrderService
	Kitchen      *stores.KitchenOrderStore
	Mappings     *stores.OrderMappingStore
	Orchestrator *syncer.Orchestrator
	Conn         *realtime.ConnectionManager
	Staff        *services.StaffService
	Hub          *kds.Hub
}

// SetupRouter builds the local device API consumed by the dashboard UI and
// the display screens on this terminal.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.CORSMiddlewares())

	orderCtrl := controllers.NewOrderController(d.Orders, d.Kitchen, d.Mappings)
	syncCtrl := controllers.NewSyncController(d.Orchestrator, d.TenantID)
	connCtrl := controllers.NewConnectionController(d.Conn)
	staffCtrl := controllers.NewStaffController(d.Staff)
	kdsCtrl := controllers.NewKDSController(d.Hub)

	orders := r.Group("/orders")
	{
		orders.POST("", orderCtrl.CreateOrder)
		orders.GET("/active", orderCtrl.GetActiveOrders)
		orders.GET("/completed", orderCtrl.GetCompletedOrders)
		orders.PATCH("/:order_id/status", orderCtrl.UpdateOrderStatus)
		orders.PATCH("/:order_id/items/:item_id/status", orderCtrl.UpdateItemStatus)
	}
	r.GET("/mappings/active", orderCtrl.GetActiveMappings)

	sync := r.Group("/sync")
	{
		sync.GET("/status", syncCtrl.GetSyncStatus)
		sync.POST("/run", syncCtrl.RunSync)
		sync.POST("/push", syncCtrl.PushAll)
	}

	connection := r.Group("/connection")
	{
		connection.GET("/status", connCtrl.GetStatus)
		connection.POST("/reconnect", connCtrl.Reconnect)
	}

	staff := r.Group("/staff")
	{
		staff.POST("/login", staffCtrl.Login)
		staff.POST("/logout", staffCtrl.Logout)
		staff.GET("/session", staffCtrl.GetSession)
	}

	r.GET("/ws/kds", kdsCtrl.Handler)

	return r
}
