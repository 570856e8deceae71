package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/pos-sync/kds"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local device API, displays connect from the same machine or LAN.
		return true
	},
}

// KDSController upgrades local display connections and registers them on
// the hub.
type KDSController struct {
	hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{hub: hub}
}

// Handler is the websocket endpoint for KDS/BDS display screens.
func (ctrl *KDSController) Handler(c *gin.Context) {
	deviceType := c.Query("device")
	if deviceType != "kds" && deviceType != "bds" && deviceType != "manager" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ctrl.hub.RegisterClient(ws, deviceType)

	// Displays only listen; drain until the socket dies.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	ctrl.hub.UnregisterClient(ws)
}
