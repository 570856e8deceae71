package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/pos-sync/realtime"
	"github.com/yeremiapane/pos-sync/utils"
)

// ConnectionController exposes the realtime connection indicator.
type ConnectionController struct {
	conn *realtime.ConnectionManager
}

func NewConnectionController(conn *realtime.ConnectionManager) *ConnectionController {
	return &ConnectionController{conn: conn}
}

// GetStatus returns the connection state and queue depth. The dev-mode UI
// shows this; production callers use it for conditional logic.
func (ctrl *ConnectionController) GetStatus(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "connection status", ctrl.conn.Status())
}

// Reconnect manually re-arms the retry policy after it went terminal.
func (ctrl *ConnectionController) Reconnect(c *gin.Context) {
	if err := ctrl.conn.Connect(); err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "connected", ctrl.conn.Status())
}
