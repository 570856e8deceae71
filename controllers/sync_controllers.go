package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/pos-sync/syncer"
	"github.com/yeremiapane/pos-sync/utils"
)

// SyncController triggers and inspects the bulk sync pass.
type SyncController struct {
	orchestrator *syncer.Orchestrator
	tenantID     string
}

func NewSyncController(orchestrator *syncer.Orchestrator, tenantID string) *SyncController {
	return &SyncController{orchestrator: orchestrator, tenantID: tenantID}
}

// GetSyncStatus returns the watermark and whether a pass is recommended.
func (ctrl *SyncController) GetSyncStatus(c *gin.Context) {
	status, err := ctrl.orchestrator.GetSyncStatus(ctrl.tenantID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "sync status", status)
}

// RunSync performs a pull pass. A concurrent pass fails fast with 409.
func (ctrl *SyncController) RunSync(c *gin.Context) {
	force := c.Query("force") == "true"
	result := ctrl.orchestrator.PerformInitialSync(c.Request.Context(), ctrl.tenantID, force)

	code := http.StatusOK
	if !result.Success && !result.Skipped {
		code = http.StatusConflict
		for _, e := range result.Errors {
			if e != "sync already in progress" {
				// Partial domain failure, not contention.
				code = http.StatusOK
				break
			}
		}
	}
	utils.RespondJSON(c, code, "sync finished", result)
}

// PushAll performs the inverse pass for backup/migration.
func (ctrl *SyncController) PushAll(c *gin.Context) {
	result := ctrl.orchestrator.PushAllToCloud(c.Request.Context(), ctrl.tenantID)
	utils.RespondJSON(c, http.StatusOK, "push finished", result)
}
