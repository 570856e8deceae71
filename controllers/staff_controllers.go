package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/pos-sync/services"
	"github.com/yeremiapane/pos-sync/utils"
)

// StaffController handles offline PIN login against the synced staff table.
type StaffController struct {
	staff *services.StaffService
}

func NewStaffController(staff *services.StaffService) *StaffController {
	return &StaffController{staff: staff}
}

// Login verifies the PIN and opens the terminal session.
func (ctrl *StaffController) Login(c *gin.Context) {
	var body struct {
		StaffID string `json:"staff_id" binding:"required"`
		PIN     string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := ctrl.staff.Login(body.StaffID, body.PIN)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "logged in", session)
}

// Logout closes the terminal session.
func (ctrl *StaffController) Logout(c *gin.Context) {
	ctrl.staff.Logout()
	utils.RespondJSON(c, http.StatusOK, "logged out", nil)
}

// GetSession returns the current session, if any.
func (ctrl *StaffController) GetSession(c *gin.Context) {
	session := ctrl.staff.Session()
	if session == nil {
		utils.RespondJSON(c, http.StatusOK, "no active session", nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "active session", session)
}
