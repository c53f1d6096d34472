// README: Assignment handlers; vehicle-driver pairing endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/modules/assignment"
	"fleetops/internal/types"
)

type AssignmentHandler struct {
	assignments *assignment.Service
}

func NewAssignmentHandler(svc *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{assignments: svc}
}

type assignReq struct {
	DriverID string `json:"driver_id"`
	Confirm  bool   `json:"confirm"`
}

func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.assignments.Assign(c.Request.Context(), assignment.AssignCommand{
		VehicleID: types.ID(c.Param("id")),
		DriverID:  types.ID(req.DriverID),
		ActorID:   actorID(c),
		Confirm:   req.Confirm,
	})
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"assigned": true})
}

func (h *AssignmentHandler) Unassign(c *gin.Context) {
	err := h.assignments.Unassign(c.Request.Context(), assignment.UnassignCommand{
		VehicleID: types.ID(c.Param("id")),
		ActorID:   actorID(c),
	})
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"assigned": false})
}

func (h *AssignmentHandler) History(c *gin.Context) {
	entries, err := h.assignments.History(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"history": entries})
}
