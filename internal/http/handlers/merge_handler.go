// README: Merge handlers; the two-party consent endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/modules/merge"
	"fleetops/internal/types"
)

type MergeHandler struct {
	merges *merge.Service
}

func NewMergeHandler(svc *merge.Service) *MergeHandler {
	return &MergeHandler{merges: svc}
}

type proposeReq struct {
	CandidateTripID string `json:"candidate_trip_id"`
	VehicleNumber   string `json:"vehicle_number"`
	DriverName      string `json:"driver_name"`
	Message         string `json:"message"`
}

func (h *MergeHandler) Propose(c *gin.Context) {
	var req proposeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CandidateTripID == "" {
		writeError(c, http.StatusBadRequest, "missing candidate_trip_id")
		return
	}
	err := h.merges.Propose(c.Request.Context(), merge.ProposeCommand{
		MasterTripID:    types.ID(c.Param("id")),
		CandidateTripID: types.ID(req.CandidateTripID),
		VehicleNumber:   req.VehicleNumber,
		DriverName:      req.DriverName,
		Message:         req.Message,
		ActorID:         actorID(c),
	})
	if err != nil {
		writeMergeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"proposed": true})
}

func (h *MergeHandler) Accept(c *gin.Context) {
	err := h.merges.Accept(c.Request.Context(), merge.ConsentCommand{
		MasterTripID: types.ID(c.Param("id")),
		RequesterID:  actorID(c),
	})
	if err != nil {
		writeMergeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"accepted": true})
}

func (h *MergeHandler) Reject(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.merges.Reject(c.Request.Context(), merge.ConsentCommand{
		MasterTripID: types.ID(c.Param("id")),
		RequesterID:  actorID(c),
		Reason:       req.Reason,
	})
	if err != nil {
		writeMergeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"rejected": true})
}

func (h *MergeHandler) Finalize(c *gin.Context) {
	err := h.merges.Finalize(c.Request.Context(), merge.FinalizeCommand{
		MasterTripID: types.ID(c.Param("id")),
		ActorID:      actorID(c),
	})
	if err != nil {
		writeMergeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"merged": true})
}
