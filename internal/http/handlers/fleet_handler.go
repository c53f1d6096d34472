// README: Fleet handlers; vehicle registry and health reporting.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

type FleetHandler struct {
	fleet *fleet.Service
}

func NewFleetHandler(svc *fleet.Service) *FleetHandler {
	return &FleetHandler{fleet: svc}
}

type registerVehicleReq struct {
	Plate           string  `json:"plate"`
	InitialOdometer float64 `json:"initial_odometer"`
	ServiceInterval float64 `json:"service_interval"`
	LicenseExpiry   string  `json:"license_expiry"`
	InsuranceExpiry string  `json:"insurance_expiry"`
}

func (h *FleetHandler) Register(c *gin.Context) {
	var req registerVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := fleet.RegisterCommand{
		Plate:           req.Plate,
		InitialOdometer: req.InitialOdometer,
		ServiceInterval: req.ServiceInterval,
	}
	var err error
	if cmd.LicenseExpiry, err = parseExpiry(req.LicenseExpiry); err != nil {
		writeError(c, http.StatusBadRequest, "invalid license_expiry")
		return
	}
	if cmd.InsuranceExpiry, err = parseExpiry(req.InsuranceExpiry); err != nil {
		writeError(c, http.StatusBadRequest, "invalid insurance_expiry")
		return
	}
	id, err := h.fleet.Register(c.Request.Context(), cmd)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"vehicle_id": id})
}

func (h *FleetHandler) List(c *gin.Context) {
	vehicles, err := h.fleet.List(c.Request.Context())
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"vehicles": vehicles})
}

// Get returns the stored record plus the derived effective status, so the
// caller never has to run the availability scan themselves.
func (h *FleetHandler) Get(c *gin.Context) {
	id := types.ID(c.Param("id"))
	v, err := h.fleet.Get(c.Request.Context(), id)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	effective, err := h.fleet.EffectiveStatus(c.Request.Context(), id)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"vehicle": v, "effective_status": effective})
}

func (h *FleetHandler) Health(c *gin.Context) {
	report, err := h.fleet.HealthReport(c.Request.Context())
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"fleet": report})
}

type completeRepairReq struct {
	ServiceKm float64 `json:"service_km"`
}

func (h *FleetHandler) CompleteRepair(c *gin.Context) {
	var req completeRepairReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.fleet.CompleteRepair(c.Request.Context(), types.ID(c.Param("id")), req.ServiceKm); err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": fleet.DocAvailable})
}

func parseExpiry(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
