// README: Driver handlers; registry and lookup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/modules/driver"
	"fleetops/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
}

func NewDriverHandler(svc *driver.Service) *DriverHandler {
	return &DriverHandler{drivers: svc}
}

type registerDriverReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	var req registerDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"driver_id": id})
}

func (h *DriverHandler) Get(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"driver": d})
}

func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.drivers.List(c.Request.Context())
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"drivers": drivers})
}
