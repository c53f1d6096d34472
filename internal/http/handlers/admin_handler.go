// README: Admin handlers; audit trail viewer.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetops/internal/audit"
)

type AdminHandler struct {
	audit *audit.Store
}

func NewAdminHandler(store *audit.Store) *AdminHandler {
	return &AdminHandler{audit: store}
}

func (h *AdminHandler) AuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.audit.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"entries": entries})
}
