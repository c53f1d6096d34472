// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/modules/assignment"
	"fleetops/internal/modules/driver"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/modules/merge"
	"fleetops/internal/modules/trip"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeTripError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrBadRequest), errors.Is(err, trip.ErrFutureTrip):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrInvalidState), errors.Is(err, trip.ErrConflict),
		errors.Is(err, trip.ErrDriverBusy), errors.Is(err, fleet.ErrNotAvailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeFleetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fleet.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, fleet.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, fleet.ErrNotAvailable), errors.Is(err, fleet.ErrNotInMaintenance):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeDriverError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, driver.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeAssignmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assignment.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, driver.ErrNotFound), errors.Is(err, fleet.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, assignment.ErrConfirmRequired):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeMergeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, merge.ErrReasonRequired), errors.Is(err, trip.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound), errors.Is(err, merge.ErrNotProposed):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, merge.ErrNotParticipant):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, trip.ErrInvalidState), errors.Is(err, trip.ErrConflict),
		errors.Is(err, merge.ErrConsentMissing):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
