// README: Trip handlers; booking, lifecycle transitions and legacy import.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/middleware"
	"fleetops/internal/modules/trip"
	"fleetops/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	RequesterID string   `json:"requester_id"`
	Pickup      string   `json:"pickup"`
	Destination string   `json:"destination"`
	Stops       []string `json:"stops"`
	Date        string   `json:"date"`
	Passengers  int      `json:"passengers"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	scheduledAt, err := parseDate(req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid date")
		return
	}
	id, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		RequesterID: types.ID(req.RequesterID),
		Pickup:      req.Pickup,
		Destination: req.Destination,
		Stops:       req.Stops,
		ScheduledAt: scheduledAt,
		Passengers:  req.Passengers,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"trip_id": id, "status": trip.StatusPending})
}

func (h *TripHandler) Get(c *gin.Context) {
	t, err := h.trips.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tripView(t))
}

func (h *TripHandler) ListByRequester(c *gin.Context) {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		writeError(c, http.StatusBadRequest, "missing requester_id")
		return
	}
	trips, err := h.trips.ListByRequester(c.Request.Context(), types.ID(requesterID))
	if err != nil {
		writeTripError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(trips))
	for i := range trips {
		out = append(out, tripView(&trips[i]))
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": out})
}

func (h *TripHandler) ListReassignments(c *gin.Context) {
	trips, err := h.trips.ListNeedingReassignment(c.Request.Context())
	if err != nil {
		writeTripError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(trips))
	for i := range trips {
		out = append(out, tripView(&trips[i]))
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": out})
}

type approveReq struct {
	VehicleID string `json:"vehicle_id"`
	DriverID  string `json:"driver_id"`
}

func (h *TripHandler) Approve(c *gin.Context) {
	var req approveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VehicleID == "" || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing vehicle_id or driver_id")
		return
	}
	err := h.trips.Approve(c.Request.Context(), trip.ApproveCommand{
		TripID:    types.ID(c.Param("id")),
		VehicleID: types.ID(req.VehicleID),
		DriverID:  types.ID(req.DriverID),
		ActorID:   actorID(c),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.StatusApproved})
}

type startReq struct {
	OdometerStart float64 `json:"odometer_start"`
}

func (h *TripHandler) Start(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.trips.Start(c.Request.Context(), trip.StartCommand{
		TripID:        types.ID(c.Param("id")),
		OdometerStart: req.OdometerStart,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.StatusInProgress})
}

type completeReq struct {
	OdometerEnd float64 `json:"odometer_end"`
}

func (h *TripHandler) Complete(c *gin.Context) {
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.trips.Complete(c.Request.Context(), trip.CompleteCommand{
		TripID:      types.ID(c.Param("id")),
		OdometerEnd: req.OdometerEnd,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.StatusCompleted})
}

type breakdownReq struct {
	Odometer float64  `json:"odometer"`
	Reason   string   `json:"reason"`
	LastStop string   `json:"last_stop"`
	Address  string   `json:"address"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

func (h *TripHandler) Breakdown(c *gin.Context) {
	var req breakdownReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := trip.BreakdownCommand{
		TripID:   types.ID(c.Param("id")),
		Odometer: req.Odometer,
		Reason:   trip.BreakdownReason(req.Reason),
		LastStop: req.LastStop,
		Address:  req.Address,
	}
	if req.Lat != nil && req.Lng != nil {
		cmd.Location = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	if err := h.trips.Breakdown(c.Request.Context(), cmd); err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.StatusBrokenDown})
}

func (h *TripHandler) Reassign(c *gin.Context) {
	var req approveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VehicleID == "" || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing vehicle_id or driver_id")
		return
	}
	derivedID, err := h.trips.Reassign(c.Request.Context(), trip.ReassignCommand{
		TripID:    types.ID(c.Param("id")),
		VehicleID: types.ID(req.VehicleID),
		DriverID:  types.ID(req.DriverID),
		ActorID:   actorID(c),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"trip_id": derivedID, "status": trip.StatusReassigned})
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.trips.Cancel(c.Request.Context(), trip.CancelCommand{
		TripID:  types.ID(c.Param("id")),
		ActorID: actorID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.StatusCancelled})
}

func (h *TripHandler) Reject(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.trips.Reject(c.Request.Context(), trip.RejectCommand{
		TripID:  types.ID(c.Param("id")),
		ActorID: actorID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.StatusRejected})
}

// Import takes one exported legacy record per call.
func (h *TripHandler) Import(c *gin.Context) {
	var raw trip.RawTrip
	if err := c.ShouldBindJSON(&raw); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.trips.Import(c.Request.Context(), raw)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"trip_id": id})
}

func tripView(t *trip.Trip) map[string]any {
	v := map[string]any{
		"trip_id":      t.ID,
		"serial":       t.Serial,
		"requester_id": t.RequesterID,
		"pickup":       t.Pickup,
		"destination":  t.Destination,
		"stops":        t.Stops,
		"scheduled_at": t.ScheduledAt,
		"status":       t.Status,
		"passengers":   t.PassengerCount,
	}
	if t.VehiclePlate != nil {
		v["vehicle"] = *t.VehiclePlate
	}
	if t.DriverID != nil {
		v["driver_id"] = *t.DriverID
	}
	if t.DistanceKm != nil {
		v["distance_km"] = *t.DistanceKm
	}
	if t.Cost != nil {
		v["cost"] = t.Cost
	}
	if t.Breakdown != nil {
		v["breakdown"] = t.Breakdown
	}
	if t.NeedsReassignment {
		v["needs_reassignment"] = true
	}
	if t.OriginTripID != nil {
		v["origin_trip_id"] = *t.OriginTripID
	}
	if t.Merge != nil {
		v["merge_proposal"] = t.Merge
	}
	if t.MasterTripID != nil {
		v["master_trip_id"] = *t.MasterTripID
	}
	if kr := t.RunDistance(); kr != nil {
		v["km_run"] = *kr
	}
	return v
}

func parseDate(raw string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// actorID reads the authenticated uid the auth middleware stashed.
func actorID(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}
