// README: Assignment log entry; the vehicle's lifetime audit trail.
package assignment

import (
	"time"

	"fleetops/internal/types"
)

const (
	ActionAssigned   = "Vehicle Assigned"
	ActionReassigned = "Vehicle Re-assigned to other"
	ActionUnassigned = "Vehicle Unassigned"
)

// LogEntry is append-only in normal operation; the admin screen has a manual
// delete escape hatch but the manager itself never removes history.
type LogEntry struct {
	ID           int64     `json:"id"`
	VehicleID    types.ID  `json:"vehicle_id"`
	VehiclePlate string    `json:"vehicle_plate"`
	DriverID     types.ID  `json:"driver_id"`
	DriverName   string    `json:"driver_name"`
	Action       string    `json:"action"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}
